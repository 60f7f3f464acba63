// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stream implements VerifiableStream: a byte container with two
// states, OPEN (write-only) and FINALIZED (read-only, replayable), that
// accumulates a keyed MAC over everything written and exposes the resulting
// tag once finalized. It is the unit of authenticated transport used by the
// save and load pipelines: a stream's tag is what the manifest records and
// what the load pipeline recomputes before any codec touches the bytes.
package stream

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// state is the VerifiableStream's one-way lifecycle.
type state int

const (
	stateOpen state = iota
	stateFinalized
)

// VerifiableStream is a single-writer-then-single-reader byte container. It
// is not safe for concurrent writes, and not safe for a write to race a
// read; callers are expected to serialize write-then-finalize-then-read, as
// the save and load pipelines do.
type VerifiableStream struct {
	mu sync.Mutex

	state state
	buf   bytes.Buffer
	mac   hash.Hash
	tag   []byte

	readPos int
}

// New creates a VerifiableStream keyed by key, using algo for the MAC
// construction. The key is typically freshly generated per save via
// GenerateKey; it is not retained beyond what the hash.Hash implementation
// needs internally.
func New(key []byte, algo Algorithm) (*VerifiableStream, error) {
	mac, err := newMAC(algo, key)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindConfig, "constructing verifiable stream", err)
	}
	return &VerifiableStream{mac: mac}, nil
}

// GenerateKey returns a fresh, cryptographically random key sized for algo.
func GenerateKey(algo Algorithm) ([]byte, error) {
	key := make([]byte, algo.KeySize())
	if _, err := rand.Read(key); err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindConfig, "generating stream key", err)
	}
	return key, nil
}

// Write appends b to the backing buffer and the running MAC. Permitted only
// while the stream is OPEN; returns StateError once finalized. Zero-length
// writes are legal and a no-op on the MAC state.
func (s *VerifiableStream) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return 0, artifacterrors.New(artifacterrors.KindState, "write on a finalized VerifiableStream")
	}
	n, err := s.buf.Write(b)
	if err != nil {
		return n, artifacterrors.Wrap(artifacterrors.KindIO, "buffering stream write", err)
	}
	s.mac.Write(b)
	return n, nil
}

// Finalize transitions OPEN to FINALIZED and returns the MAC tag. It is
// idempotent: calling it again returns the same tag without altering state,
// matching the invariant that repeated finalize calls are side-effect free.
func (s *VerifiableStream) Finalize() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateOpen {
		s.tag = s.mac.Sum(nil)
		s.state = stateFinalized
	}
	tag := make([]byte, len(s.tag))
	copy(tag, s.tag)
	return tag
}

// Finalized reports whether Finalize has been called.
func (s *VerifiableStream) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateFinalized
}

// Read implements io.Reader. Permitted only once FINALIZED; returns
// StateError beforehand. Reads replay the written bytes from the current
// cursor, which starts at offset 0 and can be rewound with Seek(0).
func (s *VerifiableStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateFinalized {
		return 0, artifacterrors.New(artifacterrors.KindState, "read before VerifiableStream was finalized")
	}
	data := s.buf.Bytes()
	if s.readPos >= len(data) {
		return 0, io.EOF
	}
	n := copy(p, data[s.readPos:])
	s.readPos += n
	return n, nil
}

// ReadAll returns every byte written to the stream. Permitted only once
// FINALIZED.
func (s *VerifiableStream) ReadAll() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateFinalized {
		return nil, artifacterrors.New(artifacterrors.KindState, "read before VerifiableStream was finalized")
	}
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out, nil
}

// Seek rewinds the read cursor to offset (only 0 is supported, which is all
// the load pipeline ever needs: restart-from-beginning for a second pass).
func (s *VerifiableStream) Seek(offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateFinalized {
		return artifacterrors.New(artifacterrors.KindState, "seek before VerifiableStream was finalized")
	}
	if offset != 0 {
		return fmt.Errorf("verifiable stream only supports seeking to 0, got %d", offset)
	}
	s.readPos = 0
	return nil
}

// VerifyAgainst reports, in constant time, whether the stream's tag equals
// expectedTag. Permitted only once FINALIZED.
func (s *VerifiableStream) VerifyAgainst(expectedTag []byte) (bool, error) {
	s.mu.Lock()
	finalized := s.state == stateFinalized
	tag := s.tag
	s.mu.Unlock()

	if !finalized {
		return false, artifacterrors.New(artifacterrors.KindState, "verify before VerifiableStream was finalized")
	}
	return hmac.Equal(tag, expectedTag), nil
}

// FromReader drains r into a freshly-written, then finalized, stream and
// returns it along with its tag. This is the shape the load pipeline uses:
// read the entry's raw bytes off the archive, write them into a stream keyed
// by the manifest's HMAC key, finalize, and compare.
func FromReader(r io.Reader, key []byte, algo Algorithm) (*VerifiableStream, []byte, error) {
	s, err := New(key, algo)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, 32*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := s.Write(buf[:n]); err != nil {
				return nil, nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, artifacterrors.Wrap(artifacterrors.KindIO, "reading entry bytes", readErr)
		}
	}
	tag := s.Finalize()
	return s, tag, nil
}
