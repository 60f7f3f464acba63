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

package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	key, err := GenerateKey(AlgorithmHMACSHA256)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	s, err := New(key, AlgorithmHMACSHA256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write([]byte("world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	tag := s.Finalize()
	if len(tag) == 0 {
		t.Fatal("Finalize returned an empty tag")
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, []byte("hello world")) {
		t.Fatalf("ReadAll = %q, want %q", got, "hello world")
	}

	ok, err := s.VerifyAgainst(tag)
	if err != nil {
		t.Fatalf("VerifyAgainst: %v", err)
	}
	if !ok {
		t.Fatal("VerifyAgainst(own tag) = false, want true")
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	s, _ := New(key, AlgorithmHMACSHA256)
	_, _ = s.Write([]byte("data"))

	tag1 := s.Finalize()
	tag2 := s.Finalize()
	if !bytes.Equal(tag1, tag2) {
		t.Fatalf("repeated Finalize returned different tags: %x vs %x", tag1, tag2)
	}
}

func TestWriteAfterFinalizeFails(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	s, _ := New(key, AlgorithmHMACSHA256)
	s.Finalize()

	_, err := s.Write([]byte("too late"))
	if !artifacterrors.Is(err, artifacterrors.KindState) {
		t.Fatalf("Write after finalize: got %v, want StateError", err)
	}
}

func TestReadBeforeFinalizeFails(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	s, _ := New(key, AlgorithmHMACSHA256)
	_, _ = s.Write([]byte("data"))

	if _, err := s.ReadAll(); !artifacterrors.Is(err, artifacterrors.KindState) {
		t.Fatalf("ReadAll before finalize: got %v, want StateError", err)
	}
}

func TestEmptyStreamYieldsWellDefinedTag(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	s, _ := New(key, AlgorithmHMACSHA256)

	tag := s.Finalize()
	if len(tag) != 32 {
		t.Fatalf("empty-stream tag length = %d, want 32", len(tag))
	}
}

func TestReadPastEndReturnsEOF(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	s, _ := New(key, AlgorithmHMACSHA256)
	_, _ = s.Write([]byte("ab"))
	s.Finalize()

	buf := make([]byte, 2)
	if n, err := s.Read(buf); n != 2 || err != nil {
		t.Fatalf("first Read = (%d, %v), want (2, nil)", n, err)
	}
	if _, err := s.Read(buf); err != io.EOF {
		t.Fatalf("Read past end = %v, want io.EOF", err)
	}
}

func TestSeekRewindsForReplay(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	s, _ := New(key, AlgorithmHMACSHA256)
	_, _ = s.Write([]byte("replay-me"))
	s.Finalize()

	first, _ := s.ReadAll()
	if err := s.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	second, _ := io.ReadAll(readerFunc(s.Read))
	if !bytes.Equal(first, second) {
		t.Fatalf("replay mismatch: %q vs %q", first, second)
	}
}

func TestVerifyAgainstRejectsTamperedTag(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	s, _ := New(key, AlgorithmHMACSHA256)
	_, _ = s.Write([]byte("authentic"))
	tag := s.Finalize()

	tampered := append([]byte(nil), tag...)
	tampered[0] ^= 0xFF

	ok, err := s.VerifyAgainst(tampered)
	if err != nil {
		t.Fatalf("VerifyAgainst: %v", err)
	}
	if ok {
		t.Fatal("VerifyAgainst(tampered tag) = true, want false")
	}
}

func TestFromReaderComputesMatchingTag(t *testing.T) {
	key, _ := GenerateKey(AlgorithmHMACSHA256)
	writer, _ := New(key, AlgorithmHMACSHA256)
	_, _ = writer.Write([]byte("payload bytes"))
	wantTag := writer.Finalize()

	_, gotTag, err := FromReader(bytes.NewReader([]byte("payload bytes")), key, AlgorithmHMACSHA256)
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if !bytes.Equal(wantTag, gotTag) {
		t.Fatalf("FromReader tag = %x, want %x", gotTag, wantTag)
	}
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
