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

package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// Reader exposes an archive's entries by name. Order is not load-critical
// (names are authoritative per the archive's own entries), so Reader loads
// the whole stream up front into a name-to-bytes map.
type Reader struct {
	entries map[string][]byte
	order   []string
	closer  io.Closer
}

// OpenFile opens an archive from a file path.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindIO, "opening archive file "+path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader opens an archive from an arbitrary stream.
func NewReader(source io.Reader) (*Reader, error) {
	zr, err := zstd.NewReader(source)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindIO, "initializing zstd reader", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	entries := make(map[string][]byte)
	var order []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindIO, "reading archive entries", err)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, artifacterrors.WrapPath(artifacterrors.KindIO, hdr.Name, "reading archive entry body", err)
		}
		entries[hdr.Name] = buf.Bytes()
		order = append(order, hdr.Name)
	}

	return &Reader{entries: entries, order: order}, nil
}

// Entry returns the bytes for name, if present.
func (r *Reader) Entry(name string) ([]byte, bool) {
	data, ok := r.entries[name]
	return data, ok
}

// Names returns every entry name in archive order.
func (r *Reader) Names() []string {
	return r.order
}

// Close releases any underlying file handle. Safe to call on a
// stream-backed Reader, which holds nothing to release.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
