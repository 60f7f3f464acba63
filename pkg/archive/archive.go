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

// Package archive implements the on-disk and streaming container format: a
// zstd-compressed tar of named byte blobs, written manifest-then-signature
// first so a reader can fail fast, and written atomically for file sinks so
// a failed save never leaves a usable-looking truncated archive.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// ManifestEntryName and SignatureEntryName are the two canonical blob names
// every archive carries.
const (
	ManifestEntryName  = "manifest"
	SignatureEntryName = "manifest.sig"
)

// Writer accumulates named blobs into a zstd-compressed tar stream.
type Writer struct {
	tarWriter  *tar.Writer
	zstdWriter *zstd.Encoder
	sink       io.WriteCloser
	tempPath   string
	finalPath  string
	closed     bool
}

// NewFileWriter opens a Writer backed by a temporary file next to path; the
// temporary file is renamed onto path only when Close succeeds, so a failed
// or aborted save never leaves a partial archive at the destination.
func NewFileWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindIO, "creating temporary archive file", err)
	}
	w, err := newWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	w.tempPath = tmp.Name()
	w.finalPath = path
	return w, nil
}

// NewStreamWriter opens a Writer directly over sink. The save-to-stream
// variant does not rewind: callers must treat an aborted stream as invalid,
// since there is no temp-file-then-rename step to fall back on.
func NewStreamWriter(sink io.WriteCloser) (*Writer, error) {
	return newWriter(sink)
}

func newWriter(sink io.WriteCloser) (*Writer, error) {
	zw, err := zstd.NewWriter(sink)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindIO, "initializing zstd writer", err)
	}
	return &Writer{
		tarWriter:  tar.NewWriter(zw),
		zstdWriter: zw,
		sink:       sink,
	}, nil
}

// WriteEntry appends one named blob to the archive.
func (w *Writer) WriteEntry(name string, data []byte) error {
	if w.closed {
		return artifacterrors.New(artifacterrors.KindState, "cannot write to a closed archive writer")
	}
	hdr := &tar.Header{
		Name: name,
		Mode: 0o600,
		Size: int64(len(data)),
	}
	if err := w.tarWriter.WriteHeader(hdr); err != nil {
		return artifacterrors.WrapPath(artifacterrors.KindIO, name, "writing archive entry header", err)
	}
	if _, err := w.tarWriter.Write(data); err != nil {
		return artifacterrors.WrapPath(artifacterrors.KindIO, name, "writing archive entry body", err)
	}
	return nil
}

// Close finalizes the archive. For a file-backed writer, the temporary file
// is renamed onto the destination path only after every layer is flushed
// successfully, making the write atomic.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.tarWriter.Close(); err != nil {
		w.abortTemp()
		return artifacterrors.Wrap(artifacterrors.KindIO, "closing tar writer", err)
	}
	if err := w.zstdWriter.Close(); err != nil {
		w.abortTemp()
		return artifacterrors.Wrap(artifacterrors.KindIO, "closing zstd writer", err)
	}
	if err := w.sink.Close(); err != nil {
		w.abortTemp()
		return artifacterrors.Wrap(artifacterrors.KindIO, "closing archive sink", err)
	}

	if w.tempPath != "" {
		if err := os.Rename(w.tempPath, w.finalPath); err != nil {
			os.Remove(w.tempPath)
			return artifacterrors.Wrap(artifacterrors.KindIO, "renaming archive into place", err)
		}
	}
	return nil
}

// Abort discards the archive without writing a success marker. For a
// file-backed writer this removes the temporary file; callers of a
// stream-backed writer must discard the (already partially written) stream
// themselves, since there is nothing to rename away from.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.tarWriter.Close()
	w.zstdWriter.Close()
	w.sink.Close()
	w.abortTemp()
}

func (w *Writer) abortTemp() {
	if w.tempPath != "" {
		os.Remove(w.tempPath)
	}
}
