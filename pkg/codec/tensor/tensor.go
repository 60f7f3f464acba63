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

// Package tensor implements the tensor/array codec: a dense buffer of
// float64 values with a shape, stored lz4-frame-compressed so large
// classifier weights don't bloat the archive.
package tensor

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pierrec/lz4/v4"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// Name is the registered codec name for this implementation.
const Name = "tensor"

// Array is the value type this codec serializes and returns.
type Array struct {
	Shape []int64
	Data  []float64
}

// Codec implements codec.Codec for Array values.
type Codec struct{}

// Serialize writes shape length, shape dims, element count, then the
// float64 data as little-endian bytes through an lz4 frame writer.
func (Codec) Serialize(value any, sink io.Writer) error {
	arr, ok := value.(Array)
	if !ok {
		return artifacterrors.New(artifacterrors.KindDecode, "tensor codec received a non-Array value")
	}

	zw := lz4.NewWriter(sink)
	defer zw.Close()

	header := make([]byte, 8+8*len(arr.Shape)+8)
	binary.LittleEndian.PutUint64(header[0:8], uint64(len(arr.Shape)))
	for i, dim := range arr.Shape {
		binary.LittleEndian.PutUint64(header[8+8*i:16+8*i], uint64(dim))
	}
	binary.LittleEndian.PutUint64(header[8+8*len(arr.Shape):], uint64(len(arr.Data)))
	if _, err := zw.Write(header); err != nil {
		return artifacterrors.Wrap(artifacterrors.KindIO, "writing tensor header", err)
	}

	buf := make([]byte, 8*len(arr.Data))
	for i, v := range arr.Data {
		binary.LittleEndian.PutUint64(buf[8*i:8*i+8], math.Float64bits(v))
	}
	if _, err := zw.Write(buf); err != nil {
		return artifacterrors.Wrap(artifacterrors.KindIO, "writing tensor data", err)
	}
	if err := zw.Close(); err != nil {
		return artifacterrors.Wrap(artifacterrors.KindIO, "closing lz4 tensor stream", err)
	}
	return nil
}

// Deserialize reverses Serialize. Trailing bytes after the declared element
// count fail with DecodeError.
func (Codec) Deserialize(source io.Reader) (any, error) {
	zr := lz4.NewReader(source)

	shapeLen, err := readUint64(zr)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "reading tensor shape length", err)
	}
	shape := make([]int64, shapeLen)
	for i := range shape {
		v, err := readUint64(zr)
		if err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "reading tensor shape dim", err)
		}
		shape[i] = int64(v)
	}
	count, err := readUint64(zr)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "reading tensor element count", err)
	}

	data := make([]float64, count)
	buf := make([]byte, 8)
	for i := range data {
		if _, err := io.ReadFull(zr, buf); err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "reading tensor element", err)
		}
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}

	trailing := make([]byte, 1)
	if n, err := zr.Read(trailing); n != 0 || err != io.EOF {
		return nil, artifacterrors.New(artifacterrors.KindDecode, "trailing bytes after tensor entry")
	}

	return Array{Shape: shape, Data: data}, nil
}

func readUint64(r io.Reader) (uint64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}
