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

// Package tabular implements the tabular codec for row/column attributes
// (feature tables, evaluation fixtures), backed by CSV with a header row.
//
// No third-party CSV library appears anywhere in the retrieved corpus, so
// this codec is built on encoding/csv rather than left unimplemented.
package tabular

import (
	"encoding/csv"
	"io"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// Name is the registered codec name for this implementation.
const Name = "tabular"

// Table is the value type this codec serializes and returns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Codec implements codec.Codec for Table values.
type Codec struct{}

// Serialize writes the header row followed by every data row as CSV.
func (Codec) Serialize(value any, sink io.Writer) error {
	table, ok := value.(Table)
	if !ok {
		return artifacterrors.New(artifacterrors.KindDecode, "tabular codec received a non-Table value")
	}

	w := csv.NewWriter(sink)
	if err := w.Write(table.Columns); err != nil {
		return artifacterrors.Wrap(artifacterrors.KindIO, "writing tabular header", err)
	}
	for _, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return artifacterrors.New(artifacterrors.KindDecode, "tabular row width does not match header")
		}
		if err := w.Write(row); err != nil {
			return artifacterrors.Wrap(artifacterrors.KindIO, "writing tabular row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return artifacterrors.Wrap(artifacterrors.KindIO, "flushing tabular entry", err)
	}
	return nil
}

// Deserialize reads a CSV header and its rows into a Table. A row with a
// different column count than the header fails with DecodeError.
func (Codec) Deserialize(source io.Reader) (any, error) {
	r := csv.NewReader(source)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return Table{}, nil
		}
		return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "reading tabular header", err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "reading tabular row", err)
		}
		if len(row) != len(header) {
			return nil, artifacterrors.New(artifacterrors.KindDecode, "tabular row width does not match header")
		}
		rows = append(rows, row)
	}

	return Table{Columns: header, Rows: rows}, nil
}
