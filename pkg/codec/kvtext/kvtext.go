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

// Package kvtext implements the text-structured codec for small,
// human-readable string-keyed attributes (label maps, probe fixtures,
// free-form string metadata), backed by YAML.
package kvtext

import (
	"bytes"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// Name is the registered codec name for this implementation.
const Name = "text-structured"

// Codec implements codec.Codec for map[string]string attributes.
type Codec struct{}

// Serialize YAML-encodes value, which must be a map[string]string or a
// map[string]any with string-ish leaves.
func (Codec) Serialize(value any, sink io.Writer) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return artifacterrors.Wrap(artifacterrors.KindDecode, "yaml-encoding text-structured attribute", err)
	}
	if _, err := sink.Write(data); err != nil {
		return artifacterrors.Wrap(artifacterrors.KindIO, "writing text-structured entry", err)
	}
	return nil
}

// Deserialize reads every byte of source and YAML-decodes it into a
// map[string]any. A second YAML document in the stream fails with
// DecodeError; one entry is exactly one document.
func (Codec) Deserialize(source io.Reader) (any, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindIO, "reading text-structured entry", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out map[string]any
	if err := dec.Decode(&out); err != nil && err != io.EOF {
		return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "yaml-decoding text-structured attribute", err)
	}

	var second map[string]any
	if err := dec.Decode(&second); err != io.EOF {
		return nil, artifacterrors.New(artifacterrors.KindDecode, "trailing yaml document after text-structured entry")
	}

	return out, nil
}
