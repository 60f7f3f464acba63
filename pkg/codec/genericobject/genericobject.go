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

// Package genericobject implements the skeleton codec: the one codec that
// runs before the load pipeline has bound any attribute, so its input is
// authenticated but its structure is not yet fully trusted. It is backed by
// CBOR's core deterministic-encoding profile rather than a format capable of
// executing arbitrary code on decode, per the defense-in-depth note on the
// skeleton codec.
package genericobject

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// Name is the registered codec name for this implementation.
const Name = "generic-object"

var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions() // deterministic, core profile: sorted map keys, canonical lengths
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("genericobject: building cbor encode mode: %v", err))
	}
	return mode
}()

var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{
		// Skeletons are flat maps of sentinel structs; reject indefinite
		// nesting and duplicate map keys rather than silently taking the
		// last one.
		MaxNestedLevels:   8,
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("genericobject: building cbor decode mode: %v", err))
	}
	return mode
}()

// EncMode returns the deterministic CBOR encode mode used by this codec, so
// callers that need to encode a concretely-typed document (such as the
// skeleton document in pkg/artifact) get byte-identical canonicalization
// rules without duplicating the options.
func EncMode() cbor.EncMode { return encMode }

// DecMode returns the matching decode mode.
func DecMode() cbor.DecMode { return decMode }

// Codec implements codec.Codec for skeleton (and other generic-struct)
// attributes using deterministic CBOR.
type Codec struct{}

// Serialize CBOR-encodes value using the deterministic core profile.
func (Codec) Serialize(value any, sink io.Writer) error {
	data, err := encMode.Marshal(value)
	if err != nil {
		return artifacterrors.Wrap(artifacterrors.KindDecode, "cbor-encoding generic object", err)
	}
	if _, err := sink.Write(data); err != nil {
		return artifacterrors.Wrap(artifacterrors.KindIO, "writing generic object entry", err)
	}
	return nil
}

// Deserialize reads every byte of source and CBOR-decodes it into a
// map[string]any. Trailing bytes beyond one well-formed CBOR item fail with
// DecodeError.
func (Codec) Deserialize(source io.Reader) (any, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindIO, "reading generic object entry", err)
	}

	var out map[string]any
	dec := decMode.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&out); err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "cbor-decoding generic object", err)
	}
	if dec.NumBytesRead() != len(data) {
		return nil, artifacterrors.New(artifacterrors.KindDecode,
			fmt.Sprintf("trailing bytes after generic object: consumed %d of %d", dec.NumBytesRead(), len(data)))
	}
	return out, nil
}
