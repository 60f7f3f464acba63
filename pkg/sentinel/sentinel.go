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

// Package sentinel defines the placeholder value a composite artifact's
// attribute is replaced with when it is turned into a skeleton for save, and
// the shape the load pipeline expects to find in its place when decoding.
//
// A Sentinel carries no back-reference into the object graph; it is inert
// data, so skeletons never contain cycles.
package sentinel

// Sentinel marks the position of one attribute in a skeleton object. It
// carries enough identity for the load pipeline to confirm, after decoding
// the skeleton, that each attribute position matches the manifest entry it
// is about to be bound from.
type Sentinel struct {
	// Attribute is the attribute name this sentinel stands in for.
	Attribute string `cbor:"attribute" yaml:"attribute" json:"attribute"`
	// Codec is the name of the codec that will decode the real value.
	Codec string `cbor:"codec" yaml:"codec" json:"codec"`
	// Entry is the archive entry name holding the real value's bytes.
	Entry string `cbor:"entry" yaml:"entry" json:"entry"`
}

// Matches reports whether the sentinel agrees with the given identity
// triple, as required before the load pipeline will bind a value into it.
func (s Sentinel) Matches(attribute, codec, entry string) bool {
	return s.Attribute == attribute && s.Codec == codec && s.Entry == entry
}
