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

package artifact

import (
	"bytes"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
	"github.com/kensho-technologies/signedartifact/pkg/codec/genericobject"
	"github.com/kensho-technologies/signedartifact/pkg/sentinel"
)

// SkeletonEntryName is the archive entry and manifest skeleton_entry name
// the save pipeline writes the encoded skeleton under by default.
const SkeletonEntryName = "skeleton"

// Skeleton is a composite artifact with every declared attribute replaced
// by a sentinel. It carries no back-reference into the original object, so
// it never forms a cycle; it is itself encoded as one archive entry via the
// generic-object codec.
type Skeleton struct {
	ArtifactName string                      `cbor:"artifact_name"`
	Sentinels    map[string]sentinel.Sentinel `cbor:"sentinels"`
}

// BuildSkeleton returns a skeleton for the artifact called name holding one
// sentinel per binding, carrying the codec and entry name it was serialized
// under.
func BuildSkeleton(name string, bindings map[string]AttributeBinding) *Skeleton {
	sentinels := make(map[string]sentinel.Sentinel, len(bindings))
	for attr, binding := range bindings {
		sentinels[attr] = sentinel.Sentinel{
			Attribute: attr,
			Codec:     binding.Codec,
			Entry:     binding.Entry,
		}
	}
	return &Skeleton{ArtifactName: name, Sentinels: sentinels}
}

// EncodeSkeleton serializes the skeleton with the deterministic CBOR
// profile the generic-object codec uses, so its bytes are exactly what the
// load pipeline will later verify and decode.
func EncodeSkeleton(s *Skeleton) ([]byte, error) {
	data, err := genericobject.EncMode().Marshal(s)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "cbor-encoding skeleton", err)
	}
	return data, nil
}

// DecodeSkeleton parses skeleton bytes back into a Skeleton, rejecting
// trailing bytes the same way the generic-object codec does.
func DecodeSkeleton(data []byte) (*Skeleton, error) {
	var s Skeleton
	dec := genericobject.DecMode().NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindDecode, "cbor-decoding skeleton", err)
	}
	if dec.NumBytesRead() != len(data) {
		return nil, artifacterrors.New(artifacterrors.KindDecode, "trailing bytes after skeleton")
	}
	return &s, nil
}

// Matches reports whether every sentinel in the skeleton agrees with the
// attribute/codec/entry triple the manifest declares, and that the
// skeleton declares no attribute the manifest omits.
func (s *Skeleton) Matches(declared map[string]AttributeBinding) error {
	if len(s.Sentinels) != len(declared) {
		return artifacterrors.New(artifacterrors.KindIntegrity, "skeleton attribute count does not match manifest")
	}
	for attr, binding := range declared {
		sent, ok := s.Sentinels[attr]
		if !ok {
			return artifacterrors.New(artifacterrors.KindIntegrity, "skeleton is missing sentinel for attribute "+attr)
		}
		if !sent.Matches(attr, binding.Codec, binding.Entry) {
			return artifacterrors.New(artifacterrors.KindIntegrity, "skeleton sentinel for attribute "+attr+" disagrees with manifest")
		}
	}
	return nil
}
