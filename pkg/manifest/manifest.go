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

// Package manifest provides the canonical, signable description of a saved
// artifact: its identity, its HMAC key material, and the ordered table of
// entries the archive carries, each bound to a tag the load pipeline
// recomputes before any codec other than the skeleton codec runs.
package manifest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"runtime/debug"
	"sort"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// CurrentFormatVersion is the format_version this build writes. Loaders
// refuse manifests with a higher version.
const CurrentFormatVersion = 1

// Entry describes one archive blob: its name, the codec that produced it,
// the attribute it holds (empty for the skeleton entry), and its tag.
type Entry struct {
	Name      string `json:"name"`
	Codec     string `json:"codec_name"`
	Attribute string `json:"attribute_name,omitempty"`
	Tag       []byte `json:"tag"`
}

// IsSkeleton reports whether this entry is the skeleton entry, identified by
// carrying no attribute name.
func (e Entry) IsSkeleton() bool { return e.Attribute == "" }

// Manifest is the canonical, signable description of a saved artifact.
type Manifest struct {
	FormatVersion int       `json:"format_version"`
	ArtifactName  string    `json:"artifact_name"`
	SkeletonEntry string    `json:"skeleton_entry"`
	HMACKey       []byte    `json:"hmac_key"`
	HMACAlgorithm string    `json:"hmac_algorithm"`
	Entries       []Entry   `json:"entries"`
	CreatedAt     time.Time `json:"created_at"`
	// BuildInfo records the module path and version of the binary that
	// wrote this manifest. It is informational only: a load whose running
	// binary disagrees with it warns rather than fails, unlike every other
	// field here.
	BuildInfo map[string]string `json:"build_info,omitempty"`
}

// wireEntry and wireManifest mirror Entry/Manifest with base64-friendly
// string fields, since the canonical encoding must avoid ambiguity between
// binary and text framing.
type wireEntry struct {
	Name      string `json:"name"`
	Codec     string `json:"codec_name"`
	Attribute string `json:"attribute_name,omitempty"`
	Tag       string `json:"tag"`
}

type wireManifest struct {
	FormatVersion int               `json:"format_version"`
	ArtifactName  string            `json:"artifact_name"`
	SkeletonEntry string            `json:"skeleton_entry"`
	HMACKey       string            `json:"hmac_key"`
	HMACAlgorithm string            `json:"hmac_algorithm"`
	Entries       []wireEntry       `json:"entries"`
	CreatedAt     string            `json:"created_at"`
	BuildInfo     map[string]string `json:"build_info,omitempty"`
}

// Build constructs a Manifest, sorting entries by name and checking the
// invariants required before it may be signed: exactly one skeleton entry
// matching skeletonEntry, all other entries carrying distinct non-null
// attribute names, all entry names unique, and every codec name present in
// knownCodecs.
func Build(artifactName, skeletonEntry string, hmacKey []byte, hmacAlgorithm string, entries []Entry, knownCodecs map[string]bool, createdAt time.Time) (*Manifest, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	seenNames := make(map[string]bool, len(sorted))
	seenAttrs := make(map[string]bool, len(sorted))
	skeletonCount := 0

	for _, e := range sorted {
		if seenNames[e.Name] {
			return nil, artifacterrors.New(artifacterrors.KindManifest, "duplicate entry name "+e.Name)
		}
		seenNames[e.Name] = true

		if !knownCodecs[e.Codec] {
			return nil, artifacterrors.New(artifacterrors.KindManifest, "entry "+e.Name+" references unregistered codec "+e.Codec)
		}

		if e.IsSkeleton() {
			skeletonCount++
			if e.Name != skeletonEntry {
				return nil, artifacterrors.New(artifacterrors.KindManifest, "skeleton entry name does not match skeleton_entry field")
			}
			continue
		}

		if seenAttrs[e.Attribute] {
			return nil, artifacterrors.New(artifacterrors.KindManifest, "duplicate attribute name "+e.Attribute)
		}
		seenAttrs[e.Attribute] = true
	}

	if skeletonCount != 1 {
		return nil, artifacterrors.New(artifacterrors.KindManifest, "manifest must have exactly one skeleton entry")
	}

	return &Manifest{
		FormatVersion: CurrentFormatVersion,
		ArtifactName:  artifactName,
		SkeletonEntry: skeletonEntry,
		HMACKey:       hmacKey,
		HMACAlgorithm: hmacAlgorithm,
		Entries:       sorted,
		CreatedAt:     createdAt,
	}, nil
}

// CanonicalBytes encodes the manifest as RFC 8785 JSON Canonicalization
// Scheme bytes, so signing and verification always operate on identical
// byte sequences regardless of map iteration or field order.
func (m *Manifest) CanonicalBytes() ([]byte, error) {
	wire := toWire(m)
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindManifest, "json-encoding manifest", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindManifest, "canonicalizing manifest", err)
	}
	return canonical, nil
}

// Parse decodes canonical manifest bytes, rejecting unknown top-level
// fields and refusing any format_version newer than this build understands.
func Parse(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var wire wireManifest
	if err := dec.Decode(&wire); err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindManifest, "parsing manifest", err)
	}

	if wire.FormatVersion > CurrentFormatVersion {
		return nil, artifacterrors.New(artifacterrors.KindManifest, "manifest format_version is newer than this build supports")
	}

	return fromWire(wire)
}

func toWire(m *Manifest) wireManifest {
	entries := make([]wireEntry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = wireEntry{
			Name:      e.Name,
			Codec:     e.Codec,
			Attribute: e.Attribute,
			Tag:       base64.StdEncoding.EncodeToString(e.Tag),
		}
	}
	return wireManifest{
		FormatVersion: m.FormatVersion,
		ArtifactName:  m.ArtifactName,
		SkeletonEntry: m.SkeletonEntry,
		HMACKey:       base64.StdEncoding.EncodeToString(m.HMACKey),
		HMACAlgorithm: m.HMACAlgorithm,
		Entries:       entries,
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339Nano),
		BuildInfo:     m.BuildInfo,
	}
}

func fromWire(wire wireManifest) (*Manifest, error) {
	key, err := base64.StdEncoding.DecodeString(wire.HMACKey)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindManifest, "decoding hmac_key", err)
	}

	entries := make([]Entry, len(wire.Entries))
	for i, e := range wire.Entries {
		tag, err := base64.StdEncoding.DecodeString(e.Tag)
		if err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindManifest, "decoding entry tag", err)
		}
		entries[i] = Entry{Name: e.Name, Codec: e.Codec, Attribute: e.Attribute, Tag: tag}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, wire.CreatedAt)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindManifest, "decoding created_at", err)
	}

	return &Manifest{
		FormatVersion: wire.FormatVersion,
		ArtifactName:  wire.ArtifactName,
		SkeletonEntry: wire.SkeletonEntry,
		HMACKey:       key,
		HMACAlgorithm: wire.HMACAlgorithm,
		Entries:       entries,
		CreatedAt:     createdAt,
		BuildInfo:     wire.BuildInfo,
	}, nil
}

// EntryByName returns the entry with the given name, if present.
func (m *Manifest) EntryByName(name string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// CurrentBuildInfo reports this binary's module path and version, for
// recording in a manifest's informational build_info field. Returns nil
// when build info is unavailable (e.g. a binary built without module mode).
func CurrentBuildInfo() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return map[string]string{
		"module":  info.Main.Path,
		"version": info.Main.Version,
	}
}

// AttributeEntries returns every entry that is not the skeleton entry.
func (m *Manifest) AttributeEntries() []Entry {
	out := make([]Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if !e.IsSkeleton() {
			out = append(out, e)
		}
	}
	return out
}
