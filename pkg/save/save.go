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

// Package save implements the save pipeline: turn a composite artifact
// into a signed, integrity-bound archive. Every declared attribute is
// serialized through its own VerifiableStream before the artifact is
// reduced to a skeleton of sentinels, the skeleton is serialized the same
// way, a canonical manifest is built over the resulting tags, and the
// manifest is signed before anything is written to the archive sink.
package save

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kensho-technologies/signedartifact/pkg/archive"
	"github.com/kensho-technologies/signedartifact/pkg/artifact"
	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
	"github.com/kensho-technologies/signedartifact/pkg/codec"
	"github.com/kensho-technologies/signedartifact/pkg/codec/genericobject"
	"github.com/kensho-technologies/signedartifact/pkg/logging"
	"github.com/kensho-technologies/signedartifact/pkg/manifest"
	"github.com/kensho-technologies/signedartifact/pkg/sentinel"
	"github.com/kensho-technologies/signedartifact/pkg/signing"
	"github.com/kensho-technologies/signedartifact/pkg/stream"
	"github.com/kensho-technologies/signedartifact/pkg/tracing"
)

// skeletonCodecName is the codec the skeleton document is always encoded
// with, regardless of which codecs the composite's own attributes use.
const skeletonCodecName = genericobject.Name

// Options configures one save call.
type Options struct {
	// Registry resolves every codec name a composite's attributes declare.
	Registry *codec.Registry
	// Signer produces the detached DSSE signature over the manifest.
	Signer signing.Signer
	// KeyFingerprint and Passphrase address the signing key within Signer.
	KeyFingerprint string
	Passphrase     string
	// HMACAlgorithm selects the keyed-hash construction for every
	// VerifiableStream this save creates; the zero value is
	// stream.AlgorithmHMACSHA256.
	HMACAlgorithm stream.Algorithm
	// Now supplies the manifest's created_at timestamp; defaults to
	// time.Now when nil, overridable in tests.
	Now func() time.Time
	// Logger receives one line per major pipeline transition. Falls back
	// to logging.Default() when nil.
	Logger logging.Logger
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ToFile saves composite to a new archive at path, using a temp-file-then-
// rename write so a failed save never leaves a partial file at path.
func ToFile(composite artifact.Composite, path string, opts Options) error {
	w, err := archive.NewFileWriter(path)
	if err != nil {
		return err
	}
	return tracing.Run(context.Background(), "artifact.save", map[string]interface{}{"path": path}, func(ctx context.Context) error {
		return run(ctx, composite, w, opts)
	})
}

// ToStream saves composite to sink. The save-to-stream variant does not
// rewind: callers must treat an aborted sink as invalid.
func ToStream(composite artifact.Composite, sink io.WriteCloser, opts Options) error {
	w, err := archive.NewStreamWriter(sink)
	if err != nil {
		return err
	}
	return tracing.Run(context.Background(), "artifact.save", nil, func(ctx context.Context) error {
		return run(ctx, composite, w, opts)
	})
}

func run(ctx context.Context, composite artifact.Composite, w *archive.Writer, opts Options) error {
	logger := logging.EnsureLogger(opts.Logger)
	if err := save(ctx, composite, w, opts, logger); err != nil {
		w.Abort()
		return err
	}
	logger.Info("archive written for %s", composite.Name())
	return w.Close()
}

func save(ctx context.Context, composite artifact.Composite, w *archive.Writer, opts Options, logger logging.Logger) error {
	bindings := composite.Attributes()

	// Step 1: validate the declared attribute map against the live object.
	values := make(map[string]any, len(bindings))
	for attr := range bindings {
		v, err := composite.GetAttribute(attr)
		if err != nil {
			return artifacterrors.Wrap(artifacterrors.KindModel, "reading declared attribute "+attr, err)
		}
		values[attr] = v
	}

	// Step 2: generate a fresh HMAC key for this save.
	hmacKey, err := stream.GenerateKey(opts.HMACAlgorithm)
	if err != nil {
		return err
	}

	// Step 3: serialize each attribute into its own VerifiableStream.
	var entries []manifest.Entry
	entryBytes := make(map[string][]byte, len(bindings)+1)

	resolvedBindings := make(map[string]artifact.AttributeBinding, len(bindings))
	for attr, binding := range bindings {
		// A composite that does not pin an explicit entry name gets one
		// generated, so archive entry names never collide across saves.
		if binding.Entry == "" {
			binding.Entry = attr + "-" + uuid.NewString() + ".bin"
		}
		resolvedBindings[attr] = binding

		err := tracing.Run(ctx, "save.attribute", map[string]interface{}{"attribute": attr, "codec": binding.Codec}, func(context.Context) error {
			c, err := opts.Registry.Get(binding.Codec)
			if err != nil {
				return err
			}
			s, err := stream.New(hmacKey, opts.HMACAlgorithm)
			if err != nil {
				return err
			}
			if err := c.Serialize(values[attr], s); err != nil {
				return err
			}
			tag := s.Finalize()
			data, err := s.ReadAll()
			if err != nil {
				return err
			}
			entries = append(entries, manifest.Entry{
				Name:      binding.Entry,
				Codec:     binding.Codec,
				Attribute: attr,
				Tag:       tag,
			})
			entryBytes[binding.Entry] = data

			// Step 4: replace the live attribute with a sentinel; the
			// composite is now a skeleton.
			sent := sentinel.Sentinel{Attribute: attr, Codec: binding.Codec, Entry: binding.Entry}
			if err := composite.SetAttribute(attr, sent); err != nil {
				return artifacterrors.Wrap(artifacterrors.KindModel, "replacing attribute "+attr+" with sentinel", err)
			}
			logger.Debug("attribute %s serialized via %s codec", attr, binding.Codec)
			return nil
		})
		if err != nil {
			return err
		}
	}

	// Step 5: serialize the skeleton itself via the generic-object codec.
	skeletonCodec, err := opts.Registry.Get(skeletonCodecName)
	if err != nil {
		return err
	}
	skeleton := artifact.BuildSkeleton(composite.Name(), resolvedBindings)
	skeletonStream, err := stream.New(hmacKey, opts.HMACAlgorithm)
	if err != nil {
		return err
	}
	if err := skeletonCodec.Serialize(skeleton, skeletonStream); err != nil {
		return err
	}
	skeletonTag := skeletonStream.Finalize()
	skeletonBytes, err := skeletonStream.ReadAll()
	if err != nil {
		return err
	}
	entries = append(entries, manifest.Entry{
		Name:  artifact.SkeletonEntryName,
		Codec: skeletonCodecName,
		Tag:   skeletonTag,
	})
	entryBytes[artifact.SkeletonEntryName] = skeletonBytes
	logger.Debug("skeleton serialized for %s", composite.Name())

	// Step 6: build the canonical manifest.
	knownCodecs := make(map[string]bool)
	for _, name := range opts.Registry.Names() {
		knownCodecs[name] = true
	}
	m, err := manifest.Build(composite.Name(), artifact.SkeletonEntryName, hmacKey, string(opts.HMACAlgorithm), entries, knownCodecs, opts.now())
	if err != nil {
		return err
	}
	m.BuildInfo = manifest.CurrentBuildInfo()
	canonical, err := m.CanonicalBytes()
	if err != nil {
		return err
	}
	logger.Debug("manifest built with %d entries", len(m.Entries))

	// Step 7: sign the manifest.
	env, err := opts.Signer.Sign(canonical, opts.KeyFingerprint, opts.Passphrase)
	if err != nil {
		return err
	}
	sigBytes, err := signing.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	logger.Debug("manifest signed with key %s", opts.KeyFingerprint)

	// Step 8: write the archive: manifest, then signature, then each
	// entry blob in manifest order.
	if err := w.WriteEntry(archive.ManifestEntryName, canonical); err != nil {
		return err
	}
	if err := w.WriteEntry(archive.SignatureEntryName, sigBytes); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := w.WriteEntry(e.Name, entryBytes[e.Name]); err != nil {
			return err
		}
	}

	// Step 9: hmacKey goes out of scope here; nothing else retains it.
	return nil
}
