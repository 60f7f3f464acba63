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

// Package load implements the load pipeline: verify a signed archive's
// manifest, re-derive and check every entry's tag before any codec other
// than the trusted manifest parser and the generic-object skeleton codec
// runs, decode and bind every declared attribute, then run the post-load
// hook and validation callback. Every forward step depends on the previous
// one having already succeeded; none can be skipped or reordered.
package load

import (
	"bytes"
	"context"
	"io"

	"github.com/kensho-technologies/signedartifact/pkg/archive"
	"github.com/kensho-technologies/signedartifact/pkg/artifact"
	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
	"github.com/kensho-technologies/signedartifact/pkg/codec"
	"github.com/kensho-technologies/signedartifact/pkg/keyring"
	"github.com/kensho-technologies/signedartifact/pkg/logging"
	"github.com/kensho-technologies/signedartifact/pkg/manifest"
	"github.com/kensho-technologies/signedartifact/pkg/signing"
	"github.com/kensho-technologies/signedartifact/pkg/stream"
	"github.com/kensho-technologies/signedartifact/pkg/tracing"
	"github.com/kensho-technologies/signedartifact/pkg/verify"
)

// Options configures one load call.
type Options struct {
	// Registry resolves every codec name the loaded manifest declares.
	Registry *codec.Registry
	// Verifier checks the manifest.sig envelope against TrustStore.
	Verifier verify.Verifier
	// TrustStore is the keyring consulted for signer trust and expiry.
	TrustStore *keyring.Keyring
	// AllowExpiredSigningKey overrides the default refusal of archives
	// signed by an expired key.
	AllowExpiredSigningKey bool
	// Logger receives one line per major pipeline transition, plus the
	// non-blocking build_info mismatch warning. Falls back to
	// logging.Default() when nil.
	Logger logging.Logger
}

// Into opens the archive at path, verifies and decodes it, and binds its
// attributes onto composite before running its post-load hook and
// validation callback.
func Into(composite artifact.Composite, path string, opts Options) error {
	r, err := archive.OpenFile(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return tracing.Run(context.Background(), "artifact.load", map[string]interface{}{"path": path}, func(ctx context.Context) error {
		return run(ctx, composite, r, opts)
	})
}

// IntoStream is the streaming variant of Into.
func IntoStream(ctx context.Context, composite artifact.Composite, source io.Reader, opts Options) error {
	r, err := archive.NewReader(source)
	if err != nil {
		return err
	}
	defer r.Close()
	return tracing.Run(ctx, "artifact.load", nil, func(ctx context.Context) error {
		return run(ctx, composite, r, opts)
	})
}

func run(ctx context.Context, composite artifact.Composite, r *archive.Reader, opts Options) error {
	// Step 1: read and buffer the manifest and signature blobs.
	manifestBytes, ok := r.Entry(archive.ManifestEntryName)
	if !ok {
		return artifacterrors.New(artifacterrors.KindIntegrity, "archive has no manifest entry")
	}
	sigBytes, ok := r.Entry(archive.SignatureEntryName)
	if !ok {
		return artifacterrors.New(artifacterrors.KindIntegrity, "archive has no signature entry")
	}

	// Step 2: verify the signature before trusting anything about the
	// manifest's structure.
	env, err := signing.UnmarshalEnvelope(sigBytes)
	if err != nil {
		return err
	}
	if _, err := opts.Verifier.Verify(env, opts.TrustStore, opts.AllowExpiredSigningKey); err != nil {
		return err
	}
	payload, err := signing.DecodePayload(env)
	if err != nil {
		return err
	}
	if !bytes.Equal(payload, manifestBytes) {
		return artifacterrors.New(artifacterrors.KindSignature, "signed payload does not match archive manifest entry")
	}
	logger := logging.EnsureLogger(opts.Logger)
	logger.Debug("signature verified for %s", archive.SignatureEntryName)

	// Step 3: parse and validate the manifest.
	m, err := manifest.Parse(manifestBytes)
	if err != nil {
		return err
	}
	logger.Debug("manifest parsed with %d entries", len(m.Entries))
	warnOnBuildInfoMismatch(logger, m.BuildInfo)

	// Step 4: verify every non-skeleton entry's tag, in manifest order,
	// and require an exact match between manifest entries and archive
	// entries.
	archiveNames := make(map[string]bool, len(r.Names()))
	for _, name := range r.Names() {
		if name == archive.ManifestEntryName || name == archive.SignatureEntryName {
			continue
		}
		archiveNames[name] = true
	}

	manifestNames := make(map[string]bool, len(m.Entries))
	for _, e := range m.Entries {
		manifestNames[e.Name] = true
	}
	for name := range archiveNames {
		if !manifestNames[name] {
			return artifacterrors.New(artifacterrors.KindIntegrity, "archive entry "+name+" is not declared in the manifest")
		}
	}
	for name := range manifestNames {
		if !archiveNames[name] {
			return artifacterrors.New(artifacterrors.KindIntegrity, "manifest entry "+name+" is missing from the archive")
		}
	}

	for _, e := range m.AttributeEntries() {
		e := e
		err := tracing.Run(ctx, "load.verify_entry", map[string]interface{}{"entry": e.Name}, func(context.Context) error {
			if err := verifyEntryTag(r, e, m.HMACKey, m.HMACAlgorithm); err != nil {
				return err
			}
			logger.Debug("entry %s verified", e.Name)
			return nil
		})
		if err != nil {
			return err
		}
	}

	// Step 5: verify the skeleton entry identically.
	skeletonEntry, ok := m.EntryByName(m.SkeletonEntry)
	if !ok {
		return artifacterrors.New(artifacterrors.KindIntegrity, "manifest's skeleton_entry is not one of its entries")
	}
	if err := verifyEntryTag(r, skeletonEntry, m.HMACKey, m.HMACAlgorithm); err != nil {
		return err
	}

	// Step 6: decode the skeleton and check every sentinel against the
	// manifest's declared bindings.
	skeletonRaw, _ := r.Entry(skeletonEntry.Name)
	skeleton, err := artifact.DecodeSkeleton(skeletonRaw)
	if err != nil {
		return err
	}
	logger.Debug("skeleton decoded for %s", skeleton.ArtifactName)
	declared := make(map[string]artifact.AttributeBinding, len(m.AttributeEntries()))
	for _, e := range m.AttributeEntries() {
		declared[e.Attribute] = artifact.AttributeBinding{Codec: e.Codec, Entry: e.Name}
	}
	if err := skeleton.Matches(declared); err != nil {
		return err
	}

	// Step 7: decode and bind each declared attribute.
	for attr, binding := range declared {
		e, _ := m.EntryByName(binding.Entry)
		c, err := opts.Registry.Get(e.Codec)
		if err != nil {
			return err
		}
		raw, _ := r.Entry(e.Name)
		value, err := c.Deserialize(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		if err := composite.SetAttribute(attr, value); err != nil {
			return artifacterrors.Wrap(artifacterrors.KindModel, "binding attribute "+attr, err)
		}
		logger.Debug("attribute %s bound via %s codec", attr, binding.Codec)
	}

	// Step 8: post-load hook.
	if hook, ok := composite.(artifact.PostLoadHook); ok {
		if err := hook.PostLoad(ctx); err != nil {
			return err
		}
		logger.Debug("post-load hook ran for %s", composite.Name())
	}

	// Step 9: validation callback.
	if validator, ok := composite.(artifact.Validator); ok {
		if err := validator.Validate(ctx); err != nil {
			return artifacterrors.Wrap(artifacterrors.KindValidation, "validating reconstituted artifact", err)
		}
		logger.Debug("validation passed for %s", composite.Name())
	}
	logger.Info("archive loaded for %s", composite.Name())

	return nil
}

// warnOnBuildInfoMismatch logs, but never fails, when the manifest's
// recorded build_info disagrees with the running binary's own module
// version. A mismatch means the archive was written by a different build
// of this software, not that it is untrustworthy.
func warnOnBuildInfoMismatch(logger logging.Logger, recorded map[string]string) {
	if recorded == nil {
		return
	}
	current := manifest.CurrentBuildInfo()
	if current == nil {
		return
	}
	if recorded["module"] == current["module"] && recorded["version"] != current["version"] {
		logger.Warn("archive was saved by %s@%s, running %s@%s", recorded["module"], recorded["version"], current["module"], current["version"])
	}
}

func verifyEntryTag(r *archive.Reader, e manifest.Entry, hmacKey []byte, algo string) error {
	raw, ok := r.Entry(e.Name)
	if !ok {
		return artifacterrors.New(artifacterrors.KindIntegrity, "manifest entry "+e.Name+" is missing from the archive")
	}
	s, _, err := stream.FromReader(bytes.NewReader(raw), hmacKey, stream.Algorithm(algo))
	if err != nil {
		return err
	}
	match, err := s.VerifyAgainst(e.Tag)
	if err != nil {
		return err
	}
	if !match {
		return artifacterrors.New(artifacterrors.KindIntegrity, "tag mismatch for entry "+e.Name)
	}
	return nil
}
