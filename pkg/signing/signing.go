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

// Package signing wraps the detached-signature backend the save pipeline
// calls to produce manifest.sig: a DSSE envelope over the canonical
// manifest bytes, signed with an on-disk private key addressed by
// fingerprint.
package signing

import (
	"crypto"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	dsselib "github.com/secure-systems-lab/go-securesystemslib/dsse"

	internalcrypto "github.com/kensho-technologies/signedartifact/internal/crypto"
	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// ManifestPayloadType is the DSSE payload type recorded in every envelope
// this package produces.
const ManifestPayloadType = "application/vnd.kensho.signedartifact.manifest+json"

// Signer produces a detached DSSE signature over canonical manifest bytes.
type Signer interface {
	Sign(manifestBytes []byte, fingerprint, passphrase string) (*dsselib.Envelope, error)
}

// keyMetadata is the sidecar file recording the optional expiry for one
// signing key, mirroring the trust database's per-fingerprint expiry.
type keyMetadata struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// KeySigner signs with a private key loaded from a home directory of
// "<fingerprint>.key" PEM files, optionally encrypted, addressed by the
// fingerprint the caller supplies.
type KeySigner struct {
	homeDir string
}

// NewKeySigner returns a Signer backed by homeDir.
func NewKeySigner(homeDir string) *KeySigner {
	return &KeySigner{homeDir: homeDir}
}

// Sign loads the private key for fingerprint from the signer's home
// directory, decrypting it with passphrase if necessary, and returns a
// DSSE envelope wrapping manifestBytes signed with that key.
func (s *KeySigner) Sign(manifestBytes []byte, fingerprint, passphrase string) (*dsselib.Envelope, error) {
	if len(manifestBytes) == 0 {
		return nil, artifacterrors.New(artifacterrors.KindSign, "cannot sign an empty manifest")
	}

	signer, err := s.loadPrivateKey(fingerprint, passphrase)
	if err != nil {
		return nil, err
	}

	if err := s.checkExpiry(fingerprint); err != nil {
		return nil, err
	}

	pae := internalcrypto.ComputePAE(ManifestPayloadType, manifestBytes)
	sig, err := internalcrypto.SignWithKey(signer, pae)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindSign, "signing manifest", err)
	}

	return buildEnvelope(manifestBytes, sig, fingerprint), nil
}

func (s *KeySigner) loadPrivateKey(fingerprint, passphrase string) (crypto.Signer, error) {
	path := filepath.Join(s.homeDir, fingerprint+".key")
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, artifacterrors.WrapPath(artifacterrors.KindSign, path, "unknown signing key "+fingerprint, err)
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, artifacterrors.WrapPath(artifacterrors.KindSign, path, "no PEM block in signing key file", nil)
	}

	der := block.Bytes
	//nolint:staticcheck // legacy PEM encryption is still what on-disk test fixtures use
	if x509.IsEncryptedPEMBlock(block) {
		if passphrase == "" {
			return nil, artifacterrors.WrapPath(artifacterrors.KindSign, path, "signing key is encrypted but no passphrase was supplied", nil)
		}
		//nolint:staticcheck // see above
		der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, artifacterrors.WrapPath(artifacterrors.KindSign, path, "wrong passphrase for signing key", err)
		}
	}

	key, err := parsePrivateKeyDER(der)
	if err != nil {
		return nil, artifacterrors.WrapPath(artifacterrors.KindSign, path, "parsing signing key", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, artifacterrors.WrapPath(artifacterrors.KindSign, path, "signing key does not implement crypto.Signer", nil)
	}
	return signer, nil
}

func (s *KeySigner) checkExpiry(fingerprint string) error {
	path := filepath.Join(s.homeDir, fingerprint+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil // no metadata recorded; treat as never expiring
	}
	var meta keyMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return artifacterrors.WrapPath(artifacterrors.KindSign, path, "parsing signing key metadata", err)
	}
	if meta.ExpiresAt != nil && meta.ExpiresAt.Before(time.Now()) {
		return artifacterrors.New(artifacterrors.KindSign, fmt.Sprintf("signing key %s expired at %s", fingerprint, meta.ExpiresAt))
	}
	return nil
}

func parsePrivateKeyDER(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unrecognized private key encoding")
}
