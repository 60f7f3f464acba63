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

// Package verify checks a detached DSSE envelope over canonical manifest
// bytes against a trusted keyring, enforcing the expired-key policy before
// the load pipeline is allowed to trust the manifest it wraps.
package verify

import (
	"time"

	dsselib "github.com/secure-systems-lab/go-securesystemslib/dsse"

	internalcrypto "github.com/kensho-technologies/signedartifact/internal/crypto"
	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
	"github.com/kensho-technologies/signedartifact/pkg/keyring"
	"github.com/kensho-technologies/signedartifact/pkg/signing"
)

// Verifier checks a DSSE envelope against a trusted keyring and returns the
// fingerprint of the key that signed it.
type Verifier interface {
	Verify(env *dsselib.Envelope, trustStore *keyring.Keyring, allowExpiredSigningKey bool) (fingerprint string, err error)
}

// KeyVerifier is the default Verifier: ordinary public-key cryptographic
// verification against a keyring's trust and expiry records.
type KeyVerifier struct {
	// Now is the reference time for expiry checks; defaults to time.Now
	// when nil, overridable in tests.
	Now func() time.Time
}

// Verify checks env's signature with the public key identified by its
// KeyID, requires that key to be present and trusted in trustStore, and
// enforces the expired-key policy unless allowExpiredSigningKey is set.
func (v *KeyVerifier) Verify(env *dsselib.Envelope, trustStore *keyring.Keyring, allowExpiredSigningKey bool) (string, error) {
	if len(env.Signatures) != 1 {
		return "", artifacterrors.New(artifacterrors.KindSignature, "expected exactly one signature in dsse envelope")
	}
	fingerprint := env.Signatures[0].KeyID
	if fingerprint == "" {
		return "", artifacterrors.New(artifacterrors.KindSignature, "dsse envelope signature carries no key id")
	}

	pub, err := trustStore.PublicKey(fingerprint)
	if err != nil {
		return "", err
	}
	if !trustStore.IsTrusted(fingerprint) {
		return "", artifacterrors.New(artifacterrors.KindTrust, "signer "+fingerprint+" is not trusted by the keyring")
	}

	payload, err := signing.DecodePayload(env)
	if err != nil {
		return "", err
	}
	sigBytes, err := decodeSigBytes(env.Signatures[0].Sig)
	if err != nil {
		return "", artifacterrors.Wrap(artifacterrors.KindSignature, "decoding dsse signature", err)
	}

	pae := internalcrypto.ComputePAE(env.PayloadType, payload)
	if err := internalcrypto.VerifySignature(pub, pae, sigBytes); err != nil {
		return "", artifacterrors.Wrap(artifacterrors.KindSignature, "dsse signature verification failed", err)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if expiry, ok := trustStore.ExpiresAt(fingerprint); ok && expiry.Before(now()) {
		if !allowExpiredSigningKey {
			return "", artifacterrors.New(artifacterrors.KindExpiredKey, "signing key "+fingerprint+" expired at "+expiry.String())
		}
	}

	return fingerprint, nil
}
