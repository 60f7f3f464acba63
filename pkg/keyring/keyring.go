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

// Package keyring implements the trusted-keys directory layout a Verifier
// consults: public key files, a name-to-fingerprint index, and a trust
// database recording a trust level and optional expiry per fingerprint.
package keyring

import (
	"crypto"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// TrustLevel mirrors the OpenPGP-style trust assignments a trust database
// entry can carry.
type TrustLevel string

const (
	TrustUltimate TrustLevel = "ultimate"
	TrustFull     TrustLevel = "full"
	TrustMarginal TrustLevel = "marginal"
	TrustNone     TrustLevel = "none"
)

// DefaultExpiryWarningDays is the default warning window before a key's
// recorded expiry, carried over from the original check_gpg_keys tooling.
const DefaultExpiryWarningDays = 30

// DefaultTrustedKeysDirEnv is the environment variable overriding the
// trusted-keys directory path.
const DefaultTrustedKeysDirEnv = "ARTIFACT_TRUSTED_KEYS_DIR"

// UnsafeTestingEnv gates acceptance of the checked-in unsafe test key.
const UnsafeTestingEnv = "ARTIFACT_UNSAFE_TESTING_ENABLED"

// UnsafeTestFingerprint is a fingerprint checked in for tests only. It is
// never trusted unless UnsafeTestingEnv is set to "1".
const UnsafeTestFingerprint = "56BC24E20C87C09D3F8C76A96FD20A3075CFFAF2"

// trustRecord is the on-disk shape of one trustdb.json entry.
type trustRecord struct {
	Trust     TrustLevel `json:"trust"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Keyring is a loaded trusted-keys directory: public keys by fingerprint,
// a name index, and trust/expiry metadata.
type Keyring struct {
	dir         string
	fingerprint map[string]crypto.PublicKey // fingerprint -> public key
	nameToFpr   map[string]string           // key name -> fingerprint
	trust       map[string]trustRecord      // fingerprint -> trust record
}

// Dir returns the ARTIFACT_TRUSTED_KEYS_DIR override, or fallback if unset.
func Dir(fallback string) string {
	if v := os.Getenv(DefaultTrustedKeysDirEnv); v != "" {
		return v
	}
	return fallback
}

// Load reads a trusted-keys directory: every "*.pub" file (PEM-encoded
// public key, named by fingerprint), "keyname-to-fingerprint.json", and
// "trustdb.json".
func Load(dir string) (*Keyring, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindIO, "reading trusted keys directory "+dir, err)
	}

	kr := &Keyring{
		dir:         dir,
		fingerprint: make(map[string]crypto.PublicKey),
		nameToFpr:   make(map[string]string),
		trust:       make(map[string]trustRecord),
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pub" {
			continue
		}
		fpr := entry.Name()[:len(entry.Name())-len(".pub")]
		pemBytes, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindIO, "reading public key "+entry.Name(), err)
		}
		pub, err := parsePublicKeyPEM(pemBytes)
		if err != nil {
			return nil, artifacterrors.WrapPath(artifacterrors.KindTrust, dir, "parsing public key "+entry.Name(), err)
		}
		kr.fingerprint[fpr] = pub
	}

	if nameData, err := os.ReadFile(filepath.Join(dir, "keyname-to-fingerprint.json")); err == nil {
		if err := json.Unmarshal(nameData, &kr.nameToFpr); err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindTrust, "parsing keyname-to-fingerprint.json", err)
		}
	}

	if trustData, err := os.ReadFile(filepath.Join(dir, "trustdb.json")); err == nil {
		if err := json.Unmarshal(trustData, &kr.trust); err != nil {
			return nil, artifacterrors.Wrap(artifacterrors.KindTrust, "parsing trustdb.json", err)
		}
	}

	return kr, nil
}

// PublicKey returns the public key registered under fingerprint, refusing
// the checked-in unsafe test fingerprint unless UnsafeTestingEnv is set.
func (k *Keyring) PublicKey(fingerprint string) (crypto.PublicKey, error) {
	if fingerprint == UnsafeTestFingerprint && !unsafeTestingEnabled() {
		return nil, artifacterrors.New(artifacterrors.KindTrust, "refusing unsafe test-only fingerprint; set "+UnsafeTestingEnv+"=1 to allow in tests")
	}
	pub, ok := k.fingerprint[fingerprint]
	if !ok {
		return nil, artifacterrors.New(artifacterrors.KindTrust, "fingerprint "+fingerprint+" is not present in the trusted keyring")
	}
	return pub, nil
}

// IsTrusted reports whether fingerprint carries a trust level above "none".
func (k *Keyring) IsTrusted(fingerprint string) bool {
	rec, ok := k.trust[fingerprint]
	if !ok {
		return false
	}
	return rec.Trust != TrustNone && rec.Trust != ""
}

// ExpiresAt returns the recorded expiry for fingerprint, if any.
func (k *Keyring) ExpiresAt(fingerprint string) (time.Time, bool) {
	rec, ok := k.trust[fingerprint]
	if !ok || rec.ExpiresAt == nil {
		return time.Time{}, false
	}
	return *rec.ExpiresAt, true
}

// FingerprintForName resolves a human-readable key name via the
// keyname-to-fingerprint index.
func (k *Keyring) FingerprintForName(name string) (string, bool) {
	fpr, ok := k.nameToFpr[name]
	return fpr, ok
}

// Fingerprints returns every fingerprint carrying a trust record, for
// expiry-reporting purposes.
func (k *Keyring) Fingerprints() []string {
	out := make([]string, 0, len(k.trust))
	for fpr := range k.trust {
		out = append(out, fpr)
	}
	return out
}

// DaysUntilExpiry returns the number of days until fingerprint's recorded
// expiry, relative to now. A key with no recorded expiry returns
// +Inf, mirroring the "no expiration" sentinel of the original tooling
// without reusing its epoch-as-marker convention.
func (k *Keyring) DaysUntilExpiry(fingerprint string, now time.Time) float64 {
	expiry, ok := k.ExpiresAt(fingerprint)
	if !ok {
		return math.Inf(1)
	}
	return expiry.Sub(now).Hours() / 24
}

// ExpiryStatus classifies a key's expiry standing relative to a warning
// window.
type ExpiryStatus int

const (
	ExpiryOK ExpiryStatus = iota
	ExpiryWarning
	ExpiryExpired
)

// WarnNearExpiry classifies fingerprint's expiry standing against
// warningDays, using now as the reference time.
func (k *Keyring) WarnNearExpiry(fingerprint string, warningDays int, now time.Time) (ExpiryStatus, float64) {
	days := k.DaysUntilExpiry(fingerprint, now)
	switch {
	case days < 0:
		return ExpiryExpired, days
	case days < float64(warningDays):
		return ExpiryWarning, days
	default:
		return ExpiryOK, days
	}
}

func unsafeTestingEnabled() bool {
	return os.Getenv(UnsafeTestingEnv) == "1"
}
