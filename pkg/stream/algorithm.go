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

package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a keyed-hash construction usable by a VerifiableStream.
// The zero value behaves as AlgorithmHMACSHA256.
type Algorithm string

const (
	// AlgorithmHMACSHA256 is HMAC over SHA-256, the default algorithm.
	AlgorithmHMACSHA256 Algorithm = "hmac-sha256"
	// AlgorithmHMACBLAKE2b is BLAKE2b-256 in its native keyed mode.
	AlgorithmHMACBLAKE2b Algorithm = "hmac-blake2b-256"
	// AlgorithmKeyedBLAKE3 is BLAKE3's native keyed-hash mode.
	AlgorithmKeyedBLAKE3 Algorithm = "keyed-blake3"
)

// KeySize returns the required key length in bytes for the algorithm.
func (a Algorithm) KeySize() int {
	return 32
}

// newMAC returns a fresh, keyed hash.Hash implementing the algorithm.
func newMAC(algo Algorithm, key []byte) (hash.Hash, error) {
	switch algo {
	case "", AlgorithmHMACSHA256:
		return hmac.New(sha256.New, key), nil
	case AlgorithmHMACBLAKE2b:
		h, err := blake2b.New256(key)
		if err != nil {
			return nil, fmt.Errorf("initializing keyed blake2b: %w", err)
		}
		return h, nil
	case AlgorithmKeyedBLAKE3:
		if len(key) != 32 {
			return nil, fmt.Errorf("keyed blake3 requires a 32-byte key, got %d", len(key))
		}
		k := [32]byte{}
		copy(k[:], key)
		h, err := blake3.NewKeyed(k[:])
		if err != nil {
			return nil, fmt.Errorf("initializing keyed blake3: %w", err)
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unrecognized hmac_algorithm %q", algo)
	}
}
