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

package signing

import (
	"encoding/base64"
	"encoding/json"

	dsselib "github.com/secure-systems-lab/go-securesystemslib/dsse"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

func buildEnvelope(payload, sig []byte, fingerprint string) *dsselib.Envelope {
	return &dsselib.Envelope{
		PayloadType: ManifestPayloadType,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Signatures: []dsselib.Signature{
			{Sig: base64.StdEncoding.EncodeToString(sig), KeyID: fingerprint},
		},
	}
}

// MarshalEnvelope encodes env as the bytes this module writes into an
// archive's manifest.sig entry.
func MarshalEnvelope(env *dsselib.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindSign, "encoding dsse envelope", err)
	}
	return data, nil
}

// UnmarshalEnvelope decodes an archive's manifest.sig entry into a DSSE
// envelope, without verifying the signature.
func UnmarshalEnvelope(data []byte) (*dsselib.Envelope, error) {
	var env dsselib.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindSignature, "decoding dsse envelope", err)
	}
	return &env, nil
}

// DecodePayload returns the raw (non-base64) payload bytes from env.
func DecodePayload(env *dsselib.Envelope) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return nil, artifacterrors.Wrap(artifacterrors.KindSignature, "decoding dsse payload", err)
	}
	return data, nil
}
