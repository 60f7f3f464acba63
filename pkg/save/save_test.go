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

package save

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kensho-technologies/signedartifact/pkg/archive"
	"github.com/kensho-technologies/signedartifact/pkg/artifact"
	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
	"github.com/kensho-technologies/signedartifact/pkg/codec"
	"github.com/kensho-technologies/signedartifact/pkg/codec/genericobject"
	"github.com/kensho-technologies/signedartifact/pkg/codec/tensor"
	"github.com/kensho-technologies/signedartifact/pkg/sentinel"
	"github.com/kensho-technologies/signedartifact/pkg/signing"
)

// demoComposite is a minimal artifact.Composite used only to exercise the
// save pipeline: one "weights" attribute encoded via the tensor codec.
type demoComposite struct {
	name         string
	weights      tensor.Array
	lastSentinel sentinel.Sentinel
}

func (d *demoComposite) Name() string { return d.name }

func (d *demoComposite) Attributes() map[string]artifact.AttributeBinding {
	return map[string]artifact.AttributeBinding{
		"weights": {Codec: tensor.Name, Entry: "weights.bin"},
	}
}

func (d *demoComposite) GetAttribute(name string) (any, error) {
	if name != "weights" {
		return nil, artifacterrors.New(artifacterrors.KindModel, "unknown attribute "+name)
	}
	return d.weights, nil
}

func (d *demoComposite) SetAttribute(name string, value any) error {
	if name != "weights" {
		return artifacterrors.New(artifacterrors.KindModel, "unknown attribute "+name)
	}
	if sent, ok := value.(sentinel.Sentinel); ok {
		d.lastSentinel = sent
		return nil
	}
	arr, ok := value.(tensor.Array)
	if !ok {
		return artifacterrors.New(artifacterrors.KindModel, "wrong type for weights")
	}
	d.weights = arr
	return nil
}

func newRegistry() *codec.Registry {
	r := codec.NewRegistry()
	if err := r.RegisterAll(map[string]codec.Codec{
		genericobject.Name: genericobject.Codec{},
		tensor.Name:         tensor.Codec{},
	}); err != nil {
		panic(err)
	}
	return r
}

func writeSigningKey(t *testing.T) (dir, fingerprint string) {
	t.Helper()
	dir = t.TempDir()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "FPR1.key"), pem.EncodeToMemory(block), 0o600))
	return dir, "FPR1"
}

func TestToFileProducesFourEntryArchive(t *testing.T) {
	signingDir, fpr := writeSigningKey(t)
	composite := &demoComposite{name: "demo", weights: tensor.Array{Shape: []int64{2}, Data: []float64{1, 2}}}

	path := filepath.Join(t.TempDir(), "artifact.tar.zst")
	err := ToFile(composite, path, Options{
		Registry:       newRegistry(),
		Signer:         signing.NewKeySigner(signingDir),
		KeyFingerprint: fpr,
	})
	require.NoError(t, err)

	r, err := archive.OpenFile(path)
	require.NoError(t, err)
	defer r.Close()

	_, ok := r.Entry(archive.ManifestEntryName)
	require.True(t, ok)
	_, ok = r.Entry(archive.SignatureEntryName)
	require.True(t, ok)
	_, ok = r.Entry("weights.bin")
	require.True(t, ok)
	_, ok = r.Entry(artifact.SkeletonEntryName)
	require.True(t, ok)
}

func TestToFileReplacesAttributeWithSentinel(t *testing.T) {
	signingDir, fpr := writeSigningKey(t)
	composite := &demoComposite{name: "demo", weights: tensor.Array{Shape: []int64{1}, Data: []float64{7}}}

	path := filepath.Join(t.TempDir(), "artifact.tar.zst")
	err := ToFile(composite, path, Options{
		Registry:       newRegistry(),
		Signer:         signing.NewKeySigner(signingDir),
		KeyFingerprint: fpr,
	})
	require.NoError(t, err)
	require.Equal(t, "weights", composite.lastSentinel.Attribute)
	require.Equal(t, tensor.Name, composite.lastSentinel.Codec)
	require.Equal(t, "weights.bin", composite.lastSentinel.Entry)
}

func TestToFileAbortsOnSignError(t *testing.T) {
	signingDir := t.TempDir() // no key written
	composite := &demoComposite{name: "demo", weights: tensor.Array{Shape: []int64{1}, Data: []float64{7}}}

	path := filepath.Join(t.TempDir(), "artifact.tar.zst")
	err := ToFile(composite, path, Options{
		Registry:       newRegistry(),
		Signer:         signing.NewKeySigner(signingDir),
		KeyFingerprint: "NOSUCHKEY",
	})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
