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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/kensho-technologies/signedartifact/pkg/codec"
	"github.com/kensho-technologies/signedartifact/pkg/codec/genericobject"
	"github.com/kensho-technologies/signedartifact/pkg/save"
	"github.com/kensho-technologies/signedartifact/pkg/signing"
	"github.com/kensho-technologies/signedartifact/pkg/stream"
)

type saveOptions struct {
	InputDir       string
	OutputPath     string
	ArtifactName   string
	SigningKeyDir  string
	KeyFingerprint string
	Passphrase     string
}

func newSaveCommand() *cobra.Command {
	o := &saveOptions{}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Pack a directory into a signed composite artifact archive.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runSave(o)
		},
	}

	cmd.Flags().StringVar(&o.InputDir, "in", "", "directory whose files become the archive's attributes [required]")
	cmd.Flags().StringVar(&o.OutputPath, "out", "", "path to write the signed archive to [required]")
	cmd.Flags().StringVar(&o.ArtifactName, "name", "artifact", "artifact name recorded in the manifest")
	cmd.Flags().StringVar(&o.SigningKeyDir, "signing-key-dir", "", "directory holding the signing private key [required]")
	cmd.Flags().StringVar(&o.KeyFingerprint, "fingerprint", "", "fingerprint of the signing key to use [required]")
	cmd.Flags().StringVar(&o.Passphrase, "passphrase", "", "passphrase for the signing private key, if encrypted")

	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("signing-key-dir")
	_ = cmd.MarkFlagRequired("fingerprint")

	return cmd
}

func runSave(o *saveOptions) error {
	logger := ro.NewLogger()

	composite, err := loadDirComposite(o.ArtifactName, o.InputDir)
	if err != nil {
		return err
	}
	logger.Info("packing %d attribute(s) from %s", len(composite.data), o.InputDir)

	registry := codec.NewRegistry()
	if err := registry.Register(genericobject.Name, genericobject.Codec{}); err != nil {
		return err
	}

	err = save.ToFile(composite, o.OutputPath, save.Options{
		Registry:       registry,
		Signer:         signing.NewKeySigner(o.SigningKeyDir),
		KeyFingerprint: o.KeyFingerprint,
		Passphrase:     o.Passphrase,
		HMACAlgorithm:  stream.AlgorithmHMACSHA256,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	logger.Info("wrote %s", o.OutputPath)
	return nil
}
