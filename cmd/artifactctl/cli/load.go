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
	"github.com/kensho-technologies/signedartifact/pkg/keyring"
	"github.com/kensho-technologies/signedartifact/pkg/load"
	"github.com/kensho-technologies/signedartifact/pkg/verify"
)

type loadOptions struct {
	InputPath      string
	OutputDir      string
	TrustedKeysDir string
	AllowExpired   bool
}

func newLoadCommand() *cobra.Command {
	o := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Verify a signed composite artifact archive and unpack it to a directory.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLoad(o)
		},
	}

	cmd.Flags().StringVar(&o.InputPath, "in", "", "path to the signed archive to load [required]")
	cmd.Flags().StringVar(&o.OutputDir, "out", "", "directory to write the archive's attributes to [required]")
	cmd.Flags().StringVar(&o.TrustedKeysDir, "trusted-keys-dir", "",
		"directory holding trusted public keys and the trust database ("+keyring.DefaultTrustedKeysDirEnv+", when set, takes precedence over this flag)")
	cmd.Flags().BoolVar(&o.AllowExpired, "allow-expired-signing-key", false,
		"accept an archive signed by a key the trust store reports as expired")

	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runLoad(o *loadOptions) error {
	logger := ro.NewLogger()

	kr, err := keyring.Load(keyring.Dir(o.TrustedKeysDir))
	if err != nil {
		return err
	}

	registry := codec.NewRegistry()
	if err := registry.Register(genericobject.Name, genericobject.Codec{}); err != nil {
		return err
	}

	composite := newDirComposite("")
	err = load.Into(composite, o.InputPath, load.Options{
		Registry:               registry,
		Verifier:               &verify.KeyVerifier{},
		TrustStore:             kr,
		AllowExpiredSigningKey: o.AllowExpired,
		Logger:                 logger,
	})
	if err != nil {
		return err
	}

	if err := composite.writeTo(o.OutputDir); err != nil {
		return err
	}

	for _, name := range composite.sortedAttributeNames() {
		logger.Info("wrote %s", name)
	}
	return nil
}
