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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kensho-technologies/signedartifact/pkg/keyring"
)

type keyExpiryOptions struct {
	TrustedKeysDir string
	DaysBeforeWarn int
}

func newKeyExpiryCommand() *cobra.Command {
	o := &keyExpiryOptions{}

	cmd := &cobra.Command{
		Use:   "key-expiry",
		Short: "Report on every trusted key's standing against an expiry warning window.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeyExpiry(cmd, o)
		},
	}

	cmd.Flags().StringVar(&o.TrustedKeysDir, "trusted-keys-dir", "",
		"directory holding trusted public keys and the trust database ("+keyring.DefaultTrustedKeysDirEnv+", when set, takes precedence over this flag)")
	cmd.Flags().IntVar(&o.DaysBeforeWarn, "days-before-warning", 30,
		"number of days before expiry at which a trusted key is reported as nearing expiry")

	return cmd
}

func runKeyExpiry(cmd *cobra.Command, o *keyExpiryOptions) error {
	logger := ro.NewLogger()

	dir := keyring.Dir(o.TrustedKeysDir)
	kr, err := keyring.Load(dir)
	if err != nil {
		return err
	}

	now := time.Now()
	worst := keyring.ExpiryOK
	for _, fpr := range kr.Fingerprints() {
		status, days := kr.WarnNearExpiry(fpr, o.DaysBeforeWarn, now)
		switch status {
		case keyring.ExpiryExpired:
			logger.Error("EXPIRED %s (%.1f days ago)", fpr, -days)
		case keyring.ExpiryWarning:
			logger.Warn("WARN %s (%.1f days remaining)", fpr, days)
		default:
			logger.Info("OK %s (%.1f days remaining)", fpr, days)
		}
		if status > worst {
			worst = status
		}
	}

	if worst != keyring.ExpiryOK {
		return fmt.Errorf("%s: at least one trusted key is within %d days of expiry or has expired", cmd.Name(), o.DaysBeforeWarn)
	}
	return nil
}
