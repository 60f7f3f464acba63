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

// Package config loads the four recognized options a save or load pipeline
// accepts from a JSON-with-comments file, rejecting any key the schema does
// not recognize — the configuration-layer expression of the manifest's own
// "reject unknown top-level fields" invariant.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
	"github.com/kensho-technologies/signedartifact/pkg/keyring"
)

// TrustedKeysDirEnv is the environment variable overriding TrustedKeysDir
// when the config file omits it.
const TrustedKeysDirEnv = keyring.DefaultTrustedKeysDirEnv

const schemaDocument = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"trusted_keys_dir": {"type": "string"},
		"allow_expired_signing_key": {"type": "boolean"},
		"hmac_algorithm": {"type": "string"},
		"format_version": {"type": "integer", "minimum": 1}
	}
}`

const schemaResourceName = "config.schema.json"

var compiledSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResourceName, strings.NewReader(schemaDocument)); err != nil {
		panic("config: invalid embedded json schema: " + err.Error())
	}
	schema, err := compiler.Compile(schemaResourceName)
	if err != nil {
		panic("config: compiling embedded json schema: " + err.Error())
	}
	return schema
}()

// Config is the set of options recognized by the save and load pipelines.
type Config struct {
	TrustedKeysDir         string `json:"trusted_keys_dir"`
	AllowExpiredSigningKey bool   `json:"allow_expired_signing_key"`
	HMACAlgorithm          string `json:"hmac_algorithm"`
	FormatVersion          int    `json:"format_version"`
}

// Default returns a Config with trusted_keys_dir resolved from
// ARTIFACT_TRUSTED_KEYS_DIR (or fallbackKeysDir if unset) and otherwise
// zero-valued fields, for callers that have no config file to load.
func Default(fallbackKeysDir string) Config {
	return Config{TrustedKeysDir: keyring.Dir(fallbackKeysDir)}
}

// Load reads a JSON-with-comments config file, validates it against the
// recognized-keys schema, and resolves trusted_keys_dir against the
// environment override if the file left it blank.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, artifacterrors.WrapPath(artifacterrors.KindConfig, path, "reading config file", err)
	}
	return Parse(raw)
}

// Parse validates and decodes JSON-with-comments config bytes.
func Parse(raw []byte) (Config, error) {
	stripped := jsonc.ToJSON(raw)

	var generic any
	if err := json.Unmarshal(stripped, &generic); err != nil {
		return Config{}, artifacterrors.Wrap(artifacterrors.KindConfig, "parsing config json", err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return Config{}, artifacterrors.Wrap(artifacterrors.KindConfig, "config failed schema validation", err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, artifacterrors.Wrap(artifacterrors.KindConfig, "decoding config", err)
	}

	if cfg.TrustedKeysDir == "" {
		cfg.TrustedKeysDir = keyring.Dir("")
	}
	return cfg, nil
}
