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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kensho-technologies/signedartifact/pkg/artifact"
	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
	"github.com/kensho-technologies/signedartifact/pkg/codec/genericobject"
)

// dirComposite is a generic artifact.Composite backing the save/load
// harness subcommands: every regular file under a directory becomes one
// attribute, carried through the archive as a raw byte blob under the
// generic-object codec. It exists to exercise pkg/save and pkg/load against
// arbitrary file trees, not as a model for a real composite's attribute
// layout.
type dirComposite struct {
	name string
	data map[string][]byte
}

const contentKey = "content"

func newDirComposite(name string) *dirComposite {
	return &dirComposite{name: name, data: make(map[string][]byte)}
}

// loadDirComposite reads every regular file under dir into a dirComposite,
// keyed by its path relative to dir.
func loadDirComposite(name, dir string) (*dirComposite, error) {
	c := newDirComposite(name)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		c.data[filepath.ToSlash(rel)] = raw
		return nil
	})
	if err != nil {
		return nil, artifacterrors.WrapPath(artifacterrors.KindIO, dir, "walking directory", err)
	}
	return c, nil
}

// writeTo writes every attribute back out under dir, recreating the
// directory structure its relative-path attribute names describe.
func (c *dirComposite) writeTo(dir string) error {
	for name, raw := range c.data {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return artifacterrors.WrapPath(artifacterrors.KindIO, path, "creating output directory", err)
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return artifacterrors.WrapPath(artifacterrors.KindIO, path, "writing output file", err)
		}
	}
	return nil
}

func (c *dirComposite) Name() string { return c.name }

func (c *dirComposite) Attributes() map[string]artifact.AttributeBinding {
	bindings := make(map[string]artifact.AttributeBinding, len(c.data))
	for name := range c.data {
		bindings[name] = artifact.AttributeBinding{
			Codec: genericobject.Name,
			Entry: strings.ReplaceAll(name, "/", "_") + ".bin",
		}
	}
	return bindings
}

func (c *dirComposite) GetAttribute(name string) (any, error) {
	raw, ok := c.data[name]
	if !ok {
		return nil, artifacterrors.New(artifacterrors.KindModel, "unknown attribute "+name)
	}
	return map[string]any{contentKey: raw}, nil
}

func (c *dirComposite) SetAttribute(name string, value any) error {
	obj, ok := value.(map[string]any)
	if !ok {
		// A sentinel during save, or any other bookkeeping value the
		// pipelines pass through: nothing for the harness to store.
		return nil
	}
	raw, ok := obj[contentKey].([]byte)
	if !ok {
		return artifacterrors.New(artifacterrors.KindModel, "attribute "+name+" is missing its content field")
	}
	c.data[name] = raw
	return nil
}

// sortedAttributeNames returns c's attribute names in sorted order, for
// deterministic logging.
func (c *dirComposite) sortedAttributeNames() []string {
	names := make([]string, 0, len(c.data))
	for name := range c.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
