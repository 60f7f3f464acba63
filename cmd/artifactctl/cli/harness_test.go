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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDirCompositeReadsFilesAsAttributes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.txt"), []byte("world"), 0o600))

	c, err := loadDirComposite("demo", dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "nested/b.txt"}, c.sortedAttributeNames())

	v, err := c.GetAttribute("a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v.(map[string]any)[contentKey])
}

func TestDirCompositeRoundTripsThroughSetAttribute(t *testing.T) {
	c := newDirComposite("demo")
	require.NoError(t, c.SetAttribute("a.txt", map[string]any{contentKey: []byte("hi")}))

	out := t.TempDir()
	require.NoError(t, c.writeTo(out))

	data, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), data)
}

func TestDirCompositeAttributesUseGenericObjectCodec(t *testing.T) {
	c := newDirComposite("demo")
	c.data["a.txt"] = []byte("x")

	bindings := c.Attributes()
	require.Contains(t, bindings, "a.txt")
	require.Equal(t, "generic-object", bindings["a.txt"].Codec)
	require.Equal(t, "a.txt.bin", bindings["a.txt"].Entry)
}
