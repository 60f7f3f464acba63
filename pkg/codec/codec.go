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

// Package codec defines the Codec interface and a process-scoped Registry
// mapping codec names to implementations. Codecs are the only components
// that turn bytes into values and back; the registry exists so a manifest
// can name a codec by a short string instead of embedding a type.
package codec

import (
	"io"
	"sort"
	"sync"

	"github.com/kensho-technologies/signedartifact/pkg/artifacterrors"
)

// Codec serializes one kind of attribute value to and from a byte stream.
//
// Serialize must write a deterministic-enough encoding that repeated calls
// on an identical value produce tag-stable output on the same build; exact
// byte-determinism across library versions is not required (see the
// validation callback in the load pipeline, which exists precisely to
// catch drift here).
//
// Deserialize must consume the entire stream; any codec that returns before
// EOF leaves the caller unable to distinguish trailing garbage from a short
// read. The registry hands codecs out unwrapped, so each codec checks for
// trailing bytes itself.
type Codec interface {
	Serialize(value any, sink io.Writer) error
	Deserialize(source io.Reader) (any, error)
}

// Registry is a process-scoped, write-once-then-frozen mapping from codec
// name to Codec. Registration is expected at process start; the registry
// refuses further registrations after its first Get call, matching the
// "frozen after first use" invariant: avoiding mutable global state hazards
// once pipelines have started relying on a fixed codec set.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
	frozen bool
}

// NewRegistry returns an empty, unfrozen Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds a codec under name. Fails with ConfigError if name is
// already registered or if the registry is frozen.
func (r *Registry) Register(name string, c Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return artifacterrors.New(artifacterrors.KindConfig, "codec registry is frozen, cannot register "+name)
	}
	if _, exists := r.codecs[name]; exists {
		return artifacterrors.New(artifacterrors.KindConfig, "duplicate codec name "+name)
	}
	r.codecs[name] = c
	return nil
}

// RegisterAll validates that every name in the batch is available before
// registering any of them, so a single conflict leaves the registry
// untouched rather than partially populated.
func (r *Registry) RegisterAll(batch map[string]Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return artifacterrors.New(artifacterrors.KindConfig, "codec registry is frozen")
	}
	for name := range batch {
		if _, exists := r.codecs[name]; exists {
			return artifacterrors.New(artifacterrors.KindConfig, "duplicate codec name "+name)
		}
	}
	for name, c := range batch {
		r.codecs[name] = c
	}
	return nil
}

// Get resolves name to a Codec and freezes the registry against further
// registration. Fails with ConfigError if name is unknown.
func (r *Registry) Get(name string) (Codec, error) {
	r.mu.Lock()
	r.frozen = true
	c, ok := r.codecs[name]
	r.mu.Unlock()

	if !ok {
		return nil, artifacterrors.New(artifacterrors.KindConfig, "unknown codec "+name)
	}
	return c, nil
}

// Has reports whether name is registered, without freezing the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.codecs[name]
	return ok
}

// Names returns every registered codec name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Frozen reports whether the registry has served its first Get.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
