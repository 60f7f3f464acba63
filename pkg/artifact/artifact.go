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

// Package artifact defines the composite model protocol: the capability
// set a loadable/saveable object must satisfy, realized here as an
// interface rather than a required base type.
package artifact

import "context"

// AttributeBinding names the codec and entry an attribute is persisted
// under. A blank Entry gets a generated unique entry name at save time.
type AttributeBinding struct {
	Codec string
	Entry string
}

// Composite is the capability set the save and load pipelines require.
// Implementers may realize it as a tagged variant or a plain struct; the
// core does not prescribe an object system or require inheritance.
type Composite interface {
	// Name is a stable identifier for this artifact, recorded in the
	// manifest's artifact_name field.
	Name() string

	// Attributes declares the attribute-name to (codec-name, entry-name)
	// map. Every key must name an attribute actually present on the live
	// object; Get/Set below are used to read and replace them.
	Attributes() map[string]AttributeBinding

	// GetAttribute returns the live value of a declared attribute.
	GetAttribute(name string) (any, error)

	// SetAttribute replaces a declared attribute's live value, used by the
	// load pipeline to bind decoded values back onto the skeleton.
	SetAttribute(name string, value any) error
}

// PostLoadHook is implemented by composites that need to run logic after
// every attribute has been bound but before the validation callback runs.
type PostLoadHook interface {
	PostLoad(ctx context.Context) error
}

// Validator is implemented by composites that must approve their own
// reconstitution; Validate runs last in the load pipeline and its error
// surfaces as ValidationError.
type Validator interface {
	Validate(ctx context.Context) error
}
