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

// Package artifacterrors defines the typed error taxonomy returned by every
// package in this module. A single Error type carries a Kind so callers can
// branch with errors.As instead of string-matching messages.
package artifacterrors

import "fmt"

// Kind categorizes a failure from the save or load pipeline.
type Kind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota
	// KindConfig indicates registry or configuration misuse (caller bug).
	KindConfig
	// KindModel indicates an artifact's attribute map is inconsistent with
	// its live attributes.
	KindModel
	// KindSign indicates the signer backend could not produce a signature
	// (unknown key, wrong passphrase, expired key).
	KindSign
	// KindSignature indicates a signature failed cryptographic verification.
	KindSignature
	// KindTrust indicates the signer is not present in the trusted keyring.
	KindTrust
	// KindExpiredKey indicates the signing key was expired at verification
	// time and the caller did not opt into accepting it.
	KindExpiredKey
	// KindManifest indicates a malformed or incompatible manifest.
	KindManifest
	// KindIntegrity indicates a hash mismatch, a missing or extra entry, or
	// a sentinel disagreement.
	KindIntegrity
	// KindDecode indicates a codec failed to decode its entry, or left
	// trailing bytes unconsumed.
	KindDecode
	// KindState indicates VerifiableStream misuse (write-after-finalize,
	// read-before-finalize).
	KindState
	// KindValidation indicates the caller's validation callback rejected
	// the reconstituted artifact.
	KindValidation
	// KindIO indicates an archive transport failure.
	KindIO
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindModel:
		return "ModelError"
	case KindSign:
		return "SignError"
	case KindSignature:
		return "SignatureError"
	case KindTrust:
		return "TrustError"
	case KindExpiredKey:
		return "ExpiredKeyError"
	case KindManifest:
		return "ManifestError"
	case KindIntegrity:
		return "IntegrityError"
	case KindDecode:
		return "DecodeError"
	case KindState:
		return "StateError"
	case KindValidation:
		return "ValidationError"
	case KindIO:
		return "IoError"
	default:
		return "UnknownError"
	}
}

// Error is a structured error carrying a Kind, an optional path or
// identifier, a human-readable message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.Path, e.Cause)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any, for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WrapPath creates an Error of the given kind around a cause, annotated
// with a path or identifier.
func WrapPath(kind Kind, path, message string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As reports whether err is (or wraps) an *Error, writing it into target.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
