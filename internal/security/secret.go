// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package security holds helpers for handling sensitive values: the shared
// redaction marker and a Secret type that never prints its contents.
package security

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
)

// RedactedMarker replaces sensitive values wherever they would otherwise be
// printed or exported.
const RedactedMarker = "***REDACTED***"

// SensitiveNames are the substrings that mark a field name as sensitive.
// Matching is case-insensitive.
var SensitiveNames = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"private_key",
	"privatekey",
}

var fold = cases.Fold()

// IsSensitiveName reports whether name contains any of SensitiveNames,
// ignoring case. "apiToken", "API_TOKEN" and "password_hash" all match.
func IsSensitiveName(name string) bool {
	if name == "" {
		return false
	}
	folded := fold.String(name)
	for _, s := range SensitiveNames {
		if strings.Contains(folded, s) {
			return true
		}
	}
	return false
}

// Secret is a byte slice holding sensitive material such as an operator
// supplied password. fmt, JSON and text encoders all see the redaction marker.
type Secret []byte

// String redacts the secret for fmt.Print* convenience.
func (s Secret) String() string { return RedactedMarker }

// Format implements fmt.Formatter so `%v`, `%#v` and friends are redacted.
func (s Secret) Format(f fmt.State, c rune) {
	_, _ = io.WriteString(f, RedactedMarker)
}

// MarshalJSON redacts secrets in JSON marshaling.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedMarker) }

// MarshalText redacts secrets for text encoding.
func (s Secret) MarshalText() ([]byte, error) { return []byte(RedactedMarker), nil }

// IsEmpty reports whether no secret was supplied.
func (s Secret) IsEmpty() bool { return len(s) == 0 }

// Use executes fn with the underlying bytes (not a copy).
func (s Secret) Use(fn func([]byte) error) error {
	return fn([]byte(s))
}

// Zero overwrites the underlying byte slice with zeros.
func (s *Secret) Zero() {
	if s == nil || *s == nil {
		return
	}
	for i := range *s {
		(*s)[i] = 0
	}
}

// FromString creates a Secret from a string.
func FromString(in string) Secret { return Secret([]byte(in)) }

// FromBytes creates a Secret from bytes (it makes a copy).
func FromBytes(in []byte) Secret {
	out := make([]byte, len(in))
	copy(out, in)
	return Secret(out)
}
