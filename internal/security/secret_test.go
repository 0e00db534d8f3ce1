// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package security

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSecretRedactionAndJSON(t *testing.T) {
	s := FromString("supersecret")
	for _, verb := range []string{"%v", "%s", "%#v", "%q"} {
		if got := fmt.Sprintf(verb, s); got != RedactedMarker {
			t.Fatalf("fmt %s leaked: %q", verb, got)
		}
	}
	b, err := json.Marshal(struct{ P Secret }{P: s})
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if string(b) != `{"P":"`+RedactedMarker+`"}` {
		t.Fatalf("unexpected json marshal: %s", string(b))
	}
}

func TestSecretZero(t *testing.T) {
	s := FromString("abc123")
	(&s).Zero()
	if err := s.Use(func(b []byte) error {
		for i := range b {
			if b[i] != 0 {
				t.Fatalf("expected zeroed byte at index %d, got %d", i, b[i])
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("s.Use failed: %v", err)
	}
}

func TestFromBytesCopies(t *testing.T) {
	src := []byte("sensitive")
	s := FromBytes(src)
	src[0] = 'X'
	if string(s) != "sensitive" {
		t.Fatalf("FromBytes must copy, got %q", string(s))
	}
	if s.IsEmpty() || !Secret(nil).IsEmpty() {
		t.Fatalf("IsEmpty mismatch")
	}
}

func TestIsSensitiveName(t *testing.T) {
	cases := map[string]bool{
		"password":      true,
		"password_hash": true,
		"PASSWORD":      true,
		"apiToken":      true,
		"api_token":     true,
		"client_secret": true,
		"ApiKey":        true,
		"private_key":   true,
		"PrivateKey":    true,
		"name":          false,
		"email":         false,
		"":              false,
		"description":   false,
	}
	for name, want := range cases {
		if got := IsSensitiveName(name); got != want {
			t.Errorf("IsSensitiveName(%q) = %v, want %v", name, got, want)
		}
	}
}
