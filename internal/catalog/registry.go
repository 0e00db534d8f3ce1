// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package catalog describes the record types persisted through bun. Bounded
// contexts register their models in a Registry at start-up; a Catalog binds
// that registry to a *bun.DB and answers "what fields exist, what are their
// types, which are relations" for any registered name without the caller
// knowing the Go type.
package catalog

import (
	"fmt"
	"reflect"
	"sync"
)

// Kind classifies record types that backups treat specially.
type Kind int

const (
	// KindStandard is ordinary business data.
	KindStandard Kind = iota
	// KindAuditHistory marks the audit trail; backups may opt out of it.
	KindAuditHistory
	// KindSession marks login sessions; backups only include them on request.
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindAuditHistory:
		return "audit"
	case KindSession:
		return "session"
	default:
		return "standard"
	}
}

// Entry registers one record type.
type Entry struct {
	// Name is the record type name used as the artifact key (e.g. "Risk").
	Name string
	// Model returns a pointer to a new zero value of the bun model.
	Model func() any
	Kind  Kind
}

// Registry maps record type names to their entries. It is safe for
// concurrent registration, although registration normally happens once.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Register adds an entry. The model factory must return a non-nil pointer
// to a struct; names must be unique.
func (r *Registry) Register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("catalog: entry without name")
	}
	if e.Model == nil {
		return fmt.Errorf("catalog: entry %s has no model factory", e.Name)
	}
	m := e.Model()
	t := reflect.TypeOf(m)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("catalog: entry %s model must be a pointer to struct, got %T", e.Name, m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[e.Name]; dup {
		return fmt.Errorf("catalog: record type %s already registered", e.Name)
	}
	r.entries[e.Name] = e
	r.order = append(r.order, e.Name)
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *Registry) MustRegister(entries ...Entry) {
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
