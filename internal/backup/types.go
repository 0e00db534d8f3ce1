// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package backup snapshots every registered record type into a versioned
// artifact and replays artifacts into a live store inside one transaction.
package backup // import "github.com/riskledger/riskledger/internal/backup"

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/riskledger/riskledger/internal/security"
	"github.com/riskledger/riskledger/util/mapst"
)

// SupportedVersion is the only artifact version this build reads or writes.
const SupportedVersion = "1.0"

const (
	// MaxStringLength is the rune ceiling for string values in snapshots.
	MaxStringLength = 1000
	// TruncationMarker is appended to strings cut at MaxStringLength.
	TruncationMarker = "...[truncated]"
)

// Snapshot is one serialized record: column name to normalized value.
type Snapshot map[string]any

// Artifact is the backup document. A nil Metadata or Data means the section
// was missing or had the wrong shape; the Validator reports it.
type Artifact struct {
	Metadata   *Metadata             `json:"metadata"`
	Data       map[string][]Snapshot `json:"data"`
	Statistics *Statistics           `json:"statistics"`
}

// Metadata identifies an artifact.
type Metadata struct {
	Version       string        `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
	GeneratorInfo GeneratorInfo `json:"generator_info"`

	// versionNotString is set when the decoded version was not a JSON
	// string; such a version never matches SupportedVersion.
	versionNotString bool
}

// UnmarshalJSON keeps a metadata section usable when single keys carry
// unexpected types, so a numeric version is reported as unsupported rather
// than as a missing section.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw struct {
		Version       json.RawMessage `json:"version"`
		CreatedAt     json.RawMessage `json:"created_at"`
		GeneratorInfo json.RawMessage `json:"generator_info"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	if len(raw.Version) > 0 {
		var s string
		if err := json.Unmarshal(raw.Version, &s); err == nil {
			m.Version = s
		} else if string(raw.Version) != "null" {
			m.Version = strings.TrimSpace(string(raw.Version))
			m.versionNotString = true
		}
	}
	if len(raw.CreatedAt) > 0 {
		_ = json.Unmarshal(raw.CreatedAt, &m.CreatedAt)
	}
	if len(raw.GeneratorInfo) > 0 {
		_ = json.Unmarshal(raw.GeneratorInfo, &m.GeneratorInfo)
	}
	return nil
}

// GeneratorInfo records what produced an artifact.
type GeneratorInfo struct {
	Application string `json:"application"`
	AppVersion  string `json:"app_version"`
	BackupID    string `json:"backup_id"`
	Dialect     string `json:"dialect,omitempty"`
	Hostname    string `json:"hostname,omitempty"`
}

// Statistics summarizes an artifact. Restore never reads it.
type Statistics struct {
	Entities      map[string]int    `json:"entities"`
	TotalRecords  int               `json:"total_records"`
	TotalEntities int               `json:"total_entities"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// TypeNames returns the record types present in Data in a stable order.
func (a *Artifact) TypeNames() []string {
	if a == nil {
		return nil
	}
	return mapst.SortedKeys(a.Data)
}

// ValidationResult is the outcome of Validate. Valid is true iff Errors is
// empty; warnings never affect validity.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Preview describes what a restore of an artifact would touch.
type Preview struct {
	Metadata     *Metadata                `json:"metadata"`
	Entities     map[string]EntityPreview `json:"entities"`
	TotalRecords int                      `json:"total_records"`
}

// EntityPreview compares artifact and live counts for one record type.
type EntityPreview struct {
	ToRestore int `json:"to_restore"`
	Existing  int `json:"existing"`
}

// Strategy decides what a restore does with records that already exist.
type Strategy string

const (
	// StrategyUpdate overwrites existing records (the default).
	StrategyUpdate Strategy = "update"
	// StrategySkip leaves existing records untouched.
	StrategySkip Strategy = "skip"
)

// RestoreOptions are the caller's restore choices. ClearBeforeRestore and
// AdminPassword are destructive and only act when set explicitly.
type RestoreOptions struct {
	Strategy           Strategy
	ClearBeforeRestore bool
	DryRun             bool
	// AdminPassword, when non-empty, becomes the administrator's password.
	AdminPassword security.Secret
}

// EntityCounts are the per-type restore counters.
type EntityCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RestoreResult reports a restore. Statistics holds counters for every type
// that was processed.
type RestoreResult struct {
	Success    bool                    `json:"success"`
	DryRun     bool                    `json:"dry_run"`
	State      State                   `json:"state"`
	Statistics map[string]EntityCounts `json:"statistics"`
	Errors     []string                `json:"errors,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// ModuleExport is the result of ExportModuleData. It has no metadata and is
// not restorable through RestoreFromBackup.
type ModuleExport struct {
	Success bool                  `json:"success"`
	Module  string                `json:"module"`
	Data    map[string][]Snapshot `json:"data"`
	Count   int                   `json:"count"`
	Errors  map[string]string     `json:"errors,omitempty"`
}

// FileInfo describes an artifact file on disk.
type FileInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func canonicalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
