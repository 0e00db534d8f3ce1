// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the persisted GRC records of Riskledger as bun models.
package model // import "github.com/riskledger/riskledger/internal/model"

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RiskLevel is the qualitative rating derived from likelihood and impact.
type RiskLevel string

const (
	// RiskCritical needs treatment before anything else.
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	// RiskLow is accepted unless policy says otherwise.
	RiskLow RiskLevel = "low"
)

// LevelFor rates a risk on the usual 5x5 matrix.
func LevelFor(likelihood, impact int) RiskLevel {
	switch score := likelihood * impact; {
	case score >= 20:
		return RiskCritical
	case score >= 12:
		return RiskHigh
	case score >= 6:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Severity classifies incidents.
type Severity string

const (
	SeverityMajor Severity = "major"
	SeverityMinor Severity = "minor"
	// SeverityNearMiss is an event that caused no damage.
	SeverityNearMiss Severity = "near_miss"
)

// Roles a User may hold.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// User is a person who signs in to Riskledger.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64          `bun:"id,pk,autoincrement"`
	Username     string         `bun:"username,notnull,unique"`
	Email        string         `bun:"email,notnull"`
	FullName     sql.NullString `bun:"full_name"`
	Role         string         `bun:"role,notnull"`
	PasswordHash string         `bun:"password_hash,notnull"` // bcrypt
	APIToken     sql.NullString `bun:"api_token"`
	IsActive     bool           `bun:"is_active,notnull"`
	CreatedAt    time.Time      `bun:"created_at,notnull"`
	LastLoginAt  *time.Time     `bun:"last_login_at"`
}

// String returns the username and role.
func (u User) String() string {
	return fmt.Sprintf("%s (%s)", u.Username, u.Role)
}

// Asset is anything of value the organisation protects.
type Asset struct {
	bun.BaseModel `bun:"table:assets"`

	ID          int64             `bun:"id,pk,autoincrement"`
	Name        string            `bun:"name,notnull"`
	Category    string            `bun:"category"`
	OwnerID     *int64            `bun:"owner_id"`
	Owner       *User             `bun:"rel:belongs-to,join:owner_id=id"`
	Criticality int               `bun:"criticality"` // 1 (low) to 5 (vital)
	Value       float64           `bun:"value"`
	Attributes  map[string]string `bun:"attributes"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
}

// Risk is an identified risk, optionally tied to an asset.
type Risk struct {
	bun.BaseModel `bun:"table:risks"`

	ID           int64        `bun:"id,pk,autoincrement"`
	Title        string       `bun:"title,notnull"`
	Description  string       `bun:"description"`
	AssetID      *int64       `bun:"asset_id"`
	Asset        *Asset       `bun:"rel:belongs-to,join:asset_id=id"`
	OwnerID      *int64       `bun:"owner_id"`
	Owner        *User        `bun:"rel:belongs-to,join:owner_id=id"`
	Likelihood   int          `bun:"likelihood"`
	Impact       int          `bun:"impact"`
	Level        RiskLevel    `bun:"level"`
	Status       string       `bun:"status"`
	IdentifiedAt time.Time    `bun:"identified_at,notnull"`
	ReviewDue    sql.NullTime `bun:"review_due"`
	Incidents    []*Incident  `bun:"rel:has-many,join:id=risk_id"`
}

// Control is a safeguard from a control framework.
type Control struct {
	bun.BaseModel `bun:"table:controls"`

	ID            int64        `bun:"id,pk,autoincrement"`
	Code          string       `bun:"code,notnull,unique"` // e.g. "A.8.2"
	Name          string       `bun:"name,notnull"`
	Description   string       `bun:"description"`
	Framework     string       `bun:"framework"`
	Effectiveness int          `bun:"effectiveness"`
	LastTested    sql.NullTime `bun:"last_tested"`
}

// RiskControl links a risk to a control that mitigates it.
type RiskControl struct {
	bun.BaseModel `bun:"table:risk_controls"`

	RiskID    int64    `bun:"risk_id,pk"`
	Risk      *Risk    `bun:"rel:belongs-to,join:risk_id=id"`
	ControlID int64    `bun:"control_id,pk"`
	Control   *Control `bun:"rel:belongs-to,join:control_id=id"`
	Notes     string   `bun:"notes"`
}

// Policy is an approved governance document.
type Policy struct {
	bun.BaseModel `bun:"table:policies"`

	ID            int64     `bun:"id,pk,autoincrement"`
	Title         string    `bun:"title,notnull"`
	Version       string    `bun:"version"`
	Body          string    `bun:"body"`
	ApprovedByID  *int64    `bun:"approved_by_id"`
	ApprovedBy    *User     `bun:"rel:belongs-to,join:approved_by_id=id"`
	EffectiveFrom time.Time `bun:"effective_from,notnull"`
	Attachment    []byte    `bun:"attachment"`
	Tags          []string  `bun:"tags"`
}

// Incident is a security or compliance event.
type Incident struct {
	bun.BaseModel `bun:"table:incidents"`

	ID           int64      `bun:"id,pk,autoincrement"`
	Title        string     `bun:"title,notnull"`
	Severity     Severity   `bun:"severity"`
	RiskID       *int64     `bun:"risk_id"`
	ReportedByID *int64     `bun:"reported_by_id"`
	ReportedBy   *User      `bun:"rel:belongs-to,join:reported_by_id=id"`
	OccurredAt   time.Time  `bun:"occurred_at,notnull"`
	ResolvedAt   *time.Time `bun:"resolved_at"`
	Details      string     `bun:"details"`
}

// AuditLog is an append-only trail entry. It keeps the acting user's id
// without a foreign key so entries survive user deletion.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_log"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     *int64    `bun:"user_id"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type"`
	EntityID   string    `bun:"entity_id"`
	Details    string    `bun:"details"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

// UserSession is a login session.
type UserSession struct {
	bun.BaseModel `bun:"table:user_sessions"`

	ID        string    `bun:"id,pk"`
	UserID    int64     `bun:"user_id,notnull"`
	User      *User     `bun:"rel:belongs-to,join:user_id=id"`
	Token     string    `bun:"token,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// Setting is an application-wide key/value setting.
type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
