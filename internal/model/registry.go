// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "github.com/riskledger/riskledger/internal/catalog"

// Record type names as they appear in backup artifacts.
const (
	TypeUser        = "User"
	TypeAsset       = "Asset"
	TypeRisk        = "Risk"
	TypeControl     = "Control"
	TypeRiskControl = "RiskControl"
	TypePolicy      = "Policy"
	TypeIncident    = "Incident"
	TypeAuditLog    = "AuditLog"
	TypeUserSession = "UserSession"
	TypeSetting     = "Setting"
)

// Entries lists every record type of the application.
func Entries() []catalog.Entry {
	return []catalog.Entry{
		{Name: TypeUser, Model: func() any { return &User{} }},
		{Name: TypeAsset, Model: func() any { return &Asset{} }},
		{Name: TypeRisk, Model: func() any { return &Risk{} }},
		{Name: TypeControl, Model: func() any { return &Control{} }},
		{Name: TypeRiskControl, Model: func() any { return &RiskControl{} }},
		{Name: TypePolicy, Model: func() any { return &Policy{} }},
		{Name: TypeIncident, Model: func() any { return &Incident{} }},
		{Name: TypeAuditLog, Model: func() any { return &AuditLog{} }, Kind: catalog.KindAuditHistory},
		{Name: TypeUserSession, Model: func() any { return &UserSession{} }, Kind: catalog.KindSession},
		{Name: TypeSetting, Model: func() any { return &Setting{} }},
	}
}

// Register adds every record type to reg.
func Register(reg *catalog.Registry) error {
	for _, e := range Entries() {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// DefaultModules maps functional modules to the record types they own. It
// is the fallback when configuration defines no modules.
func DefaultModules() map[string][]string {
	return map[string][]string{
		"identity":   {TypeUser, TypeUserSession},
		"assets":     {TypeAsset},
		"risk":       {TypeRisk, TypeRiskControl, TypeIncident},
		"compliance": {TypeControl, TypePolicy},
		"audit":      {TypeAuditLog},
		"system":     {TypeSetting},
	}
}
