package model

import "time"

// HeaderPattern is a learned association between a spreadsheet column
// header and a canonical field of an import entity.
type HeaderPattern struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Entity         string    `json:"entity"`
	SourceHeader   string    `json:"source_header"`
	TargetField    string    `json:"target_field"`
	UsageCount     int       `json:"usage_count"`
	LastUsedAt     time.Time `json:"last_used_at"`
}

// ValuePattern is a learned association between a raw cell value and the
// canonical record it resolves to. Unlike header patterns, TargetID is
// overwritten by the latest confirmation.
type ValuePattern struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Entity         string    `json:"entity"`
	CompField      string    `json:"comp_field"`
	SourceValue    string    `json:"source_value"`
	TargetID       string    `json:"target_id"`
	UsageCount     int       `json:"usage_count"`
	LastUsedAt     time.Time `json:"last_used_at"`
}

// Scope identifies the tenant and entity a pattern lookup or write applies to.
type Scope struct {
	OrganizationID string `json:"organization_id"`
	Entity         string `json:"entity"`
}

// Valid reports whether both parts of the scope are set.
func (s Scope) Valid() bool {
	return s.OrganizationID != "" && s.Entity != ""
}
