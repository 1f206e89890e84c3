package models

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle is the single state a template or guardrail config is in.
// Deleted is terminal; deleted rows are never returned by reads.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleInactive Lifecycle = "inactive"
	LifecycleDeleted  Lifecycle = "deleted"
)

// Template is a versioned prompt template. A nil TenantID means system
// scope. Content always mirrors the version ledger's newest entry.
type Template struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	TenantID         *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	Name             string     `json:"name" db:"name"`
	Content          string     `json:"content" db:"content"`
	CurrentVersion   int        `json:"current_version" db:"current_version"`
	Lifecycle        Lifecycle  `json:"lifecycle" db:"lifecycle"`
	IsShareable      bool       `json:"is_shareable" db:"is_shareable"`
	ClonedFromID     *uuid.UUID `json:"cloned_from_id,omitempty" db:"cloned_from_id"`
	ClonedFromTenant *uuid.UUID `json:"cloned_from_tenant,omitempty" db:"cloned_from_tenant"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// TemplateVersion is one immutable entry in a template's version ledger.
type TemplateVersion struct {
	ID                uuid.UUID `json:"id" db:"id"`
	TemplateID        uuid.UUID `json:"template_id" db:"template_id"`
	Version           int       `json:"version" db:"version"`
	Content           string    `json:"content" db:"content"`
	CreatedBy         string    `json:"created_by,omitempty" db:"created_by"`
	ChangeDescription string    `json:"change_description,omitempty" db:"change_description"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
