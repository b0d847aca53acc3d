package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the marketplace side a subject belongs to
type Role string

const (
	// RoleDeveloper is a developer looking for work
	RoleDeveloper Role = "developer"
	// RoleCompany is a hiring company
	RoleCompany Role = "company"
)

// ProfileSource records where an in-memory profile came from.
type ProfileSource string

const (
	// ProfileSourceDurable was loaded from the profile store
	ProfileSourceDurable ProfileSource = "durable"
	// ProfileSourceHint was derived from session metadata
	ProfileSourceHint ProfileSource = "hint"
	// ProfileSourceInferred was deduced from the developer/company tables
	ProfileSourceInferred ProfileSource = "inferred"
)

// Subject is the identity provider's principal
type Subject struct {
	bun.BaseModel `bun:"table:subjects,alias:sbj"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Email         string         `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string         `bun:"password_hash" json:"-"`
	Metadata      map[string]any `bun:"metadata" json:"user_metadata,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Profile is the role tagged record for a subject. At most one exists per
// subject and its role never changes once stored.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	Role          Role          `bun:"role,notnull" json:"role"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	Source        ProfileSource `bun:"-" json:"-"`
}

// IsDurable reports whether the profile was read from the store.
func (p *Profile) IsDurable() bool {
	return p != nil && p.Source == ProfileSourceDurable
}

// DeveloperRecord is a row in the developers table
type DeveloperRecord struct {
	bun.BaseModel `bun:"table:developers,alias:dev"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name          string     `bun:"name" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// CompanyRecord is a row in the companies table
type CompanyRecord struct {
	bun.BaseModel `bun:"table:companies,alias:cmp"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name          string     `bun:"name" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ResetCode is a one time password reset code. Rows are never deleted,
// the only mutation is Used going from false to true.
type ResetCode struct {
	bun.BaseModel `bun:"table:password_reset_codes,alias:prc"`
	ID            string    `bun:"id,pk" json:"id"`
	Email         string    `bun:"email,notnull" json:"email"`
	Code          string    `bun:"code,notnull" json:"code"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	Used          bool      `bun:"used,notnull,default:false" json:"used"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// IsConsumable reports whether the code can still be redeemed at now.
func (r *ResetCode) IsConsumable(now time.Time) bool {
	if r == nil || r.Used {
		return false
	}
	return !now.After(r.ExpiresAt)
}
