package warden

import (
	"time"

	"github.com/google/uuid"
)

// Account is the identity record. Role membership is stored by reference as a
// list of role ids; the effective permission set is always derived from the
// live graph (see Resolver), never denormalized back onto the record.
type Account struct {
	ID                string     `bson:"_id" json:"id"`
	Username          string     `bson:"username" json:"username"`
	Email             string     `bson:"email" json:"email"`
	PasswordHash      string     `bson:"password_hash" json:"-"`
	FullName          string     `bson:"full_name,omitempty" json:"full_name,omitempty"`
	Address           string     `bson:"address,omitempty" json:"address,omitempty"`
	PhoneNumber       string     `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	IsActive          bool       `bson:"is_active" json:"is_active"`
	IsSuperuser       bool       `bson:"is_superuser" json:"is_superuser"`
	RoleIDs           []string   `bson:"role_ids" json:"role_ids"`
	FailedAttempts    int        `bson:"failed_login_attempts" json:"-"`
	LockoutUntil      *time.Time `bson:"lockout_until,omitempty" json:"-"`
	LastLoginAt       *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	EmailVerifiedAt   *time.Time `bson:"email_verified_at,omitempty" json:"email_verified_at,omitempty"`
	PasswordChangedAt *time.Time `bson:"password_changed_at,omitempty" json:"-"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

// HasRole reports whether the account references the given role id.
func (a *Account) HasRole(roleID string) bool {
	for _, id := range a.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role is a named bundle of permissions, stored by reference as a list of
// permission ids.
type Role struct {
	ID            string    `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	Description   string    `bson:"description" json:"description"`
	PermissionIDs []string  `bson:"permission_ids" json:"permission_ids"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// HasPermission reports whether the role references the given permission id.
func (r *Role) HasPermission(permissionID string) bool {
	for _, id := range r.PermissionIDs {
		if id == permissionID {
			return true
		}
	}
	return false
}

// Permission is an atomic named capability. Names follow the
// "resource:action" convention but are treated as opaque strings.
type Permission struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// AuthorizationView is the read-side projection of an account: the persisted
// fields minus the credential digest, plus role and permission names resolved
// from the current graph. It is recomputed on every read.
type AuthorizationView struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name,omitempty"`
	Address         string     `json:"address,omitempty"`
	PhoneNumber     string     `json:"phone_number,omitempty"`
	IsActive        bool       `json:"is_active"`
	IsSuperuser     bool       `json:"is_superuser"`
	RoleIDs         []string   `json:"role_ids"`
	Roles           []string   `json:"roles"`
	Permissions     []string   `json:"permissions"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasPermission reports membership of a permission name in the resolved set.
// Superusers are handled by the Gate, not here.
func (v *AuthorizationView) HasPermission(name string) bool {
	for _, p := range v.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// TokenPair is the session payload returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// BearerTokenType is the fixed token-type tag attached to every session pair.
const BearerTokenType = "bearer"

// NewID returns a new opaque entity identifier.
func NewID() string {
	return uuid.NewString()
}
