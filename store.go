package warden

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// NewStoreNotFoundError is what store implementations return when a lookup
// misses; callers detect it with goerrors.IsNotFound.
func NewStoreNotFoundError(entity string) *goerrors.Error {
	return goerrors.New(entity+" not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

// AccountStore persists Account records keyed by opaque id. Username and
// email lookups are case-sensitive exact matches.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Update(ctx context.Context, account *Account) error
	Delete(ctx context.Context, id string) error

	// IncrementFailedAttempts atomically bumps the failed-login counter and
	// returns the post-increment value, so the lockout threshold check
	// observes the same write.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)

	// AnyWithRole reports whether any account references the role id. Used
	// for referential-integrity checks before role deletion.
	AnyWithRole(ctx context.Context, roleID string) (bool, error)
}

// RoleStore persists Role records keyed by opaque id.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)

	// GetByIDs returns the roles whose ids resolve; ids that no longer exist
	// are silently omitted from the result.
	GetByIDs(ctx context.Context, ids []string) ([]*Role, error)

	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id string) error

	// AnyWithPermission reports whether any role references the permission
	// id. Used for referential-integrity checks before permission deletion.
	AnyWithPermission(ctx context.Context, permissionID string) (bool, error)
}

// PermissionStore persists Permission records keyed by opaque id.
type PermissionStore interface {
	Create(ctx context.Context, permission *Permission) error
	GetByID(ctx context.Context, id string) (*Permission, error)
	GetByName(ctx context.Context, name string) (*Permission, error)

	// GetByIDs returns the permissions whose ids resolve; dangling ids are
	// silently omitted.
	GetByIDs(ctx context.Context, ids []string) ([]*Permission, error)

	List(ctx context.Context) ([]*Permission, error)
	Update(ctx context.Context, permission *Permission) error
	Delete(ctx context.Context, id string) error
}

// Store bundles the three collections behind one handle. The document store
// is the single source of truth; nothing in this package caches records
// across requests.
type Store interface {
	Accounts() AccountStore
	Roles() RoleStore
	Permissions() PermissionStore
}
