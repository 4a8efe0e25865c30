package warden

import (
	"context"
	"sort"

	goerrors "github.com/goliatone/go-errors"
)

// Resolver walks the account → roles → permissions reference graph and
// flattens it into a deduplicated permission-name set. It always computes the
// literal graph; the superuser bypass lives in the Gate, not here.
type Resolver struct {
	roles       RoleStore
	permissions PermissionStore
}

// NewResolver returns a Resolver over the given stores.
func NewResolver(roles RoleStore, permissions PermissionStore) *Resolver {
	return &Resolver{roles: roles, permissions: permissions}
}

// Resolve returns the sorted permission names reachable from the account's
// current role references. Dangling role or permission ids are skipped, a
// concurrent delete must not fail an unrelated login. An empty role list
// resolves to an empty set.
func (r *Resolver) Resolve(ctx context.Context, account *Account) ([]string, error) {
	names, _, err := r.resolveWithRoles(ctx, account)
	return names, err
}

// View builds the full read-side projection for an account: role names plus
// the resolved permission set. Nothing here is cached or written back.
func (r *Resolver) View(ctx context.Context, account *Account) (*AuthorizationView, error) {
	permissions, roles, err := r.resolveWithRoles(ctx, account)
	if err != nil {
		return nil, err
	}

	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}
	sort.Strings(roleNames)

	return &AuthorizationView{
		ID:              account.ID,
		Username:        account.Username,
		Email:           account.Email,
		FullName:        account.FullName,
		Address:         account.Address,
		PhoneNumber:     account.PhoneNumber,
		IsActive:        account.IsActive,
		IsSuperuser:     account.IsSuperuser,
		RoleIDs:         append([]string{}, account.RoleIDs...),
		Roles:           roleNames,
		Permissions:     permissions,
		LastLoginAt:     account.LastLoginAt,
		EmailVerifiedAt: account.EmailVerifiedAt,
		CreatedAt:       account.CreatedAt,
		UpdatedAt:       account.UpdatedAt,
	}, nil
}

func (r *Resolver) resolveWithRoles(ctx context.Context, account *Account) ([]string, []*Role, error) {
	if account == nil {
		return nil, nil, goerrors.New("account must not be nil", goerrors.CategoryInternal)
	}

	if len(account.RoleIDs) == 0 {
		return []string{}, nil, nil
	}

	roles, err := r.roles.GetByIDs(ctx, account.RoleIDs)
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load roles for resolution")
	}

	seen := make(map[string]struct{})
	var permissionIDs []string
	for _, role := range roles {
		for _, id := range role.PermissionIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			permissionIDs = append(permissionIDs, id)
		}
	}

	if len(permissionIDs) == 0 {
		return []string{}, roles, nil
	}

	permissions, err := r.permissions.GetByIDs(ctx, permissionIDs)
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load permissions for resolution")
	}

	names := make([]string, 0, len(permissions))
	for _, p := range permissions {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	return names, roles, nil
}
