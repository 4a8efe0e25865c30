// Package memstore is an in-memory implementation of the warden store
// interfaces. It backs tests and examples; production deployments use
// mongostore.
package memstore

import (
	"context"
	"sync"
	"time"

	warden "go-warden"
)

// Store holds the three collections behind one mutex. Records are copied on
// the way in and out so callers never alias internal state.
type Store struct {
	mu          sync.RWMutex
	accounts    map[string]*warden.Account
	roles       map[string]*warden.Role
	permissions map[string]*warden.Permission
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:    make(map[string]*warden.Account),
		roles:       make(map[string]*warden.Role),
		permissions: make(map[string]*warden.Permission),
	}
}

var _ warden.Store = (*Store)(nil)

// Accounts returns the account collection.
func (s *Store) Accounts() warden.AccountStore { return &accountStore{s} }

// Roles returns the role collection.
func (s *Store) Roles() warden.RoleStore { return &roleStore{s} }

// Permissions returns the permission collection.
func (s *Store) Permissions() warden.PermissionStore { return &permissionStore{s} }

type accountStore struct{ s *Store }

func (a *accountStore) Create(_ context.Context, account *warden.Account) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (a *accountStore) GetByID(_ context.Context, id string) (*warden.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if account, ok := a.s.accounts[id]; ok {
		return copyAccount(account), nil
	}
	return nil, warden.NewStoreNotFoundError("account")
}

func (a *accountStore) GetByUsername(_ context.Context, username string) (*warden.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	for _, account := range a.s.accounts {
		if account.Username == username {
			return copyAccount(account), nil
		}
	}
	return nil, warden.NewStoreNotFoundError("account")
}

func (a *accountStore) GetByEmail(_ context.Context, email string) (*warden.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	for _, account := range a.s.accounts {
		if account.Email == email {
			return copyAccount(account), nil
		}
	}
	return nil, warden.NewStoreNotFoundError("account")
}

func (a *accountStore) List(_ context.Context) ([]*warden.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]*warden.Account, 0, len(a.s.accounts))
	for _, account := range a.s.accounts {
		out = append(out, copyAccount(account))
	}
	return out, nil
}

func (a *accountStore) Update(_ context.Context, account *warden.Account) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.accounts[account.ID]; !ok {
		return warden.NewStoreNotFoundError("account")
	}
	a.s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (a *accountStore) Delete(_ context.Context, id string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.accounts[id]; !ok {
		return warden.NewStoreNotFoundError("account")
	}
	delete(a.s.accounts, id)
	return nil
}

func (a *accountStore) IncrementFailedAttempts(_ context.Context, id string) (int, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	account, ok := a.s.accounts[id]
	if !ok {
		return 0, warden.NewStoreNotFoundError("account")
	}
	account.FailedAttempts++
	return account.FailedAttempts, nil
}

func (a *accountStore) AnyWithRole(_ context.Context, roleID string) (bool, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	for _, account := range a.s.accounts {
		if account.HasRole(roleID) {
			return true, nil
		}
	}
	return false, nil
}

type roleStore struct{ s *Store }

func (r *roleStore) Create(_ context.Context, role *warden.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.roles[role.ID] = copyRole(role)
	return nil
}

func (r *roleStore) GetByID(_ context.Context, id string) (*warden.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if role, ok := r.s.roles[id]; ok {
		return copyRole(role), nil
	}
	return nil, warden.NewStoreNotFoundError("role")
}

func (r *roleStore) GetByName(_ context.Context, name string) (*warden.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			return copyRole(role), nil
		}
	}
	return nil, warden.NewStoreNotFoundError("role")
}

func (r *roleStore) GetByIDs(_ context.Context, ids []string) ([]*warden.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*warden.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := r.s.roles[id]; ok {
			out = append(out, copyRole(role))
		}
	}
	return out, nil
}

func (r *roleStore) List(_ context.Context) ([]*warden.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*warden.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, copyRole(role))
	}
	return out, nil
}

func (r *roleStore) Update(_ context.Context, role *warden.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[role.ID]; !ok {
		return warden.NewStoreNotFoundError("role")
	}
	r.s.roles[role.ID] = copyRole(role)
	return nil
}

func (r *roleStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[id]; !ok {
		return warden.NewStoreNotFoundError("role")
	}
	delete(r.s.roles, id)
	return nil
}

func (r *roleStore) AnyWithPermission(_ context.Context, permissionID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.HasPermission(permissionID) {
			return true, nil
		}
	}
	return false, nil
}

type permissionStore struct{ s *Store }

func (p *permissionStore) Create(_ context.Context, permission *warden.Permission) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.permissions[permission.ID] = copyPermission(permission)
	return nil
}

func (p *permissionStore) GetByID(_ context.Context, id string) (*warden.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	if permission, ok := p.s.permissions[id]; ok {
		return copyPermission(permission), nil
	}
	return nil, warden.NewStoreNotFoundError("permission")
}

func (p *permissionStore) GetByName(_ context.Context, name string) (*warden.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	for _, permission := range p.s.permissions {
		if permission.Name == name {
			return copyPermission(permission), nil
		}
	}
	return nil, warden.NewStoreNotFoundError("permission")
}

func (p *permissionStore) GetByIDs(_ context.Context, ids []string) ([]*warden.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	out := make([]*warden.Permission, 0, len(ids))
	for _, id := range ids {
		if permission, ok := p.s.permissions[id]; ok {
			out = append(out, copyPermission(permission))
		}
	}
	return out, nil
}

func (p *permissionStore) List(_ context.Context) ([]*warden.Permission, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	out := make([]*warden.Permission, 0, len(p.s.permissions))
	for _, permission := range p.s.permissions {
		out = append(out, copyPermission(permission))
	}
	return out, nil
}

func (p *permissionStore) Update(_ context.Context, permission *warden.Permission) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.permissions[permission.ID]; !ok {
		return warden.NewStoreNotFoundError("permission")
	}
	p.s.permissions[permission.ID] = copyPermission(permission)
	return nil
}

func (p *permissionStore) Delete(_ context.Context, id string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.permissions[id]; !ok {
		return warden.NewStoreNotFoundError("permission")
	}
	delete(p.s.permissions, id)
	return nil
}

func copyAccount(in *warden.Account) *warden.Account {
	out := *in
	out.RoleIDs = append([]string{}, in.RoleIDs...)
	out.LockoutUntil = copyTime(in.LockoutUntil)
	out.LastLoginAt = copyTime(in.LastLoginAt)
	out.EmailVerifiedAt = copyTime(in.EmailVerifiedAt)
	out.PasswordChangedAt = copyTime(in.PasswordChangedAt)
	return &out
}

func copyRole(in *warden.Role) *warden.Role {
	out := *in
	out.PermissionIDs = append([]string{}, in.PermissionIDs...)
	return &out
}

func copyPermission(in *warden.Permission) *warden.Permission {
	out := *in
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
