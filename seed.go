package warden

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type seedEntry struct {
	name        string
	description string
}

var seedPermissions = []seedEntry{
	{"account:create", "Create new accounts"},
	{"account:read_all", "Read any account profile"},
	{"account:read_own", "Read own account profile"},
	{"account:update", "Update any account profile"},
	{"account:update_own", "Update own account profile"},
	{"account:delete", "Delete any account"},
	{"account:assign_roles", "Assign roles to accounts"},
	{"account:update_status", "Activate or deactivate accounts"},

	{"role:create", "Create new roles"},
	{"role:read_all", "Read all roles"},
	{"role:update", "Update any role"},
	{"role:delete", "Delete any role"},

	{"permission:create", "Create new permissions"},
	{"permission:read_all", "Read all permissions"},
	{"permission:update", "Update any permission"},
	{"permission:delete", "Delete any permission"},
}

var seedRoles = []seedEntry{
	{"superadmin", "Full access to everything"},
	{"admin", "Manage accounts and roles"},
	{"member", "Basic authenticated account with limited permissions"},
}

// seedRolePermissions maps role name to granted permission names. The
// superadmin role receives every permission in the catalogue.
var seedRolePermissions = map[string][]string{
	"admin": {
		"account:create", "account:read_all", "account:update", "account:delete",
		"account:assign_roles", "account:update_status",
		"role:create", "role:read_all", "role:update", "role:delete",
		"permission:read_all",
	},
	"member": {
		"account:read_own", "account:update_own",
	},
}

// Seeder populates a fresh store with the default permission catalogue, the
// default roles, and an optional superadmin account. Every step is keyed by
// name and skips records that already exist, so running it on every boot is
// safe.
type Seeder struct {
	store  Store
	cfg    *Config
	hasher *Hasher
	logger Logger
	now    func() time.Time
}

// NewSeeder returns a Seeder over the given store.
func NewSeeder(store Store, cfg *Config) *Seeder {
	return &Seeder{
		store:  store,
		cfg:    cfg,
		hasher: NewHasher(cfg.BcryptCost),
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the seeder logger.
func (s *Seeder) WithLogger(logger Logger) *Seeder {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock.
func (s *Seeder) WithClock(clock func() time.Time) *Seeder {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Run performs the full seed pass.
func (s *Seeder) Run(ctx context.Context) error {
	permissionIDs, err := s.ensurePermissions(ctx)
	if err != nil {
		return err
	}

	roleIDs, err := s.ensureRoles(ctx, permissionIDs)
	if err != nil {
		return err
	}

	return s.ensureSuperadmin(ctx, roleIDs)
}

func (s *Seeder) ensurePermissions(ctx context.Context) (map[string]string, error) {
	ids := make(map[string]string, len(seedPermissions))
	for _, entry := range seedPermissions {
		existing, err := s.store.Permissions().GetByName(ctx, entry.name)
		if err == nil {
			ids[entry.name] = existing.ID
			continue
		}
		if !goerrors.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up seed permission")
		}

		now := s.now().UTC()
		permission := &Permission{
			ID:          NewID(),
			Name:        entry.name,
			Description: entry.description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Permissions().Create(ctx, permission); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create seed permission")
		}
		s.logger.Info("seeded permission %s", entry.name)
		ids[entry.name] = permission.ID
	}
	return ids, nil
}

func (s *Seeder) ensureRoles(ctx context.Context, permissionIDs map[string]string) (map[string]string, error) {
	ids := make(map[string]string, len(seedRoles)+1)

	roles := seedRoles
	if s.cfg.DefaultRoleName != "" && !containsRole(roles, s.cfg.DefaultRoleName) {
		roles = append(roles, seedEntry{s.cfg.DefaultRoleName, "Default role for new registrations"})
	}

	for _, entry := range roles {
		existing, err := s.store.Roles().GetByName(ctx, entry.name)
		if err == nil {
			ids[entry.name] = existing.ID
			continue
		}
		if !goerrors.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up seed role")
		}

		now := s.now().UTC()
		role := &Role{
			ID:            NewID(),
			Name:          entry.name,
			Description:   entry.description,
			PermissionIDs: s.grantedPermissionIDs(entry.name, permissionIDs),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.store.Roles().Create(ctx, role); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create seed role")
		}
		s.logger.Info("seeded role %s with %d permissions", entry.name, len(role.PermissionIDs))
		ids[entry.name] = role.ID
	}
	return ids, nil
}

func (s *Seeder) grantedPermissionIDs(roleName string, permissionIDs map[string]string) []string {
	if roleName == "superadmin" {
		out := make([]string, 0, len(seedPermissions))
		for _, entry := range seedPermissions {
			out = append(out, permissionIDs[entry.name])
		}
		return out
	}

	names := seedRolePermissions[roleName]
	out := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := permissionIDs[name]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *Seeder) ensureSuperadmin(ctx context.Context, roleIDs map[string]string) error {
	if s.cfg.SuperadminPassword == "" {
		s.logger.Debug("superadmin password not configured, skipping bootstrap account")
		return nil
	}

	_, err := s.store.Accounts().GetByUsername(ctx, s.cfg.SuperadminUsername)
	if err == nil {
		return nil
	}
	if !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up superadmin account")
	}

	hash, err := s.hasher.Hash(s.cfg.SuperadminPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash superadmin password")
	}

	var roles []string
	if id, ok := roleIDs["superadmin"]; ok {
		roles = []string{id}
	}

	now := s.now().UTC()
	account := &Account{
		ID:           NewID(),
		Username:     s.cfg.SuperadminUsername,
		Email:        s.cfg.SuperadminEmail,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  true,
		RoleIDs:      roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Accounts().Create(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create superadmin account")
	}
	s.logger.Info("seeded superadmin account %s", account.Username)
	return nil
}

func containsRole(entries []seedEntry, name string) bool {
	for _, e := range entries {
		if e.name == name {
			return true
		}
	}
	return false
}
