package warden

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// RoleService manages the role collection. Names are unique; permission-id
// references are validated on write and roles cannot be deleted while any
// account still references them.
type RoleService struct {
	store  Store
	logger Logger
	now    func() time.Time
}

// NewRoleService returns a RoleService over the given store.
func NewRoleService(store Store) *RoleService {
	return &RoleService{
		store:  store,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the service logger.
func (s *RoleService) WithLogger(logger Logger) *RoleService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock.
func (s *RoleService) WithClock(clock func() time.Time) *RoleService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Create adds a role with a unique name. Every permission id must resolve.
func (s *RoleService) Create(ctx context.Context, in RoleInput) (*Role, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.Roles().GetByName(ctx, in.Name); err == nil {
		return nil, NewConflictError("role name already exists")
	} else if !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check role name")
	}

	if err := s.validatePermissionIDs(ctx, in.PermissionIDs); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	role := &Role{
		ID:            NewID(),
		Name:          in.Name,
		Description:   in.Description,
		PermissionIDs: in.PermissionIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if role.PermissionIDs == nil {
		role.PermissionIDs = []string{}
	}

	if err := s.store.Roles().Create(ctx, role); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist role")
	}
	return role, nil
}

// Get returns a role by id.
func (s *RoleService) Get(ctx context.Context, id string) (*Role, error) {
	return s.getRole(ctx, id)
}

// GetByName returns a role by its unique name.
func (s *RoleService) GetByName(ctx context.Context, name string) (*Role, error) {
	role, err := s.store.Roles().GetByName(ctx, name)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, NewNotFoundError("role")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load role")
	}
	return role, nil
}

// List returns every role.
func (s *RoleService) List(ctx context.Context) ([]*Role, error) {
	roles, err := s.store.Roles().List(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list roles")
	}
	return roles, nil
}

// Update renames or re-points a role. Renames keep name uniqueness; a new
// permission-id list must fully resolve before it is written.
func (s *RoleService) Update(ctx context.Context, id string, in RoleInput) (*Role, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != role.Name {
		if existing, err := s.store.Roles().GetByName(ctx, in.Name); err == nil && existing.ID != id {
			return nil, NewConflictError("role name already exists")
		} else if err != nil && !goerrors.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check role name")
		}
	}

	if in.PermissionIDs != nil {
		if err := s.validatePermissionIDs(ctx, in.PermissionIDs); err != nil {
			return nil, err
		}
		role.PermissionIDs = in.PermissionIDs
	}

	role.Name = in.Name
	role.Description = in.Description
	role.UpdatedAt = s.now().UTC()

	if err := s.store.Roles().Update(ctx, role); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist role update")
	}
	return role, nil
}

// Delete removes a role. Deletion is blocked while any account references the
// role id; referential integrity is by existence check, the store has no
// native foreign keys.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	if _, err := s.getRole(ctx, id); err != nil {
		return err
	}

	inUse, err := s.store.Accounts().AnyWithRole(ctx, id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check role references")
	}
	if inUse {
		return NewConflictError("role is assigned to one or more accounts")
	}

	if err := s.store.Roles().Delete(ctx, id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete role")
	}
	return nil
}

// AssignPermission appends a permission id to the role's reference list.
func (s *RoleService) AssignPermission(ctx context.Context, roleID, permissionID string) (*Role, error) {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	if err := s.validatePermissionIDs(ctx, []string{permissionID}); err != nil {
		return nil, err
	}

	if role.HasPermission(permissionID) {
		return role, nil
	}

	role.PermissionIDs = append(role.PermissionIDs, permissionID)
	role.UpdatedAt = s.now().UTC()
	if err := s.store.Roles().Update(ctx, role); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist role update")
	}
	return role, nil
}

// RemovePermission drops a permission id from the role's reference list.
func (s *RoleService) RemovePermission(ctx context.Context, roleID, permissionID string) (*Role, error) {
	role, err := s.getRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	kept := role.PermissionIDs[:0]
	for _, id := range role.PermissionIDs {
		if id != permissionID {
			kept = append(kept, id)
		}
	}
	role.PermissionIDs = kept
	role.UpdatedAt = s.now().UTC()

	if err := s.store.Roles().Update(ctx, role); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist role update")
	}
	return role, nil
}

func (s *RoleService) getRole(ctx context.Context, id string) (*Role, error) {
	role, err := s.store.Roles().GetByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, NewNotFoundError("role")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load role")
	}
	return role, nil
}

func (s *RoleService) validatePermissionIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	permissions, err := s.store.Permissions().GetByIDs(ctx, ids)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate permission ids")
	}

	found := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		found[p.ID] = struct{}{}
	}

	var unknown []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return NewInvalidReferenceSetError("one or more permission ids do not exist", unknown)
	}
	return nil
}
