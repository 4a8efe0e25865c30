package warden

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// PermissionService manages the permission collection. Names are unique and
// permissions cannot be deleted while any role still references them.
type PermissionService struct {
	store  Store
	logger Logger
	now    func() time.Time
}

// NewPermissionService returns a PermissionService over the given store.
func NewPermissionService(store Store) *PermissionService {
	return &PermissionService{
		store:  store,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the service logger.
func (s *PermissionService) WithLogger(logger Logger) *PermissionService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock.
func (s *PermissionService) WithClock(clock func() time.Time) *PermissionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Create adds a permission with a unique name.
func (s *PermissionService) Create(ctx context.Context, in PermissionInput) (*Permission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.Permissions().GetByName(ctx, in.Name); err == nil {
		return nil, NewConflictError("permission name already exists")
	} else if !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check permission name")
	}

	now := s.now().UTC()
	permission := &Permission{
		ID:          NewID(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Permissions().Create(ctx, permission); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist permission")
	}
	return permission, nil
}

// Get returns a permission by id.
func (s *PermissionService) Get(ctx context.Context, id string) (*Permission, error) {
	return s.getPermission(ctx, id)
}

// GetByName returns a permission by its unique name.
func (s *PermissionService) GetByName(ctx context.Context, name string) (*Permission, error) {
	permission, err := s.store.Permissions().GetByName(ctx, name)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, NewNotFoundError("permission")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load permission")
	}
	return permission, nil
}

// List returns every permission.
func (s *PermissionService) List(ctx context.Context) ([]*Permission, error) {
	permissions, err := s.store.Permissions().List(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list permissions")
	}
	return permissions, nil
}

// Update renames or re-describes a permission, keeping name uniqueness.
func (s *PermissionService) Update(ctx context.Context, id string, in PermissionInput) (*Permission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	permission, err := s.getPermission(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != permission.Name {
		if existing, err := s.store.Permissions().GetByName(ctx, in.Name); err == nil && existing.ID != id {
			return nil, NewConflictError("permission name already exists")
		} else if err != nil && !goerrors.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check permission name")
		}
	}

	permission.Name = in.Name
	permission.Description = in.Description
	permission.UpdatedAt = s.now().UTC()

	if err := s.store.Permissions().Update(ctx, permission); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist permission update")
	}
	return permission, nil
}

// Delete removes a permission. Deletion is blocked while any role references
// the permission id.
func (s *PermissionService) Delete(ctx context.Context, id string) error {
	if _, err := s.getPermission(ctx, id); err != nil {
		return err
	}

	inUse, err := s.store.Roles().AnyWithPermission(ctx, id)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check permission references")
	}
	if inUse {
		return NewConflictError("permission is assigned to one or more roles")
	}

	if err := s.store.Permissions().Delete(ctx, id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete permission")
	}
	return nil
}

func (s *PermissionService) getPermission(ctx context.Context, id string) (*Permission, error) {
	permission, err := s.store.Permissions().GetByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, NewNotFoundError("permission")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load permission")
	}
	return permission, nil
}
