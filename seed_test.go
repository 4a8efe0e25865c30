package warden_test

import (
	"context"
	"testing"
	"time"

	warden "go-warden"
	"go-warden/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedConfig() *warden.Config {
	return &warden.Config{
		SigningKey:         "test-signing-key-32-bytes-long!!",
		DefaultRoleName:    "member",
		BcryptCost:         4,
		MaxFailedAttempts:  5,
		LockoutDuration:    15 * time.Minute,
		SuperadminUsername: "superadmin",
		SuperadminEmail:    "superadmin@example.com",
	}
}

func TestSeederCreatesCatalogue(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, warden.NewSeeder(store, seedConfig()).Run(ctx))

	permissions, err := store.Permissions().List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, permissions)

	superadmin, err := store.Roles().GetByName(ctx, "superadmin")
	require.NoError(t, err)
	assert.Len(t, superadmin.PermissionIDs, len(permissions), "superadmin holds every seeded permission")

	member, err := store.Roles().GetByName(ctx, "member")
	require.NoError(t, err)
	assert.NotEmpty(t, member.PermissionIDs)

	admin, err := store.Roles().GetByName(ctx, "admin")
	require.NoError(t, err)
	assert.Less(t, len(admin.PermissionIDs), len(permissions))
}

func TestSeederIsIdempotent(t *testing.T) {
	store := memstore.New()
	cfg := seedConfig()
	ctx := context.Background()

	require.NoError(t, warden.NewSeeder(store, cfg).Run(ctx))

	roles, err := store.Roles().List(ctx)
	require.NoError(t, err)
	permissions, err := store.Permissions().List(ctx)
	require.NoError(t, err)

	require.NoError(t, warden.NewSeeder(store, cfg).Run(ctx))

	rolesAgain, err := store.Roles().List(ctx)
	require.NoError(t, err)
	permissionsAgain, err := store.Permissions().List(ctx)
	require.NoError(t, err)

	assert.Len(t, rolesAgain, len(roles))
	assert.Len(t, permissionsAgain, len(permissions))
}

func TestSeederBootstrapsSuperadminWhenConfigured(t *testing.T) {
	store := memstore.New()
	cfg := seedConfig()
	ctx := context.Background()

	// No password configured, no bootstrap account.
	require.NoError(t, warden.NewSeeder(store, cfg).Run(ctx))
	_, err := store.Accounts().GetByUsername(ctx, "superadmin")
	require.Error(t, err)

	cfg.SuperadminPassword = "SuperSecret123!"
	require.NoError(t, warden.NewSeeder(store, cfg).Run(ctx))

	account, err := store.Accounts().GetByUsername(ctx, "superadmin")
	require.NoError(t, err)
	assert.True(t, account.IsSuperuser)
	assert.True(t, account.IsActive)
	require.Len(t, account.RoleIDs, 1)

	role, err := store.Roles().GetByID(ctx, account.RoleIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "superadmin", role.Name)

	hasher := warden.NewHasher(cfg.BcryptCost)
	assert.True(t, hasher.Verify("SuperSecret123!", account.PasswordHash))
}

func TestSeederRegistrationPicksUpDefaultRole(t *testing.T) {
	store := memstore.New()
	cfg := seedConfig()
	cfg.AccessTokenTTL = 30 * time.Minute
	cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	ctx := context.Background()

	require.NoError(t, warden.NewSeeder(store, cfg).Run(ctx))

	svc := warden.NewAuthService(store, cfg)
	view, err := svc.Register(ctx, warden.RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, view.Roles)
	assert.Contains(t, view.Permissions, "account:read_own")
}
