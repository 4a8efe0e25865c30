package memstore_test

import (
	"context"
	"sync"
	"testing"

	warden "go-warden"
	"go-warden/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCopiesRecordsOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	account := &warden.Account{
		ID:       warden.NewID(),
		Username: "alice",
		RoleIDs:  []string{"role-1"},
	}
	require.NoError(t, store.Accounts().Create(ctx, account))

	// Mutating the caller's record after Create must not leak into the store.
	account.Username = "mutated"
	account.RoleIDs[0] = "mutated"

	stored, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, []string{"role-1"}, stored.RoleIDs)

	// And mutating a read result must not change the stored record.
	stored.Username = "mutated-again"
	again, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
}

func TestStoreNotFoundErrors(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	_, err := store.Accounts().GetByID(ctx, "missing")
	require.Error(t, err)
	_, err = store.Roles().GetByName(ctx, "missing")
	require.Error(t, err)
	_, err = store.Permissions().GetByID(ctx, "missing")
	require.Error(t, err)

	assert.Error(t, store.Accounts().Update(ctx, &warden.Account{ID: "missing"}))
	assert.Error(t, store.Roles().Delete(ctx, "missing"))
}

func TestIncrementFailedAttemptsIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	account := &warden.Account{ID: warden.NewID(), Username: "alice"}
	require.NoError(t, store.Accounts().Create(ctx, account))

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Accounts().IncrementFailedAttempts(ctx, account.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, stored.FailedAttempts)
}

func TestGetByIDsOmitsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	role := &warden.Role{ID: warden.NewID(), Name: "viewer"}
	require.NoError(t, store.Roles().Create(ctx, role))

	roles, err := store.Roles().GetByIDs(ctx, []string{role.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}
