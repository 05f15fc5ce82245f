// Package storetest holds the behaviour every UserDirectory must share.
// Backends call Run from their own tests with a constructor for an empty
// directory.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wa "github.com/panyam/webauth"
)

// Run exercises dir against the UserDirectory contract.
func Run(t *testing.T, newDirectory func(t *testing.T) wa.UserDirectory) {
	ctx := context.Background()

	t.Run("find missing returns ErrUserNotFound", func(t *testing.T) {
		dir := newDirectory(t)
		_, err := dir.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, wa.ErrUserNotFound)
	})

	t.Run("create then find", func(t *testing.T) {
		dir := newDirectory(t)
		created, err := dir.Create(ctx, &wa.User{
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "hash-1",
			Provider:     wa.ProviderLocal,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		found, err := dir.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "alice", found.Username)
		assert.Equal(t, "hash-1", found.PasswordHash)
		assert.Equal(t, wa.ProviderLocal, found.Provider)
	})

	t.Run("duplicate create returns ErrEmailTaken", func(t *testing.T) {
		dir := newDirectory(t)
		_, err := dir.Create(ctx, &wa.User{Username: "a", Email: "dup@example.com", PasswordHash: "h"})
		require.NoError(t, err)

		_, err = dir.Create(ctx, &wa.User{Username: "b", Email: "dup@example.com", PasswordHash: "h2"})
		assert.ErrorIs(t, err, wa.ErrEmailTaken)

		found, err := dir.FindByEmail(ctx, "dup@example.com")
		require.NoError(t, err)
		assert.Equal(t, "a", found.Username, "first writer must be kept")
	})

	t.Run("concurrent creates admit one winner", func(t *testing.T) {
		dir := newDirectory(t)
		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = dir.Create(ctx, &wa.User{
					Username:     fmt.Sprintf("racer-%d", i),
					Email:        "race@example.com",
					PasswordHash: "h",
				})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, wa.ErrEmailTaken)
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("save replaces the credential", func(t *testing.T) {
		dir := newDirectory(t)
		created, err := dir.Create(ctx, &wa.User{Username: "bob", Email: "bob@example.com", PasswordHash: "old"})
		require.NoError(t, err)

		created.PasswordHash = "new"
		saved, err := dir.Save(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, created.ID, saved.ID)

		found, err := dir.FindByEmail(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, "new", found.PasswordHash)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("save of unknown user returns ErrUserNotFound", func(t *testing.T) {
		dir := newDirectory(t)
		_, err := dir.Save(ctx, &wa.User{Email: "ghost@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, wa.ErrUserNotFound)
	})
}
