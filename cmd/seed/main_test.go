package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"expenses-api/internal/expenses"
	"expenses-api/internal/models"
	"expenses-api/internal/storage/memory"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedRespectsOwnership(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := expenses.NewService(store, expenses.GlobalPolicyAny)

	stats, err := seed(ctx, svc, gofakeit.New(42), seedOptions{users: 3, records: 4, password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.users)
	assert.Equal(t, 12, stats.records)
	assert.GreaterOrEqual(t, stats.categories, len(globalCategories)+3)

	users, err := svc.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	for _, u := range users {
		records, err := svc.ListRecords(ctx, &u, models.RecordFilter{})
		require.NoError(t, err)
		assert.Len(t, records, 4)
		for _, r := range records {
			category, err := store.GetCategory(ctx, r.CategoryID)
			require.NoError(t, err)
			assert.True(t, expenses.CanUse(&u, category), "record %d uses a category its owner cannot see", r.ID)
			assert.True(t, r.Amount.IsPositive())
		}
	}
}

func TestRun_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	stdout := new(bytes.Buffer)

	err := run([]string{"-db", dbPath, "-users", "2", "-records", "3", "-seed", "7"}, stdout, new(bytes.Buffer))
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Seeded 2 users")
	assert.Contains(t, stdout.String(), "6 records")
}

func TestRun_InvalidCounts(t *testing.T) {
	err := run([]string{"-users", "0"}, new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users must be positive")
}
