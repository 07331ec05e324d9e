package utils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"equireach/config"
	"equireach/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewHistoryStore(db)
}

func TestHistoryStore_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestHistoryStore(t)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, name := range []string{"Alpha Stables", "Beta Ranch", "Alpha Stables"} {
		rec := &models.OutreachRecord{
			ContactID: fmt.Sprintf("c-%d", i%2),
			Name:      name,
			Email:     fmt.Sprintf("%d@example.com", i%2),
			Date:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Append(ctx, rec))
		assert.NotZero(t, rec.Seq)
		assert.Equal(t, models.StatusSent, rec.Status)
	}

	t.Run("recent is newest first", func(t *testing.T) {
		recent, err := store.QueryRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "Alpha Stables", recent[0].Name)
		assert.Equal(t, "Beta Ranch", recent[1].Name)
	})

	t.Run("all is append order without dedup", func(t *testing.T) {
		all, err := store.QueryAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, all[0].ContactID, all[2].ContactID)
		assert.Less(t, all[0].Seq, all[2].Seq)
	})
}

func TestHistoryStore_AppendIgnoresCallerSeq(t *testing.T) {
	ctx := context.Background()
	store := newTestHistoryStore(t)

	first := &models.OutreachRecord{ContactID: "a", Name: "A", Date: time.Now()}
	require.NoError(t, store.Append(ctx, first))

	second := &models.OutreachRecord{Seq: first.Seq, ContactID: "a", Name: "A", Date: time.Now()}
	require.NoError(t, store.Append(ctx, second))
	assert.NotEqual(t, first.Seq, second.Seq)
}

func TestHistoryStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestHistoryStore(t)

	rec := &models.OutreachRecord{ContactID: "a", Name: "A", Email: "a@example.com", Date: time.Now()}
	require.NoError(t, store.Append(ctx, rec))

	updated, err := store.UpdateStatus(ctx, rec.Seq, models.StatusReplied)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplied, updated.Status)

	all, err := store.QueryAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplied, all[0].Status)

	_, err = store.UpdateStatus(ctx, rec.Seq, "Bogus")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.UpdateStatus(ctx, rec.Seq+100, models.StatusReplied)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestHistoryStore_LatestByEmail(t *testing.T) {
	ctx := context.Background()
	store := newTestHistoryStore(t)

	older := &models.OutreachRecord{ContactID: "a", Name: "A", Email: "Owner@Stables.example", Date: time.Now()}
	newer := &models.OutreachRecord{ContactID: "a", Name: "A", Email: "owner@stables.example", Date: time.Now()}
	require.NoError(t, store.Append(ctx, older))
	require.NoError(t, store.Append(ctx, newer))

	got, err := store.LatestByEmail(ctx, " OWNER@stables.example ")
	require.NoError(t, err)
	assert.Equal(t, newer.Seq, got.Seq)

	_, err = store.LatestByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = store.LatestByEmail(ctx, "")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
