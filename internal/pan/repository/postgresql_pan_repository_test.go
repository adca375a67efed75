package repository

import (
	"context"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/panvault/internal/pan/domain"
	"github.com/allisson/panvault/internal/testutil"

	apperrors "github.com/allisson/panvault/internal/errors"
)

func testHpan(suffix string) string {
	return strings.Repeat("0", 64-len(suffix)) + suffix
}

func randomCiphertext(t *testing.T) []byte {
	t.Helper()
	blob := make([]byte, 44)
	_, err := rand.Read(blob)
	require.NoError(t, err)
	return blob
}

func TestPostgreSQLPanRepository_Upsert(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPanRepository(db)
	ctx := context.Background()

	dekID := testutil.CreateTestDek(t, db, "postgres", true)
	pan := &domain.EncryptedPan{
		Hpan:         testHpan("a1"),
		Ciphertext:   randomCiphertext(t),
		DekID:        dekID,
		LastSeenDate: time.Now(),
	}

	err := repo.Upsert(ctx, pan)
	assert.NoError(t, err)

	created, err := repo.Get(ctx, pan.Hpan)
	assert.NoError(t, err)
	assert.Equal(t, pan.Hpan, created.Hpan)
	assert.Equal(t, pan.Ciphertext, created.Ciphertext)
	assert.Equal(t, dekID, created.DekID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())
}

func TestPostgreSQLPanRepository_Upsert_KnownCardKeepsCiphertext(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPanRepository(db)
	ctx := context.Background()

	dekID := testutil.CreateTestDek(t, db, "postgres", true)
	original := &domain.EncryptedPan{
		Hpan:         testHpan("b2"),
		Ciphertext:   randomCiphertext(t),
		DekID:        dekID,
		LastSeenDate: time.Now().AddDate(0, 0, -30),
	}
	require.NoError(t, repo.Upsert(ctx, original))

	// Re-ingesting the same card with a fresh ciphertext only refreshes
	// last_seen_date; the stored blob and DEK reference survive.
	newDekID := testutil.CreateTestDek(t, db, "postgres", true)
	reingested := &domain.EncryptedPan{
		Hpan:         original.Hpan,
		Ciphertext:   randomCiphertext(t),
		DekID:        newDekID,
		LastSeenDate: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, reingested))

	stored, err := repo.Get(ctx, original.Hpan)
	require.NoError(t, err)
	assert.Equal(t, original.Ciphertext, stored.Ciphertext)
	assert.Equal(t, dekID, stored.DekID)
	assert.True(t, stored.LastSeenDate.After(original.LastSeenDate))
}

func TestPostgreSQLPanRepository_Upsert_StaleSightingDoesNotRewind(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPanRepository(db)
	ctx := context.Background()

	dekID := testutil.CreateTestDek(t, db, "postgres", true)
	pan := &domain.EncryptedPan{
		Hpan:         testHpan("c3"),
		Ciphertext:   randomCiphertext(t),
		DekID:        dekID,
		LastSeenDate: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, pan))
	fresh, err := repo.Get(ctx, pan.Hpan)
	require.NoError(t, err)

	// An out-of-order sighting with an older date must not move
	// last_seen_date backwards.
	stale := &domain.EncryptedPan{
		Hpan:         pan.Hpan,
		Ciphertext:   pan.Ciphertext,
		DekID:        dekID,
		LastSeenDate: time.Now().AddDate(0, 0, -60),
	}
	require.NoError(t, repo.Upsert(ctx, stale))

	stored, err := repo.Get(ctx, pan.Hpan)
	require.NoError(t, err)
	assert.False(t, stored.LastSeenDate.Before(fresh.LastSeenDate))
}

func TestPostgreSQLPanRepository_Upsert_MissingDek(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPanRepository(db)
	ctx := context.Background()

	pan := &domain.EncryptedPan{
		Hpan:         testHpan("d4"),
		Ciphertext:   randomCiphertext(t),
		DekID:        uuid.Must(uuid.NewV7()),
		LastSeenDate: time.Now(),
	}

	err := repo.Upsert(ctx, pan)
	assert.True(t, apperrors.Is(err, domain.ErrDekIntegrity))
}

func TestPostgreSQLPanRepository_Get_NotFound(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPanRepository(db)
	ctx := context.Background()

	pan, err := repo.Get(ctx, testHpan("ff"))
	assert.Error(t, err)
	assert.Nil(t, pan)
	assert.True(t, apperrors.Is(err, domain.ErrPanNotFound))
}

func TestPostgreSQLPanRepository_DeleteLastSeenBefore(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPanRepository(db)
	ctx := context.Background()

	dekID := testutil.CreateTestDek(t, db, "postgres", true)

	expired := &domain.EncryptedPan{
		Hpan:         testHpan("e5"),
		Ciphertext:   randomCiphertext(t),
		DekID:        dekID,
		LastSeenDate: time.Now().AddDate(0, 0, -200),
	}
	active := &domain.EncryptedPan{
		Hpan:         testHpan("e6"),
		Ciphertext:   randomCiphertext(t),
		DekID:        dekID,
		LastSeenDate: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, expired))
	require.NoError(t, repo.Upsert(ctx, active))

	deleted, err := repo.DeleteLastSeenBefore(ctx, time.Now().AddDate(0, 0, -180))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.Get(ctx, expired.Hpan)
	assert.True(t, apperrors.Is(err, domain.ErrPanNotFound))

	_, err = repo.Get(ctx, active.Hpan)
	assert.NoError(t, err)
}

func TestPostgreSQLPanRepository_CountReferencing(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLPanRepository(db)
	ctx := context.Background()

	dekID := testutil.CreateTestDek(t, db, "postgres", true)
	otherDekID := testutil.CreateTestDek(t, db, "postgres", true)

	for _, suffix := range []string{"f1", "f2", "f3"} {
		pan := &domain.EncryptedPan{
			Hpan:         testHpan(suffix),
			Ciphertext:   randomCiphertext(t),
			DekID:        dekID,
			LastSeenDate: time.Now(),
		}
		require.NoError(t, repo.Upsert(ctx, pan))
	}

	count, err := repo.CountReferencing(ctx, dekID)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountReferencing(ctx, otherDekID)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
