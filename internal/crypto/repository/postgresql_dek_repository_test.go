package repository

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/panvault/internal/crypto/domain"
	"github.com/allisson/panvault/internal/database"
	"github.com/allisson/panvault/internal/testutil"

	apperrors "github.com/allisson/panvault/internal/errors"
)

func randomWrappedKey(t *testing.T) []byte {
	t.Helper()
	wrapped := make([]byte, 48)
	_, err := rand.Read(wrapped)
	require.NoError(t, err)
	return wrapped
}

func TestNewPostgreSQLDekRepository(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestPostgreSQLDekRepository_Create(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	dek := &domain.Dek{
		ID:           uuid.Must(uuid.NewV7()),
		WrappedKey:   randomWrappedKey(t),
		RotationLock: true,
	}

	err := repo.Create(ctx, dek)
	assert.NoError(t, err)

	created, err := repo.Get(ctx, dek.ID)
	assert.NoError(t, err)
	assert.Equal(t, dek.ID, created.ID)
	assert.Equal(t, dek.WrappedKey, created.WrappedKey)
	assert.True(t, created.RotationLock)
	assert.False(t, created.InsertedAt.IsZero())
}

func TestPostgreSQLDekRepository_Get_NotFound(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	dek, err := repo.Get(ctx, uuid.Must(uuid.NewV7()))
	assert.Error(t, err)
	assert.Nil(t, dek)
	assert.True(t, apperrors.Is(err, domain.ErrDekNotFound))
}

func TestPostgreSQLDekRepository_GetLatest(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	// Empty table
	dek, err := repo.GetLatest(ctx)
	assert.Error(t, err)
	assert.Nil(t, dek)
	assert.True(t, apperrors.Is(err, domain.ErrDekNotFound))

	first := &domain.Dek{
		ID:           uuid.Must(uuid.NewV7()),
		WrappedKey:   randomWrappedKey(t),
		RotationLock: true,
	}
	require.NoError(t, repo.Create(ctx, first))
	time.Sleep(10 * time.Millisecond)
	second := &domain.Dek{
		ID:           uuid.Must(uuid.NewV7()),
		WrappedKey:   randomWrappedKey(t),
		RotationLock: false,
	}
	require.NoError(t, repo.Create(ctx, second))

	// The newest DEK wins regardless of lock state
	dek, err = repo.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, dek.ID)
}

func TestPostgreSQLDekRepository_LockRotation_SerializesTransactions(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	txManager := database.NewTxManager(db)
	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	acquired := make(chan struct{})
	release := make(chan struct{})
	order := make(chan string, 2)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := repo.LockRotation(ctx); err != nil {
				return err
			}
			close(acquired)
			<-release
			order <- "first"
			return nil
		})
		assert.NoError(t, err)
	}()

	<-acquired
	go func() {
		defer wg.Done()
		// Blocks on the sentinel row until the first transaction commits.
		err := txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := repo.LockRotation(ctx); err != nil {
				return err
			}
			order <- "second"
			return nil
		})
		assert.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, "first", <-order)
	assert.Equal(t, "second", <-order)
}

func TestPostgreSQLDekRepository_GetRecentLocked(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	// Unlocked DEKs never satisfy the recent-locked probe.
	testutil.CreateTestDek(t, db, "postgres", false)

	dek, err := repo.GetRecentLocked(ctx, time.Now().Add(-time.Minute))
	assert.Error(t, err)
	assert.Nil(t, dek)
	assert.True(t, apperrors.Is(err, domain.ErrDekNotFound))

	lockedID := testutil.CreateTestDek(t, db, "postgres", true)

	dek, err = repo.GetRecentLocked(ctx, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, lockedID, dek.ID)
	assert.True(t, dek.RotationLock)

	// A locked DEK outside the window is not recent.
	dek, err = repo.GetRecentLocked(ctx, time.Now().Add(time.Minute))
	assert.Error(t, err)
	assert.Nil(t, dek)
	assert.True(t, apperrors.Is(err, domain.ErrDekNotFound))
}

func TestPostgreSQLDekRepository_ClaimUnlocked(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	unlockedID := testutil.CreateTestDek(t, db, "postgres", false)
	testutil.CreateTestDek(t, db, "postgres", true)

	dek, err := repo.ClaimUnlocked(ctx)
	assert.NoError(t, err)
	assert.Equal(t, unlockedID, dek.ID)
	assert.True(t, dek.RotationLock)

	// The claim is persisted, so a second claim finds nothing.
	persisted, err := repo.Get(ctx, unlockedID)
	require.NoError(t, err)
	assert.True(t, persisted.RotationLock)

	dek, err = repo.ClaimUnlocked(ctx)
	assert.Error(t, err)
	assert.Nil(t, dek)
	assert.True(t, apperrors.Is(err, domain.ErrDekNotFound))
}

func TestPostgreSQLDekRepository_DeleteOrphanedBefore(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	orphanID := testutil.CreateTestDek(t, db, "postgres", true)
	referencedID := testutil.CreateTestDek(t, db, "postgres", true)

	// Reference one DEK from an encrypted PAN row.
	_, err := db.ExecContext(ctx,
		`INSERT INTO encrypted_pans (hpan, ciphertext, dek_id, last_seen_date, created_at, updated_at)
		 VALUES ($1, $2, $3, CURRENT_DATE, NOW(), NOW())`,
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		randomWrappedKey(t),
		referencedID,
	)
	require.NoError(t, err)

	deleted, err := repo.DeleteOrphanedBefore(ctx, time.Now().Add(time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.Get(ctx, orphanID)
	assert.True(t, apperrors.Is(err, domain.ErrDekNotFound))

	dek, err := repo.Get(ctx, referencedID)
	assert.NoError(t, err)
	assert.Equal(t, referencedID, dek.ID)
}

func TestPostgreSQLDekRepository_DeleteOrphanedBefore_RespectsCutoff(t *testing.T) {
	testutil.SkipIfNoPostgres(t)

	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLDekRepository(db)
	ctx := context.Background()

	freshID := testutil.CreateTestDek(t, db, "postgres", true)

	deleted, err := repo.DeleteOrphanedBefore(ctx, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	dek, err := repo.Get(ctx, freshID)
	assert.NoError(t, err)
	assert.Equal(t, freshID, dek.ID)
}
