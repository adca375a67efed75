package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/panvault/internal/pan/domain"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
)

// passthroughTxManager runs the function without a real transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memStore is a combined in-memory PAN and DEK store enforcing the same
// referential rule as the SQL schema: a DEK survives while any PAN
// references it.
type memStore struct {
	mu   sync.Mutex
	pans map[string]*domain.EncryptedPan
	deks map[uuid.UUID]*cryptoDomain.Dek
}

func newMemStore() *memStore {
	return &memStore{
		pans: make(map[string]*domain.EncryptedPan),
		deks: make(map[uuid.UUID]*cryptoDomain.Dek),
	}
}

func (s *memStore) addDek(insertedAt time.Time) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	dek := &cryptoDomain.Dek{
		ID:           uuid.Must(uuid.NewV7()),
		WrappedKey:   []byte("wrapped"),
		RotationLock: true,
		InsertedAt:   insertedAt,
	}
	s.deks[dek.ID] = dek
	return dek.ID
}

func (s *memStore) addPan(hpan string, dekID uuid.UUID, lastSeen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pans[hpan] = &domain.EncryptedPan{
		Hpan:         hpan,
		Ciphertext:   []byte("blob"),
		DekID:        dekID,
		LastSeenDate: lastSeen,
	}
}

func (s *memStore) Upsert(_ context.Context, pan *domain.EncryptedPan) error {
	s.addPan(pan.Hpan, pan.DekID, pan.LastSeenDate)
	return nil
}

func (s *memStore) Get(_ context.Context, hpan string) (*domain.EncryptedPan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pan, ok := s.pans[hpan]
	if !ok {
		return nil, domain.ErrPanNotFound
	}
	return pan, nil
}

func (s *memStore) DeleteLastSeenBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for hpan, pan := range s.pans {
		if pan.LastSeenDate.Before(cutoff) {
			delete(s.pans, hpan)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) CountReferencing(_ context.Context, dekID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, pan := range s.pans {
		if pan.DekID == dekID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) Create(_ context.Context, dek *cryptoDomain.Dek) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deks[dek.ID] = dek
	return nil
}

func (s *memStore) getDek(_ context.Context, id uuid.UUID) (*cryptoDomain.Dek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dek, ok := s.deks[id]
	if !ok {
		return nil, cryptoDomain.ErrDekNotFound
	}
	return dek, nil
}

func (s *memStore) GetLatest(_ context.Context) (*cryptoDomain.Dek, error) {
	return nil, cryptoDomain.ErrDekNotFound
}

func (s *memStore) GetRecentLocked(_ context.Context, since time.Time) (*cryptoDomain.Dek, error) {
	return nil, cryptoDomain.ErrDekNotFound
}

func (s *memStore) ClaimUnlocked(_ context.Context) (*cryptoDomain.Dek, error) {
	return nil, cryptoDomain.ErrDekNotFound
}

func (s *memStore) DeleteOrphanedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, dek := range s.deks {
		if !dek.InsertedAt.Before(cutoff) {
			continue
		}
		referenced := false
		for _, pan := range s.pans {
			if pan.DekID == id {
				referenced = true
				break
			}
		}
		if !referenced {
			delete(s.deks, id)
			deleted++
		}
	}
	return deleted, nil
}

func newTestSweeper(store *memStore) *SweeperUseCase {
	return NewSweeperUseCase(
		Config{
			Horizon:        180 * 24 * time.Hour,
			DekGracePeriod: 7 * 24 * time.Hour,
			SweepInterval:  24 * time.Hour,
		},
		passthroughTxManager{},
		store,
		&dekRepoAdapter{store},
		nil,
	)
}

// dekRepoAdapter renames the conflicting Get method.
type dekRepoAdapter struct {
	store *memStore
}

func (a *dekRepoAdapter) LockRotation(_ context.Context) error {
	return nil
}

func (a *dekRepoAdapter) Create(ctx context.Context, dek *cryptoDomain.Dek) error {
	return a.store.Create(ctx, dek)
}

func (a *dekRepoAdapter) Get(ctx context.Context, id uuid.UUID) (*cryptoDomain.Dek, error) {
	return a.store.getDek(ctx, id)
}

func (a *dekRepoAdapter) GetLatest(ctx context.Context) (*cryptoDomain.Dek, error) {
	return a.store.GetLatest(ctx)
}

func (a *dekRepoAdapter) GetRecentLocked(ctx context.Context, since time.Time) (*cryptoDomain.Dek, error) {
	return a.store.GetRecentLocked(ctx, since)
}

func (a *dekRepoAdapter) ClaimUnlocked(ctx context.Context) (*cryptoDomain.Dek, error) {
	return a.store.ClaimUnlocked(ctx)
}

func (a *dekRepoAdapter) DeleteOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return a.store.DeleteOrphanedBefore(ctx, cutoff)
}

func TestSweeperUseCase_Sweep_ExpiredPans(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sweeper := newTestSweeper(store)

	dekID := store.addDek(time.Now())
	store.addPan("expired", dekID, time.Now().AddDate(0, 0, -200))
	store.addPan("active", dekID, time.Now())

	result, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.PansDeleted)

	_, err = store.Get(ctx, "expired")
	assert.ErrorIs(t, err, domain.ErrPanNotFound)
	_, err = store.Get(ctx, "active")
	assert.NoError(t, err)
}

func TestSweeperUseCase_Sweep_OrphanedDeks(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sweeper := newTestSweeper(store)

	// An old DEK whose only PAN is expired becomes orphaned and is deleted
	// in the same sweep.
	oldDekID := store.addDek(time.Now().AddDate(0, 0, -30))
	store.addPan("expired", oldDekID, time.Now().AddDate(0, 0, -200))

	// An old DEK still referenced by an active PAN survives.
	referencedDekID := store.addDek(time.Now().AddDate(0, 0, -30))
	store.addPan("active", referencedDekID, time.Now())

	result, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.PansDeleted)
	assert.Equal(t, int64(1), result.DeksDeleted)

	_, err = store.getDek(ctx, oldDekID)
	assert.ErrorIs(t, err, cryptoDomain.ErrDekNotFound)
	_, err = store.getDek(ctx, referencedDekID)
	assert.NoError(t, err)
}

func TestSweeperUseCase_Sweep_DekGracePeriod(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sweeper := newTestSweeper(store)

	// A freshly generated DEK with no PANs yet is inside the grace period.
	freshDekID := store.addDek(time.Now())

	result, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.DeksDeleted)

	_, err = store.getDek(ctx, freshDekID)
	assert.NoError(t, err)
}

func TestSweeperUseCase_Sweep_DryRun(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	// Real transactions roll a dry run back; the passthrough manager used
	// here only checks the result counts and error handling.
	sweeper := newTestSweeper(store)

	dekID := store.addDek(time.Now().AddDate(0, 0, -30))
	store.addPan("expired", dekID, time.Now().AddDate(0, 0, -200))

	result, err := sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, int64(1), result.PansDeleted)
	assert.Equal(t, int64(1), result.DeksDeleted)
}
