package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedratio-labs/pool-indexer/internal/ledger"
	"github.com/fixedratio-labs/pool-indexer/internal/models"
	"github.com/fixedratio-labs/pool-indexer/internal/rpc"
	"github.com/fixedratio-labs/pool-indexer/internal/store"
)

// fakeReader serves canned account state and can be told to fail for
// specific addresses.
type fakeReader struct {
	mu      sync.Mutex
	pools   map[string]*ledger.PoolAccount
	system  map[string]*ledger.SystemAccount
	failing map[string]error
	slot    uint64
	sigs    map[string][]rpc.SignatureInfo
	txs     map[string]*rpc.TransactionResult
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		pools:   make(map[string]*ledger.PoolAccount),
		system:  make(map[string]*ledger.SystemAccount),
		failing: make(map[string]error),
		sigs:    make(map[string][]rpc.SignatureInfo),
		txs:     make(map[string]*rpc.TransactionResult),
		slot:    100,
	}
}

func (f *fakeReader) TestConnection(ctx context.Context) bool { return true }

func (f *fakeReader) CurrentSlot(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slot, nil
}

func (f *fakeReader) GetPoolState(ctx context.Context, address string) (*ledger.PoolAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[address]; ok {
		return nil, err
	}
	acc, ok := f.pools[address]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeReader) GetSystemState(ctx context.Context, address string) (*ledger.SystemAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.system[address]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeReader) GetRecentTransactionSignatures(ctx context.Context, address string, limit int) ([]rpc.SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sigs := f.sigs[address]
	if len(sigs) > limit {
		sigs = sigs[:limit]
	}
	return sigs, nil
}

func (f *fakeReader) GetTransactionDetails(ctx context.Context, signature string) (*rpc.TransactionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[signature]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return tx, nil
}

// memPoolRepo is an in-memory PoolRepository.
type memPoolRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Pool // keyed by id
}

func newMemPoolRepo() *memPoolRepo {
	return &memPoolRepo{rows: make(map[string]*models.Pool)}
}

func (m *memPoolRepo) GetByID(ctx context.Context, id string) (*models.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPoolRepo) GetByAddress(ctx context.Context, network, address string) (*models.Pool, error) {
	return m.GetByID(ctx, store.PoolID(network, address))
}

func (m *memPoolRepo) GetAll(ctx context.Context) ([]*models.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Pool, 0, len(m.rows))
	for _, p := range m.rows {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPoolRepo) GetByNetwork(ctx context.Context, network string) ([]*models.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Pool
	for _, p := range m.rows {
		if p.Network == network {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPoolRepo) GetAllAddressesForNetwork(ctx context.Context, network string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.rows {
		if p.Network == network {
			out = append(out, p.Address)
		}
	}
	return out, nil
}

func (m *memPoolRepo) Add(ctx context.Context, pool *models.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[pool.ID]; ok {
		return store.ErrAlreadyExists
	}
	cp := *pool
	m.rows[pool.ID] = &cp
	return nil
}

func (m *memPoolRepo) Update(ctx context.Context, pool *models.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[pool.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *pool
	m.rows[pool.ID] = &cp
	return nil
}

func (m *memPoolRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memPoolRepo) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memPoolRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

func (m *memPoolRepo) Ping(ctx context.Context) error { return nil }

// memSystemRepo is an in-memory SystemStateRepository.
type memSystemRepo struct {
	mu   sync.Mutex
	rows map[string]*models.SystemState
}

func newMemSystemRepo() *memSystemRepo {
	return &memSystemRepo{rows: make(map[string]*models.SystemState)}
}

func (m *memSystemRepo) Get(ctx context.Context, network string) (*models.SystemState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[network]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSystemRepo) Upsert(ctx context.Context, state *models.SystemState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.rows[state.Network] = &cp
	return nil
}

func testAccount(num, den uint64) *ledger.PoolAccount {
	acc := &ledger.PoolAccount{
		RatioANumerator:      num,
		RatioBDenominator:    den,
		TotalTokenALiquidity: 1000,
		TotalTokenBLiquidity: 2000,
	}
	acc.TokenAMint[0] = 1
	acc.TokenBMint[0] = 2
	acc.TokenAVault[0] = 3
	acc.TokenBVault[0] = 4
	return acc
}

func newTestSyncer(reader LedgerReader) (*Syncer, *memPoolRepo, *memSystemRepo) {
	pools := newMemPoolRepo()
	system := newMemSystemRepo()
	s := New(reader, pools, system, nil, Config{
		Network:            "testnet",
		MaxConcurrentPools: 3,
	}, nil)
	return s, pools, system
}

func TestSyncOneCreatesThenUpdates(t *testing.T) {
	reader := newFakeReader()
	addr := "PoolAddr111"
	reader.pools[addr] = testAccount(10, 1)

	s, repo, _ := newTestSyncer(reader)
	ctx := context.Background()

	created, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, store.PoolID("testnet", addr), created.ID)
	assert.Equal(t, uint64(10), created.RatioANumerator)
	assert.True(t, created.Active)

	count, _ := repo.Count(ctx)
	assert.Equal(t, int64(1), count)

	// Remote liquidity moves; second sync must update the same row.
	reader.mu.Lock()
	reader.pools[addr].TotalTokenALiquidity = 5000
	reader.mu.Unlock()

	updated, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, uint64(5000), updated.TokenALiquidity)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	count, _ = repo.Count(ctx)
	assert.Equal(t, int64(1), count)
}

func TestSyncOneIdempotent(t *testing.T) {
	reader := newFakeReader()
	addr := "PoolAddr222"
	reader.pools[addr] = testAccount(3, 1)

	s, _, _ := newTestSyncer(reader)
	ctx := context.Background()

	first, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)

	second, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)

	// No remote change: everything but the sync timestamp is identical.
	assert.False(t, second.LastSyncedAt.Before(first.LastSyncedAt))
	first.LastSyncedAt = time.Time{}
	second.LastSyncedAt = time.Time{}
	assert.Equal(t, first, second)
}

func TestSyncOneNotFoundIsNotAnError(t *testing.T) {
	reader := newFakeReader()
	s, repo, _ := newTestSyncer(reader)

	pool, err := s.SyncOne(context.Background(), "MissingAddr")
	require.NoError(t, err)
	assert.Nil(t, pool)

	count, _ := repo.Count(context.Background())
	assert.Equal(t, int64(0), count)
}

func TestSyncOneRejectsRatioChange(t *testing.T) {
	reader := newFakeReader()
	addr := "PoolAddr333"
	reader.pools[addr] = testAccount(10, 1)

	s, _, _ := newTestSyncer(reader)
	ctx := context.Background()

	_, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)

	reader.mu.Lock()
	reader.pools[addr].RatioANumerator = 20
	reader.mu.Unlock()

	_, err = s.SyncOne(ctx, addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity violation")
}

func TestSyncManyIsolatesFailures(t *testing.T) {
	reader := newFakeReader()
	var addrs []string
	for i := 0; i < 5; i++ {
		addr := fmt.Sprintf("Pool%d", i)
		reader.pools[addr] = testAccount(uint64(i+1), 1)
		addrs = append(addrs, addr)
	}
	reader.failing["Pool2"] = fmt.Errorf("connection reset")

	s, _, _ := newTestSyncer(reader)

	synced, err := s.SyncMany(context.Background(), addrs)
	require.NoError(t, err)
	assert.Len(t, synced, 4)
	for _, p := range synced {
		assert.NotEqual(t, "Pool2", p.Address)
	}
}

func TestSyncAllSyncsKnownPoolsOnly(t *testing.T) {
	reader := newFakeReader()
	known := "KnownPool"
	unknown := "UnknownPool"
	reader.pools[known] = testAccount(2, 1)
	reader.pools[unknown] = testAccount(3, 1)

	s, repo, _ := newTestSyncer(reader)
	ctx := context.Background()

	// Seed the known pool locally.
	_, err := s.SyncOne(ctx, known)
	require.NoError(t, err)

	n, err := s.SyncAll(ctx, "testnet")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// SyncAll never registers pools it has not seen before.
	_, err = repo.GetByAddress(ctx, "testnet", unknown)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDiscoverNewPoolsIsStub(t *testing.T) {
	s, _, _ := newTestSyncer(newFakeReader())
	n, err := s.DiscoverNewPools(context.Background(), 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSyncSystemStateCreateAndUpdate(t *testing.T) {
	reader := newFakeReader()
	addr := "SystemAddr"
	reader.system[addr] = &ledger.SystemAccount{
		Paused:          true,
		PauseTimestamp:  1700000000,
		PauseReasonCode: 3,
	}
	reader.slot = 4242

	s, _, sysRepo := newTestSyncer(reader)
	ctx := context.Background()

	state, err := s.SyncSystemState(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Paused)
	assert.Equal(t, uint8(3), state.PauseReasonCode)
	assert.Equal(t, "critical security issue", state.PauseReason)
	assert.Equal(t, uint64(4242), state.LastSyncedSlot)

	// Unpause remotely; the same row must be overwritten.
	reader.mu.Lock()
	reader.system[addr].Paused = false
	reader.system[addr].PauseReasonCode = 0
	reader.system[addr].PauseTimestamp = 0
	reader.mu.Unlock()

	state, err = s.SyncSystemState(ctx, addr)
	require.NoError(t, err)
	assert.False(t, state.Paused)
	assert.True(t, state.PausedAt.IsZero())

	stored, err := sysRepo.Get(ctx, "testnet")
	require.NoError(t, err)
	assert.False(t, stored.Paused)
}

func TestSyncSystemStateCarriesConfiguredAuthority(t *testing.T) {
	reader := newFakeReader()
	addr := "SystemAddr"
	reader.system[addr] = &ledger.SystemAccount{}

	// The authority is not part of the on-chain account layout, so it
	// comes from configuration.
	s := New(reader, newMemPoolRepo(), newMemSystemRepo(), nil, Config{
		Network:         "testnet",
		SystemAuthority: "AuthKey1111",
	}, nil)

	state, err := s.SyncSystemState(context.Background(), addr)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "AuthKey1111", state.Authority)
}

func TestSlotWatermark(t *testing.T) {
	s, _, _ := newTestSyncer(newFakeReader())
	ctx := context.Background()

	slot, err := s.LastSyncedSlot(ctx, "testnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), slot)

	require.NoError(t, s.UpdateLastSyncedSlot(ctx, "testnet", 999))

	slot, err = s.LastSyncedSlot(ctx, "testnet")
	require.NoError(t, err)
	assert.Equal(t, uint64(999), slot)
}
