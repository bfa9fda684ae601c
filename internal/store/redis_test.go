package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	return client
}

func cleanupTestRedis(client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func makePool(network, address string) *models.Pool {
	return &models.Pool{
		ID:                PoolID(network, address),
		Address:           address,
		Network:           network,
		TokenASymbol:      "SOL",
		TokenBSymbol:      "USDC",
		RatioANumerator:   160,
		RatioBDenominator: 1,
		Active:            true,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
}

func TestPoolID(t *testing.T) {
	id := PoolID("mainnet", "Addr123")
	assert.Equal(t, "mainnet:Addr123", id)

	network, address, err := splitPoolID(id)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", network)
	assert.Equal(t, "Addr123", address)

	for _, bad := range []string{"", "mainnet", "mainnet:", ":Addr123"} {
		_, _, err := splitPoolID(bad)
		assert.Error(t, err, bad)
	}
}

func TestRedisPoolRepository_AddAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	repo, err := NewRedisPoolRepository(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	pool := makePool("testnet", "PoolA")

	require.NoError(t, repo.Add(ctx, pool))

	// Adding the same identity twice is rejected.
	err = repo.Add(ctx, pool)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := repo.GetByID(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, pool.Address, got.Address)
	assert.Equal(t, uint64(160), got.RatioANumerator)

	got, err = repo.GetByAddress(ctx, "testnet", "PoolA")
	require.NoError(t, err)
	assert.Equal(t, pool.ID, got.ID)

	_, err = repo.GetByID(ctx, "testnet:Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisPoolRepository_Update(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	repo, err := NewRedisPoolRepository(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	pool := makePool("testnet", "PoolB")

	// Updating a row that was never added is rejected.
	err = repo.Update(ctx, pool)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Add(ctx, pool))

	pool.TokenALiquidity = 42_000
	require.NoError(t, repo.Update(ctx, pool))

	got, err := repo.GetByID(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42_000), got.TokenALiquidity)
}

func TestRedisPoolRepository_NetworkIndexes(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	repo, err := NewRedisPoolRepository(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Add(ctx, makePool("testnet", fmt.Sprintf("TPool%d", i))))
	}
	require.NoError(t, repo.Add(ctx, makePool("mainnet", "MPool")))

	testnetPools, err := repo.GetByNetwork(ctx, "testnet")
	require.NoError(t, err)
	assert.Len(t, testnetPools, 3)

	addrs, err := repo.GetAllAddressesForNetwork(ctx, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, []string{"MPool"}, addrs)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestRedisPoolRepository_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	repo, err := NewRedisPoolRepository(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	pool := makePool("testnet", "PoolC")
	require.NoError(t, repo.Add(ctx, pool))

	require.NoError(t, repo.Delete(ctx, pool.ID))

	_, err = repo.GetByID(ctx, pool.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Index entries are removed with the row.
	addrs, err := repo.GetAllAddressesForNetwork(ctx, "testnet")
	require.NoError(t, err)
	assert.Empty(t, addrs)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedisSystemStateRepository(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	repo, err := NewRedisSystemStateRepository(client)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = repo.Get(ctx, "testnet")
	assert.ErrorIs(t, err, ErrNotFound)

	state := &models.SystemState{
		Network:         "testnet",
		Address:         "SysState1",
		Paused:          true,
		PauseReasonCode: 4,
		PauseReason:     models.PauseReasonText(4),
		LastSyncedSlot:  12345,
	}
	require.NoError(t, repo.Upsert(ctx, state))

	got, err := repo.Get(ctx, "testnet")
	require.NoError(t, err)
	assert.True(t, got.Paused)
	assert.Equal(t, "routine maintenance", got.PauseReason)
	assert.Equal(t, uint64(12345), got.LastSyncedSlot)

	// Upsert overwrites in place; one row per network.
	state.Paused = false
	state.PauseReasonCode = 0
	require.NoError(t, repo.Upsert(ctx, state))

	got, err = repo.Get(ctx, "testnet")
	require.NoError(t, err)
	assert.False(t, got.Paused)
}
