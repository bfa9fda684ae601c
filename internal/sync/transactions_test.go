package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedratio-labs/pool-indexer/internal/models"
	"github.com/fixedratio-labs/pool-indexer/internal/rpc"
	"github.com/fixedratio-labs/pool-indexer/internal/store"
)

// memTxStore is an in-memory TransactionStore.
type memTxStore struct {
	mu   sync.Mutex
	rows []*models.PoolTransaction
}

func (m *memTxStore) Insert(ctx context.Context, tx *models.PoolTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memTxStore) GetByPool(ctx context.Context, poolAddress string, limit, offset int) ([]*models.PoolTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PoolTransaction
	for _, tx := range m.rows {
		if tx.PoolAddress == poolAddress {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTxStore) CountByPool(ctx context.Context, poolAddress string) (uint64, error) {
	rows, _ := m.GetByPool(ctx, poolAddress, 0, 0)
	return uint64(len(rows)), nil
}

func (m *memTxStore) LatestSignature(ctx context.Context, poolAddress string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].PoolAddress == poolAddress {
			return m.rows[i].Signature, nil
		}
	}
	return "", store.ErrNotFound
}

func (m *memTxStore) Ping(ctx context.Context) error { return nil }
func (m *memTxStore) Close() error                   { return nil }

// failingTxStore simulates a history store whose cut-off lookup fails,
// as distinct from one with no rows yet.
type failingTxStore struct {
	memTxStore
	latestErr error
}

func (f *failingTxStore) LatestSignature(ctx context.Context, poolAddress string) (string, error) {
	return "", f.latestErr
}

func swapTxResult(mintA, mintB string, slot uint64) *rpc.TransactionResult {
	return &rpc.TransactionResult{
		Slot:      slot,
		BlockTime: 1700000000,
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{
				"Program invoke [1]",
				"Program log: Instruction: Swap",
			},
			PreTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: rpc.TokenAmount{Amount: "1000"}},
				{AccountIndex: 2, Mint: mintB, UITokenAmount: rpc.TokenAmount{Amount: "5000"}},
			},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mintA, UITokenAmount: rpc.TokenAmount{Amount: "1100"}},
				{AccountIndex: 2, Mint: mintB, UITokenAmount: rpc.TokenAmount{Amount: "4000"}},
			},
		},
	}
}

func TestSyncTransactionsAppendsNewEvents(t *testing.T) {
	reader := newFakeReader()
	addr := "TxPool1"
	acc := testAccount(5, 1)
	reader.pools[addr] = acc
	mintA := acc.TokenAMint.String()
	mintB := acc.TokenBMint.String()

	reader.sigs[addr] = []rpc.SignatureInfo{
		{Signature: "sig2", Slot: 20},
		{Signature: "sig1", Slot: 10},
	}
	reader.txs["sig1"] = swapTxResult(mintA, mintB, 10)
	reader.txs["sig2"] = swapTxResult(mintA, mintB, 20)

	pools := newMemPoolRepo()
	system := newMemSystemRepo()
	txs := &memTxStore{}
	s := New(reader, pools, system, txs, Config{
		Network:            "testnet",
		MaxConcurrentPools: 2,
		MaxTxPerPool:       10,
	}, nil)
	ctx := context.Background()

	_, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)

	n, err := s.SyncTransactions(ctx, addr, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := txs.GetByPool(ctx, addr, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Oldest inserted first.
	assert.Equal(t, "sig1", rows[0].Signature)
	assert.Equal(t, models.TxTypeSwap, rows[0].Type)
	assert.Equal(t, uint64(100), rows[0].AmountA)
	assert.Equal(t, uint64(1000), rows[0].AmountB)
	assert.True(t, rows[0].Success)

	// Successful swap amounts roll into the pool's cumulative volume.
	got, err := pools.GetByAddress(ctx, "testnet", addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), got.TokenAVolume)
	assert.Equal(t, uint64(2000), got.TokenBVolume)

	// A second pass with no new signatures inserts nothing and leaves
	// the volume counters alone.
	n, err = s.SyncTransactions(ctx, addr, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err = pools.GetByAddress(ctx, "testnet", addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), got.TokenAVolume)
}

func TestSyncTransactionsSkipsUnrelatedPrograms(t *testing.T) {
	reader := newFakeReader()
	addr := "TxPool2"
	acc := testAccount(5, 1)
	reader.pools[addr] = acc

	reader.sigs[addr] = []rpc.SignatureInfo{{Signature: "other", Slot: 5}}
	reader.txs["other"] = &rpc.TransactionResult{
		Slot:      5,
		BlockTime: 1700000000,
		Meta: &rpc.TransactionMeta{
			LogMessages: []string{"Program log: Instruction: Transfer"},
		},
	}

	pools := newMemPoolRepo()
	txs := &memTxStore{}
	s := New(reader, pools, newMemSystemRepo(), txs, Config{Network: "testnet"}, nil)
	ctx := context.Background()

	_, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)

	n, err := s.SyncTransactions(ctx, addr, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSyncTransactionsFailsWhenCutoffLookupFails(t *testing.T) {
	reader := newFakeReader()
	addr := "TxPool3"
	acc := testAccount(5, 1)
	reader.pools[addr] = acc
	mintA := acc.TokenAMint.String()
	mintB := acc.TokenBMint.String()

	reader.sigs[addr] = []rpc.SignatureInfo{{Signature: "sig1", Slot: 10}}
	reader.txs["sig1"] = swapTxResult(mintA, mintB, 10)

	pools := newMemPoolRepo()
	txs := &failingTxStore{latestErr: fmt.Errorf("connection refused")}
	s := New(reader, pools, newMemSystemRepo(), txs, Config{Network: "testnet"}, nil)
	ctx := context.Background()

	_, err := s.SyncOne(ctx, addr)
	require.NoError(t, err)

	// A transient store failure must abort the pass: falling back to
	// "no history yet" would re-insert rows already stored.
	n, err := s.SyncTransactions(ctx, addr, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latest signature")
	assert.Equal(t, 0, n)
	assert.Empty(t, txs.rows)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		log  string
		want models.TransactionType
		ok   bool
	}{
		{"Program log: Instruction: Swap", models.TxTypeSwap, true},
		{"Program log: Instruction: Deposit", models.TxTypeAddLiquidity, true},
		{"Program log: Instruction: Withdraw", models.TxTypeRemoveLiquidity, true},
		{"Program log: Instruction: InitializePool", models.TxTypePoolCreation, true},
		{"Program log: Instruction: Transfer", "", false},
	}

	for _, tt := range tests {
		got, ok := classify([]string{tt.log})
		assert.Equal(t, tt.ok, ok, tt.log)
		assert.Equal(t, tt.want, got, tt.log)
	}
}
