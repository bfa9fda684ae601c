// Package sync reconciles the local pool and system-state replicas with
// current ledger account state. Every operation follows a strict
// create-or-update rule, and batch operations isolate per-item failures so
// one bad address can never abort a cycle.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fixedratio-labs/pool-indexer/internal/constants"
	"github.com/fixedratio-labs/pool-indexer/internal/ledger"
	"github.com/fixedratio-labs/pool-indexer/internal/models"
	"github.com/fixedratio-labs/pool-indexer/internal/rpc"
	"github.com/fixedratio-labs/pool-indexer/internal/store"
)

// LedgerReader is the read-only view of remote account state the
// synchronizer consumes. All calls may fail transiently and are treated
// as retryable by callers.
type LedgerReader interface {
	TestConnection(ctx context.Context) bool
	CurrentSlot(ctx context.Context) (uint64, error)
	GetPoolState(ctx context.Context, address string) (*ledger.PoolAccount, error)
	GetSystemState(ctx context.Context, address string) (*ledger.SystemAccount, error)
	GetRecentTransactionSignatures(ctx context.Context, address string, limit int) ([]rpc.SignatureInfo, error)
	GetTransactionDetails(ctx context.Context, signature string) (*rpc.TransactionResult, error)
}

// Config holds synchronizer settings.
type Config struct {
	Network            string
	SystemStateAddress string
	// SystemAuthority is the configured upgrade authority for the system
	// state account; the account itself does not carry it.
	SystemAuthority    string
	MaxConcurrentPools int
	MaxTxPerPool       int
}

// Syncer makes local rows agree with remote account state.
type Syncer struct {
	reader LedgerReader
	pools  store.PoolRepository
	system store.SystemStateRepository
	txs    store.TransactionStore // optional; nil disables transaction sync
	cfg    Config
	logger *logrus.Logger
}

func New(reader LedgerReader, pools store.PoolRepository, system store.SystemStateRepository, txs store.TransactionStore, cfg Config, logger *logrus.Logger) *Syncer {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxConcurrentPools < 1 {
		cfg.MaxConcurrentPools = constants.DefaultMaxConcurrentPools
	}
	if cfg.MaxTxPerPool < 1 {
		cfg.MaxTxPerPool = constants.DefaultMaxTxPerPool
	}
	return &Syncer{
		reader: reader,
		pools:  pools,
		system: system,
		txs:    txs,
		cfg:    cfg,
		logger: logger,
	}
}

// SyncOne reconciles a single pool. A pool that does not exist on the
// ledger is a normal outcome and returns (nil, nil). An existing local row
// has its mutable fields overwritten in place; an unseen address creates a
// new row seeded with identity fields from the account. Either the row is
// fully written or it is left untouched.
func (s *Syncer) SyncOne(ctx context.Context, address string) (*models.Pool, error) {
	acc, err := s.reader.GetPoolState(ctx, address)
	if errors.Is(err, ledger.ErrNotFound) {
		s.logger.WithField("address", address).Debug("pool account not found on ledger")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pool %s: %w", address, err)
	}

	now := time.Now().UTC()

	existing, err := s.pools.GetByAddress(ctx, s.cfg.Network, address)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup pool %s: %w", address, err)
	}

	if existing == nil {
		pool := newPoolFromAccount(s.cfg.Network, address, acc, now)
		if err := s.pools.Add(ctx, pool); err != nil {
			return nil, fmt.Errorf("create pool %s: %w", address, err)
		}
		s.logger.WithFields(logrus.Fields{
			"address": address,
			"pair":    pool.PairLabel(),
			"ratio":   fmt.Sprintf("%d/%d", pool.RatioANumerator, pool.RatioBDenominator),
		}).Info("created pool")
		return pool, nil
	}

	// The stored ratio is immutable; a mismatch means the account was
	// reused for a different pool and the local row is stale data.
	if existing.RatioANumerator != acc.RatioANumerator || existing.RatioBDenominator != acc.RatioBDenominator {
		return nil, fmt.Errorf("pool %s ratio changed from %d/%d to %d/%d: pool identity violation",
			address, existing.RatioANumerator, existing.RatioBDenominator,
			acc.RatioANumerator, acc.RatioBDenominator)
	}

	applyAccount(existing, acc, now)
	if err := s.pools.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update pool %s: %w", address, err)
	}
	return existing, nil
}

// SyncMany fans SyncOne out over the addresses with bounded concurrency
// and returns only the successes. Per-address failures are logged and
// swallowed; only context cancellation aborts the batch.
func (s *Syncer) SyncMany(ctx context.Context, addresses []string) ([]*models.Pool, error) {
	var (
		mu     sync.Mutex
		synced []*models.Pool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentPools)

	for _, address := range addresses {
		address := address
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			pool, err := s.SyncOne(gctx, address)
			if err != nil {
				s.logger.WithError(err).WithField("address", address).Warn("pool sync failed")
				return nil // isolate the failure, keep the batch going
			}
			if pool == nil {
				return nil
			}

			mu.Lock()
			synced = append(synced, pool)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return synced, err
	}
	return synced, nil
}

// SyncAll reconciles every locally-known pool for the network and returns
// the number synchronized. It does not discover pools that have never been
// seen locally; that is DiscoverNewPools' job.
func (s *Syncer) SyncAll(ctx context.Context, network string) (int, error) {
	addresses, err := s.pools.GetAllAddressesForNetwork(ctx, network)
	if err != nil {
		return 0, fmt.Errorf("list pool addresses: %w", err)
	}
	if len(addresses) == 0 {
		s.logger.WithField("network", network).Debug("no known pools to sync")
		return 0, nil
	}

	synced, err := s.SyncMany(ctx, addresses)
	if err != nil {
		return len(synced), err
	}

	s.logger.WithFields(logrus.Fields{
		"network": network,
		"known":   len(addresses),
		"synced":  len(synced),
	}).Info("pool sync pass complete")
	return len(synced), nil
}

// DiscoverNewPools is intended to scan ledger history between two slots
// for pool-creation events and register unseen pools. The scan strategy
// (watermark-based incremental walk over program signatures) is not
// implemented yet; until it is, discovery reports zero new pools.
// TODO: implement the watermark scan on top of GetRecentTransactionSignatures.
func (s *Syncer) DiscoverNewPools(ctx context.Context, fromSlot, toSlot uint64) (int, error) {
	s.logger.WithFields(logrus.Fields{
		"from_slot": fromSlot,
		"to_slot":   toSlot,
	}).Debug("pool discovery not implemented, skipping")
	return 0, nil
}

// SyncSystemState reconciles the single system state row for the current
// network, creating it lazily on first sight, and refreshes the slot
// watermark used by incremental discovery.
func (s *Syncer) SyncSystemState(ctx context.Context, address string) (*models.SystemState, error) {
	acc, err := s.reader.GetSystemState(ctx, address)
	if errors.Is(err, ledger.ErrNotFound) {
		s.logger.WithField("address", address).Debug("system state account not found on ledger")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read system state: %w", err)
	}

	now := time.Now().UTC()

	state, err := s.system.Get(ctx, s.cfg.Network)
	if errors.Is(err, store.ErrNotFound) {
		state = &models.SystemState{Network: s.cfg.Network, Address: address}
	} else if err != nil {
		return nil, fmt.Errorf("lookup system state: %w", err)
	}

	state.Address = address
	state.Authority = s.cfg.SystemAuthority
	state.Paused = acc.Paused
	state.PauseReasonCode = acc.PauseReasonCode
	state.PauseReason = models.PauseReasonText(acc.PauseReasonCode)
	if acc.PauseTimestamp > 0 {
		state.PausedAt = time.Unix(acc.PauseTimestamp, 0).UTC()
	} else {
		state.PausedAt = time.Time{}
	}
	state.LastSyncedAt = now

	if slot, err := s.reader.CurrentSlot(ctx); err == nil {
		state.LastSyncedSlot = slot
	} else {
		s.logger.WithError(err).Debug("could not refresh slot watermark")
	}

	if err := s.system.Upsert(ctx, state); err != nil {
		return nil, fmt.Errorf("store system state: %w", err)
	}
	return state, nil
}

// LastSyncedSlot returns the persisted watermark for a network, or zero
// when the network has never been synchronized.
func (s *Syncer) LastSyncedSlot(ctx context.Context, network string) (uint64, error) {
	state, err := s.system.Get(ctx, network)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup system state: %w", err)
	}
	return state.LastSyncedSlot, nil
}

// UpdateLastSyncedSlot persists the watermark so a future incremental
// discovery scan can resume without rescanning from genesis.
func (s *Syncer) UpdateLastSyncedSlot(ctx context.Context, network string, slot uint64) error {
	state, err := s.system.Get(ctx, network)
	if errors.Is(err, store.ErrNotFound) {
		state = &models.SystemState{Network: network}
	} else if err != nil {
		return fmt.Errorf("lookup system state: %w", err)
	}

	state.LastSyncedSlot = slot
	state.LastSyncedAt = time.Now().UTC()
	return s.system.Upsert(ctx, state)
}

func newPoolFromAccount(network, address string, acc *ledger.PoolAccount, now time.Time) *models.Pool {
	mintA := acc.TokenAMint.String()
	mintB := acc.TokenBMint.String()

	pool := &models.Pool{
		ID:      store.PoolID(network, address),
		Address: address,
		Network: network,

		TokenAMint:   mintA,
		TokenBMint:   mintB,
		TokenASymbol: constants.SymbolForMint(mintA),
		TokenBSymbol: constants.SymbolForMint(mintB),
		// Names stay placeholders until a separate metadata resolution
		// pass runs.
		TokenAName: constants.SymbolForMint(mintA),
		TokenBName: constants.SymbolForMint(mintB),

		RatioANumerator:   acc.RatioANumerator,
		RatioBDenominator: acc.RatioBDenominator,

		Active:    true,
		CreatedAt: now,
	}
	applyAccount(pool, acc, now)
	return pool
}

// applyAccount overwrites the mutable fields of a local row from the
// remote account. Identity fields are never touched here.
func applyAccount(pool *models.Pool, acc *ledger.PoolAccount, now time.Time) {
	pool.Owner = acc.Owner.String()
	pool.TokenAVault = acc.TokenAVault.String()
	pool.TokenBVault = acc.TokenBVault.String()
	pool.LPTokenAMint = acc.LPTokenAMint.String()
	pool.LPTokenBMint = acc.LPTokenBMint.String()

	pool.TokenALiquidity = acc.TotalTokenALiquidity
	pool.TokenBLiquidity = acc.TotalTokenBLiquidity

	pool.CollectedFeesTokenA = acc.CollectedFeesTokenA
	pool.CollectedFeesTokenB = acc.CollectedFeesTokenB
	pool.CollectedSOLFees = acc.TotalSOLFeesCollected

	pool.OneToManyRatio = acc.OneToManyRatio()
	pool.LiquidityPaused = acc.LiquidityPaused()
	pool.SwapsPaused = acc.SwapsPaused()

	pool.LastSyncedAt = now
}
