package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fixedratio-labs/pool-indexer/internal/constants"
	"github.com/fixedratio-labs/pool-indexer/internal/ledger"
	"github.com/fixedratio-labs/pool-indexer/internal/models"
	"github.com/fixedratio-labs/pool-indexer/internal/rpc"
	"github.com/fixedratio-labs/pool-indexer/internal/store"
)

// SyncTransactions appends recent on-chain events for a pool to the
// history store, stopping at the newest signature already recorded.
// Per-signature failures are logged and skipped. Returns the number of
// rows inserted.
func (s *Syncer) SyncTransactions(ctx context.Context, address string, limit int) (int, error) {
	if s.txs == nil {
		return 0, fmt.Errorf("transaction store not configured")
	}
	if limit < 1 || limit > s.cfg.MaxTxPerPool {
		limit = s.cfg.MaxTxPerPool
	}

	pool, err := s.pools.GetByAddress(ctx, s.cfg.Network, address)
	if err != nil {
		return 0, fmt.Errorf("lookup pool %s: %w", address, err)
	}

	sigs, err := s.reader.GetRecentTransactionSignatures(ctx, address, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch signatures for %s: %w", address, err)
	}
	if len(sigs) == 0 {
		return 0, nil
	}

	lastSeen, err := s.txs.LatestSignature(ctx, address)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("lookup latest signature: %w", err)
	}

	// Signatures arrive newest first; cut at the last one we stored.
	fresh := sigs
	for i, sig := range sigs {
		if sig.Signature == lastSeen {
			fresh = sigs[:i]
			break
		}
	}

	inserted := 0
	var volumeA, volumeB uint64
	for i := len(fresh) - 1; i >= 0; i-- { // oldest first
		sig := fresh[i]

		if inserted > 0 {
			select {
			case <-ctx.Done():
				return inserted, ctx.Err()
			case <-time.After(constants.DelayBetweenTxFetch):
			}
		}

		tx, err := s.fetchTransaction(ctx, pool, sig)
		if err != nil {
			s.logger.WithError(err).WithField("signature", shortSig(sig.Signature)).Warn("skipping transaction")
			continue
		}
		if tx == nil {
			continue
		}

		if err := s.txs.Insert(ctx, tx); err != nil {
			s.logger.WithError(err).WithField("signature", shortSig(sig.Signature)).Warn("failed to store transaction")
			continue
		}
		inserted++

		if tx.Type == models.TxTypeSwap && tx.Success {
			volumeA += tx.AmountA
			volumeB += tx.AmountB
		}
	}

	// Cumulative volume lives only in the local row, so it is rolled
	// forward here rather than read from the account.
	if volumeA > 0 || volumeB > 0 {
		pool.TokenAVolume += volumeA
		pool.TokenBVolume += volumeB
		if err := s.pools.Update(ctx, pool); err != nil {
			s.logger.WithError(err).WithField("address", address).Warn("failed to update pool volumes")
		}
	}

	if inserted > 0 {
		s.logger.WithFields(logrus.Fields{
			"address":  address,
			"inserted": inserted,
		}).Info("transaction history updated")
	}
	return inserted, nil
}

// SyncAllTransactions runs SyncTransactions for every known pool on the
// network. Per-pool failures are logged and do not abort the pass.
// Returns the total number of rows inserted.
func (s *Syncer) SyncAllTransactions(ctx context.Context, network string, limit int) (int, error) {
	if s.txs == nil {
		return 0, nil
	}

	addresses, err := s.pools.GetAllAddressesForNetwork(ctx, network)
	if err != nil {
		return 0, fmt.Errorf("list pool addresses: %w", err)
	}

	total := 0
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.SyncTransactions(ctx, address, limit)
		if err != nil {
			s.logger.WithError(err).WithField("address", address).Warn("transaction sync failed")
			continue
		}
		total += n
	}
	return total, nil
}

func (s *Syncer) fetchTransaction(ctx context.Context, pool *models.Pool, sig rpc.SignatureInfo) (*models.PoolTransaction, error) {
	detail, err := s.reader.GetTransactionDetails(ctx, sig.Signature)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if detail.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no metadata", shortSig(sig.Signature))
	}

	txType, ok := classify(detail.Meta.LogMessages)
	if !ok {
		return nil, nil // unrelated program invocation
	}

	amountA := mintDelta(detail.Meta, pool.TokenAMint)
	amountB := mintDelta(detail.Meta, pool.TokenBMint)

	return &models.PoolTransaction{
		Signature:   sig.Signature,
		PoolAddress: pool.Address,
		Type:        txType,
		AmountA:     amountA,
		AmountB:     amountB,
		Success:     detail.Meta.Err == nil,
		Slot:        detail.Slot,
		Timestamp:   time.Unix(detail.BlockTime, 0).UTC(),
	}, nil
}

// classify maps program log lines to an event type. The program logs its
// instruction name on entry.
func classify(logs []string) (models.TransactionType, bool) {
	for _, line := range logs {
		switch {
		case strings.Contains(line, "Instruction: Swap"):
			return models.TxTypeSwap, true
		case strings.Contains(line, "Instruction: Deposit"):
			return models.TxTypeAddLiquidity, true
		case strings.Contains(line, "Instruction: Withdraw"):
			return models.TxTypeRemoveLiquidity, true
		case strings.Contains(line, "Instruction: InitializePool"):
			return models.TxTypePoolCreation, true
		}
	}
	return "", false
}

// mintDelta computes the absolute raw balance change of one mint across
// the transaction's token accounts.
func mintDelta(meta *rpc.TransactionMeta, mint string) uint64 {
	pre := make(map[int]int64)
	for _, b := range meta.PreTokenBalances {
		if b.Mint == mint {
			pre[b.AccountIndex] = parseRawAmount(b.UITokenAmount.Amount)
		}
	}

	var delta int64
	seen := make(map[int]bool)
	for _, b := range meta.PostTokenBalances {
		if b.Mint != mint {
			continue
		}
		delta += parseRawAmount(b.UITokenAmount.Amount) - pre[b.AccountIndex]
		seen[b.AccountIndex] = true
	}
	// Accounts present pre-transaction but closed by it.
	for idx, amount := range pre {
		if !seen[idx] {
			delta -= amount
		}
	}

	if delta < 0 {
		delta = -delta
	}
	return uint64(delta)
}

func parseRawAmount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func shortSig(sig string) string {
	if len(sig) > 8 {
		return sig[:8]
	}
	return sig
}
