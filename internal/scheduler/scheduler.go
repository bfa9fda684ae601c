// Package scheduler drives repeatable reconciliation cycles on a timer.
// A single background goroutine owns the loop; a failed cycle is recorded
// and retried after a delay, never allowed to kill the loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

// Synchronizer is the reconciliation engine a scheduler drives once per
// cycle.
type Synchronizer interface {
	SyncAll(ctx context.Context, network string) (int, error)
	SyncSystemState(ctx context.Context, address string) (*models.SystemState, error)
	SyncAllTransactions(ctx context.Context, network string, limit int) (int, error)
	DiscoverNewPools(ctx context.Context, fromSlot, toSlot uint64) (int, error)
	LastSyncedSlot(ctx context.Context, network string) (uint64, error)
}

// Scheduler runs the polling loop. The zero value is not usable; use New.
type Scheduler struct {
	syncer Synchronizer
	logger *logrus.Logger

	mu      sync.Mutex
	running bool
	cfg     Config
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}

	// Statistics are written only by the loop goroutine and copied out
	// under the same lock, so readers always see a consistent snapshot.
	statsMu      sync.RWMutex
	stats        Statistics
	totalRuntime time.Duration

	subMu sync.Mutex
	subs  []chan Event
}

func New(syncer Synchronizer, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{syncer: syncer, logger: logger}
}

// Start records the configuration and launches the cycle loop. Calling
// Start while running is a logged no-op.
func (s *Scheduler) Start(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("scheduler already running, start ignored")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cfg = cfg.withDefaults()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.trigger = make(chan struct{}, 1)
	s.running = true

	s.statsMu.Lock()
	s.stats.Running = true
	s.statsMu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"poll_interval": s.cfg.PollInterval,
		"network":       s.cfg.Network,
		"system_sync":   s.cfg.EnableSystemSync,
		"tx_sync":       s.cfg.EnableTxSync,
		"discovery":     s.cfg.EnableDiscovery,
	}).Info("scheduler starting")

	go s.run(ctx)
	return nil
}

// Stop signals cancellation and waits for the loop to exit. Calling Stop
// while stopped is a logged no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Debug("scheduler not running, stop ignored")
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.statsMu.Lock()
	s.stats.Running = false
	s.statsMu.Unlock()

	s.logger.Info("scheduler stopped")
}

// TriggerNow requests one immediate cycle, independent of the timer.
// Rejected while stopped.
func (s *Scheduler) TriggerNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}

	select {
	case s.trigger <- struct{}{}:
	default: // a trigger is already pending
	}
	return nil
}

// IsRunning reports the loop state.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStatistics returns a consistent snapshot without blocking the loop.
func (s *Scheduler) GetStatistics() Statistics {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// Subscribe registers a cycle-event channel. Publishing never blocks the
// loop: events to a full subscriber channel are dropped.
func (s *Scheduler) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Scheduler) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropping cycle event for slow subscriber")
		}
	}
}

type cycleResult struct {
	pools      int
	txs        int
	discovered int
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	var lastDiscovery, lastSystemSync time.Time

	for {
		start := time.Now()
		res, err := s.safeCycle(ctx, &lastDiscovery, &lastSystemSync)
		elapsed := time.Since(start)

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			s.recordFailure(err, elapsed)
			s.publish(Event{
				Kind:     EventCycleError,
				Error:    err.Error(),
				Duration: elapsed,
				At:       time.Now().UTC(),
			})
			s.logger.WithError(err).WithField("retry_delay", s.cfg.RetryDelay).Error("cycle failed, will retry")

			select {
			case <-ctx.Done():
				return
			case <-s.trigger:
				// manual trigger cuts the retry wait short
			case <-time.After(s.retryDelay()):
			}
			continue
		}

		s.recordSuccess(res, elapsed)
		s.publish(Event{
			Kind:               EventCycleCompleted,
			PoolsSynced:        res.pools,
			TransactionsSynced: res.txs,
			PoolsDiscovered:    res.discovered,
			Duration:           elapsed,
			At:                 time.Now().UTC(),
		})

		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			// manual trigger, run the next cycle immediately
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// safeCycle executes one reconciliation cycle, converting panics into
// cycle errors so the loop survives them.
func (s *Scheduler) safeCycle(ctx context.Context, lastDiscovery, lastSystemSync *time.Time) (res cycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	res, err = s.cycle(ctx, lastDiscovery, lastSystemSync)
	return res, err
}

func (s *Scheduler) cycle(ctx context.Context, lastDiscovery, lastSystemSync *time.Time) (cycleResult, error) {
	var res cycleResult

	pools, err := s.withTimeout(ctx, func(opCtx context.Context) (int, error) {
		return s.syncer.SyncAll(opCtx, s.cfg.Network)
	})
	if err != nil {
		return res, fmt.Errorf("sync pools: %w", err)
	}
	res.pools = pools

	if s.cfg.EnableSystemSync && s.cfg.SystemStateAddress != "" && time.Since(*lastSystemSync) >= s.cfg.SystemStateInterval {
		_, err := s.withTimeout(ctx, func(opCtx context.Context) (int, error) {
			_, err := s.syncer.SyncSystemState(opCtx, s.cfg.SystemStateAddress)
			return 0, err
		})
		if err != nil {
			return res, fmt.Errorf("sync system state: %w", err)
		}
		*lastSystemSync = time.Now()
	}

	if s.cfg.EnableTxSync {
		txs, err := s.withTimeout(ctx, func(opCtx context.Context) (int, error) {
			return s.syncer.SyncAllTransactions(opCtx, s.cfg.Network, s.cfg.MaxTxPerPool)
		})
		if err != nil {
			return res, fmt.Errorf("sync transactions: %w", err)
		}
		res.txs = txs
	}

	if s.cfg.EnableDiscovery && time.Since(*lastDiscovery) >= s.cfg.DiscoveryInterval {
		discovered, err := s.withTimeout(ctx, func(opCtx context.Context) (int, error) {
			from, err := s.syncer.LastSyncedSlot(opCtx, s.cfg.Network)
			if err != nil {
				return 0, err
			}
			return s.syncer.DiscoverNewPools(opCtx, from, 0)
		})
		if err != nil {
			return res, fmt.Errorf("discover pools: %w", err)
		}
		res.discovered = discovered
		*lastDiscovery = time.Now()
	}

	return res, nil
}

// withTimeout bounds a single operation so a hung remote call cannot
// stall the cycle indefinitely.
func (s *Scheduler) withTimeout(ctx context.Context, op func(context.Context) (int, error)) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	return op(opCtx)
}

func (s *Scheduler) retryDelay() time.Duration {
	if s.cfg.RetryOnFailure {
		return s.cfg.RetryDelay
	}
	return s.cfg.PollInterval
}

func (s *Scheduler) recordSuccess(res cycleResult, elapsed time.Duration) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.totalRuntime += elapsed
	s.stats.TotalPollCycles++
	s.stats.SuccessfulCycles++
	s.stats.ConsecutiveFailures = 0
	s.stats.LastSuccessfulPoll = time.Now().UTC()
	s.stats.PoolsSynced += uint64(res.pools)
	s.stats.TransactionsSynced += uint64(res.txs)
	s.stats.NewPoolsDiscovered += uint64(res.discovered)
	s.stats.AverageCycleTime = s.totalRuntime / time.Duration(s.stats.TotalPollCycles)
}

func (s *Scheduler) recordFailure(err error, elapsed time.Duration) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.totalRuntime += elapsed
	s.stats.TotalPollCycles++
	s.stats.FailedCycles++
	s.stats.ConsecutiveFailures++
	s.stats.LastFailedPoll = time.Now().UTC()
	s.stats.LastError = err.Error()
	s.stats.AverageCycleTime = s.totalRuntime / time.Duration(s.stats.TotalPollCycles)
}
