package scheduler

import (
	"time"

	"github.com/fixedratio-labs/pool-indexer/internal/constants"
)

// Config holds the options one polling run recognizes. Start records it;
// changing options requires a stop/start.
type Config struct {
	PollInterval        time.Duration
	DiscoveryInterval   time.Duration
	SystemStateInterval time.Duration
	MaxTxPerPool        int
	MaxConcurrentPools  int
	EnableDiscovery     bool
	EnableTxSync        bool
	EnableSystemSync    bool
	Network             string
	SystemStateAddress  string
	OperationTimeout    time.Duration
	RetryOnFailure      bool
	MaxRetryAttempts    int
	RetryDelay          time.Duration
}

// withDefaults fills unset durations so a zero-value config cannot spin.
func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = constants.DefaultPollInterval
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = constants.DefaultDiscoveryInterval
	}
	if c.SystemStateInterval <= 0 {
		c.SystemStateInterval = constants.DefaultSystemStateInterval
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = constants.DefaultOperationTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = constants.DefaultRetryDelay
	}
	if c.MaxTxPerPool < 1 {
		c.MaxTxPerPool = constants.DefaultMaxTxPerPool
	}
	if c.Network == "" {
		c.Network = constants.NetworkMainnet
	}
	return c
}

// Statistics is a point-in-time snapshot of the polling loop. Counters
// are cumulative since Start; ConsecutiveFailures resets on any success.
type Statistics struct {
	Running             bool          `json:"running"`
	TotalPollCycles     uint64        `json:"total_poll_cycles"`
	SuccessfulCycles    uint64        `json:"successful_cycles"`
	FailedCycles        uint64        `json:"failed_cycles"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastSuccessfulPoll  time.Time     `json:"last_successful_poll"`
	LastFailedPoll      time.Time     `json:"last_failed_poll"`
	LastError           string        `json:"last_error"`
	PoolsSynced         uint64        `json:"pools_synced"`
	TransactionsSynced  uint64        `json:"transactions_synced"`
	NewPoolsDiscovered  uint64        `json:"new_pools_discovered"`
	AverageCycleTime    time.Duration `json:"average_cycle_time"`
}

// EventKind distinguishes cycle outcomes published to subscribers.
type EventKind string

const (
	EventCycleCompleted EventKind = "cycle_completed"
	EventCycleError     EventKind = "cycle_error"
)

// Event is published after every cycle. A completed event may still carry
// per-item failures; those are reported inside the cycle's own result and
// do not make the cycle an error.
type Event struct {
	Kind               EventKind     `json:"kind"`
	PoolsSynced        int           `json:"pools_synced"`
	TransactionsSynced int           `json:"transactions_synced"`
	PoolsDiscovered    int           `json:"pools_discovered"`
	Error              string        `json:"error,omitempty"`
	Duration           time.Duration `json:"duration"`
	At                 time.Time     `json:"at"`
}
