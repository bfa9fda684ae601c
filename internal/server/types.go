package server

import (
	"github.com/fixedratio-labs/pool-indexer/internal/display"
	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

// Response is the envelope every endpoint returns. Exactly one of Data
// and Error is set.
type Response struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the page a list response covers.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int   `json:"totalPages"`
}

// PoolView is a stored pool together with its derived display
// orientation. Display is nil when the stored ratio cannot be rendered.
type PoolView struct {
	*models.Pool
	Display *display.TokenDisplayInfo `json:"display,omitempty"`
}

// PoolStatistics aggregates the stored pool set.
type PoolStatistics struct {
	TotalPools      int    `json:"total_pools"`
	ActivePools     int    `json:"active_pools"`
	SwapsPaused     int    `json:"swaps_paused"`
	LiquidityPaused int    `json:"liquidity_paused"`
	OneToManyPools  int    `json:"one_to_many_pools"`
	TotalVolumeA    uint64 `json:"total_volume_a"`
	TotalVolumeB    uint64 `json:"total_volume_b"`
}

// HealthReport is the body of the health endpoint. Components map to
// "ok" or an error string.
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
	Polling    bool              `json:"polling"`
	Uptime     string            `json:"uptime"`
}

// ConfigView is the operator-visible subset of runtime configuration.
// Credentials are never included.
type ConfigView struct {
	Network             string `json:"network"`
	PollInterval        string `json:"poll_interval"`
	DiscoveryInterval   string `json:"discovery_interval"`
	SystemStateInterval string `json:"system_state_interval"`
	OperationTimeout    string `json:"operation_timeout"`
	MaxTxPerPool        int    `json:"max_tx_per_pool"`
	MaxConcurrentPools  int    `json:"max_concurrent_pools"`
	EnableDiscovery     bool   `json:"enable_discovery"`
	EnableTxSync        bool   `json:"enable_tx_sync"`
	EnableSystemSync    bool   `json:"enable_system_sync"`
	RetryOnFailure      bool   `json:"retry_on_failure"`
}

// Metrics is the body of the metrics endpoint.
type Metrics struct {
	UptimeSeconds      int64  `json:"uptime_seconds"`
	Goroutines         int    `json:"goroutines"`
	HeapAllocBytes     uint64 `json:"heap_alloc_bytes"`
	PoolCount          int64  `json:"pool_count"`
	TotalPollCycles    uint64 `json:"total_poll_cycles"`
	FailedCycles       uint64 `json:"failed_cycles"`
	PoolsSynced        uint64 `json:"pools_synced"`
	TransactionsSynced uint64 `json:"transactions_synced"`
}
