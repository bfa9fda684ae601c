package server

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fixedratio-labs/pool-indexer/internal/store"
)

// SystemHealth reports component reachability. Any failing component
// makes the endpoint return 503 so load balancers can act on it.
func (h *Handlers) SystemHealth(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	report := HealthReport{
		Components: make(map[string]string),
		Polling:    h.Poller.IsRunning(),
		Uptime:     time.Since(h.StartedAt).Round(time.Second).String(),
	}

	healthy := true
	if err := h.Pools.Ping(ctx); err != nil {
		report.Components["pool_store"] = err.Error()
		healthy = false
	} else {
		report.Components["pool_store"] = "ok"
	}

	if h.Txs != nil {
		if err := h.Txs.Ping(ctx); err != nil {
			report.Components["transaction_store"] = err.Error()
			healthy = false
		} else {
			report.Components["transaction_store"] = "ok"
		}
	}

	if h.Ledger.TestConnection(ctx) {
		report.Components["ledger"] = "ok"
	} else {
		report.Components["ledger"] = "unreachable"
		healthy = false
	}

	if report.Polling {
		report.Components["scheduler"] = "ok"
	} else {
		report.Components["scheduler"] = "stopped"
		healthy = false
	}

	report.Healthy = healthy
	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: report, Error: "unhealthy"})
	}
	return h.ok(c, report)
}

// GetSystemState returns the stored program-wide pause state.
func (h *Handlers) GetSystemState(c echo.Context) error {
	network := c.QueryParam("network")
	if network == "" {
		network = h.Cfg.Network
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	state, err := h.System.Get(ctx, network)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.fail(c, http.StatusNotFound, "system state not synced yet")
		}
		return h.fail(c, http.StatusInternalServerError, "failed to get system state")
	}
	return h.ok(c, state)
}

// GetPollingStatistics returns a snapshot of the scheduler counters.
func (h *Handlers) GetPollingStatistics(c echo.Context) error {
	return h.ok(c, h.Poller.GetStatistics())
}

// TriggerPolling requests one immediate poll cycle.
func (h *Handlers) TriggerPolling(c echo.Context) error {
	if err := h.Poller.TriggerNow(); err != nil {
		return h.fail(c, http.StatusBadRequest, err.Error())
	}
	return h.ok(c, map[string]string{"status": "triggered"})
}

// GetConfig returns the operator-visible runtime configuration.
func (h *Handlers) GetConfig(c echo.Context) error {
	cfg := h.Cfg
	return h.ok(c, ConfigView{
		Network:             cfg.Network,
		PollInterval:        cfg.PollInterval.String(),
		DiscoveryInterval:   cfg.DiscoveryInterval.String(),
		SystemStateInterval: cfg.SystemStateInterval.String(),
		OperationTimeout:    cfg.OperationTimeout.String(),
		MaxTxPerPool:        cfg.MaxTxPerPool,
		MaxConcurrentPools:  cfg.MaxConcurrentPools,
		EnableDiscovery:     cfg.EnableDiscovery,
		EnableTxSync:        cfg.EnableTxSync,
		EnableSystemSync:    cfg.EnableSystemSync,
		RetryOnFailure:      cfg.RetryOnFailure,
	})
}

// GetMetrics returns process and polling counters.
func (h *Handlers) GetMetrics(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	poolCount, err := h.Pools.Count(ctx)
	if err != nil {
		h.Logger.WithError(err).Warn("pool count unavailable for metrics")
		poolCount = -1
	}

	stats := h.Poller.GetStatistics()
	return h.ok(c, Metrics{
		UptimeSeconds:      int64(time.Since(h.StartedAt).Seconds()),
		Goroutines:         runtime.NumGoroutine(),
		HeapAllocBytes:     mem.HeapAlloc,
		PoolCount:          poolCount,
		TotalPollCycles:    stats.TotalPollCycles,
		FailedCycles:       stats.FailedCycles,
		PoolsSynced:        stats.PoolsSynced,
		TransactionsSynced: stats.TransactionsSynced,
	})
}
