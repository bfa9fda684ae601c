package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/fixedratio-labs/pool-indexer/internal/config"
	"github.com/fixedratio-labs/pool-indexer/internal/display"
	"github.com/fixedratio-labs/pool-indexer/internal/models"
	"github.com/fixedratio-labs/pool-indexer/internal/scheduler"
	"github.com/fixedratio-labs/pool-indexer/internal/store"
)

// PoolSyncer is the on-demand sync surface the API exposes.
type PoolSyncer interface {
	SyncOne(ctx context.Context, address string) (*models.Pool, error)
	SyncTransactions(ctx context.Context, address string, limit int) (int, error)
}

// PollController is the slice of the scheduler the API needs.
type PollController interface {
	TriggerNow() error
	IsRunning() bool
	GetStatistics() scheduler.Statistics
}

// LedgerHealth reports reachability of the remote ledger node.
type LedgerHealth interface {
	TestConnection(ctx context.Context) bool
}

// Handlers contains all dependencies for API endpoint handlers.
type Handlers struct {
	Pools     store.PoolRepository
	System    store.SystemStateRepository
	Txs       store.TransactionStore
	Syncer    PoolSyncer
	Poller    PollController
	Ledger    LedgerHealth
	Cfg       *config.Config
	Logger    *logrus.Logger
	StartedAt time.Time
}

func (h *Handlers) ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func (h *Handlers) okPaged(c echo.Context, data any, p Pagination) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data, Pagination: &p})
}

func (h *Handlers) fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, Response{Success: false, Error: msg})
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// pageParams parses page/pageSize query parameters with sane bounds.
func pageParams(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(c.QueryParam("pageSize"))
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func paginate(total int, page, size int) (lo, hi int, p Pagination) {
	totalPages := (total + size - 1) / size
	lo = (page - 1) * size
	if lo > total {
		lo = total
	}
	hi = lo + size
	if hi > total {
		hi = total
	}
	return lo, hi, Pagination{
		CurrentPage: page,
		PageSize:    size,
		TotalCount:  int64(total),
		TotalPages:  totalPages,
	}
}

// validAddress checks that a string decodes to a 32-byte account key.
func validAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	return err == nil && len(raw) == 32
}

// view attaches the derived display orientation to a pool. A pool whose
// ratio cannot be rendered is still returned, without display.
func (h *Handlers) view(pool *models.Pool) PoolView {
	info, err := display.ForPool(pool)
	if err != nil {
		h.Logger.WithError(err).WithField("pool", pool.ID).Warn("display computation failed")
	}
	return PoolView{Pool: pool, Display: info}
}

func (h *Handlers) views(pools []*models.Pool) []PoolView {
	out := make([]PoolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, h.view(p))
	}
	return out
}

// ListPools returns the stored pool set, optionally filtered by network
// and active flag, paginated.
func (h *Handlers) ListPools(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pools, err := h.fetchPools(ctx, c.QueryParam("network"))
	if err != nil {
		return h.fail(c, http.StatusInternalServerError, "failed to list pools")
	}

	if raw := c.QueryParam("active"); raw != "" {
		want, err := strconv.ParseBool(raw)
		if err != nil {
			return h.fail(c, http.StatusBadRequest, "invalid active filter")
		}
		filtered := pools[:0]
		for _, p := range pools {
			if p.Active == want {
				filtered = append(filtered, p)
			}
		}
		pools = filtered
	}

	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })

	page, size := pageParams(c)
	lo, hi, pg := paginate(len(pools), page, size)
	return h.okPaged(c, h.views(pools[lo:hi]), pg)
}

func (h *Handlers) fetchPools(ctx context.Context, network string) ([]*models.Pool, error) {
	if network != "" {
		return h.Pools.GetByNetwork(ctx, network)
	}
	return h.Pools.GetAll(ctx)
}

// GetPool returns one pool by its internal identifier.
func (h *Handlers) GetPool(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	pool, err := h.Pools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.fail(c, http.StatusNotFound, "pool not found")
		}
		return h.fail(c, http.StatusInternalServerError, "failed to get pool")
	}
	return h.ok(c, h.view(pool))
}

// GetPoolByAddress returns one pool by its on-chain address. The network
// defaults to the configured one.
func (h *Handlers) GetPoolByAddress(c echo.Context) error {
	address := c.Param("address")
	if !validAddress(address) {
		return h.fail(c, http.StatusBadRequest, "invalid pool address")
	}
	network := c.QueryParam("network")
	if network == "" {
		network = h.Cfg.Network
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	pool, err := h.Pools.GetByAddress(ctx, network, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.fail(c, http.StatusNotFound, "pool not found")
		}
		return h.fail(c, http.StatusInternalServerError, "failed to get pool")
	}
	return h.ok(c, h.view(pool))
}

// SearchPools matches q case-insensitively against address, token
// symbols, names and the pair label.
func (h *Handlers) SearchPools(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return h.fail(c, http.StatusBadRequest, "q is required")
	}
	q = strings.ToLower(q)

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pools, err := h.fetchPools(ctx, c.QueryParam("network"))
	if err != nil {
		return h.fail(c, http.StatusInternalServerError, "failed to search pools")
	}

	var matched []*models.Pool
	for _, p := range pools {
		if poolMatches(p, q) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	page, size := pageParams(c)
	lo, hi, pg := paginate(len(matched), page, size)
	return h.okPaged(c, h.views(matched[lo:hi]), pg)
}

func poolMatches(p *models.Pool, q string) bool {
	for _, field := range []string{
		p.Address, p.TokenASymbol, p.TokenBSymbol,
		p.TokenAName, p.TokenBName, p.PairLabel(),
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// GetPoolStatistics aggregates the stored pool set.
func (h *Handlers) GetPoolStatistics(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pools, err := h.fetchPools(ctx, c.QueryParam("network"))
	if err != nil {
		return h.fail(c, http.StatusInternalServerError, "failed to load pools")
	}

	var stats PoolStatistics
	stats.TotalPools = len(pools)
	for _, p := range pools {
		if p.Active {
			stats.ActivePools++
		}
		if p.SwapsPaused {
			stats.SwapsPaused++
		}
		if p.LiquidityPaused {
			stats.LiquidityPaused++
		}
		if p.OneToManyRatio {
			stats.OneToManyPools++
		}
		stats.TotalVolumeA += p.TokenAVolume
		stats.TotalVolumeB += p.TokenBVolume
	}
	return h.ok(c, stats)
}

// TopPools returns pools ranked by volume, liquidity or recency.
func (h *Handlers) TopPools(c echo.Context) error {
	sortBy := c.QueryParam("sortBy")
	if sortBy == "" {
		sortBy = "volume"
	}

	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return h.fail(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pools, err := h.fetchPools(ctx, c.QueryParam("network"))
	if err != nil {
		return h.fail(c, http.StatusInternalServerError, "failed to load pools")
	}

	switch sortBy {
	case "volume":
		sort.Slice(pools, func(i, j int) bool {
			return pools[i].TokenAVolume+pools[i].TokenBVolume > pools[j].TokenAVolume+pools[j].TokenBVolume
		})
	case "liquidity":
		sort.Slice(pools, func(i, j int) bool {
			return pools[i].TokenALiquidity+pools[i].TokenBLiquidity > pools[j].TokenALiquidity+pools[j].TokenBLiquidity
		})
	case "recent":
		sort.Slice(pools, func(i, j int) bool {
			return pools[i].CreatedAt.After(pools[j].CreatedAt)
		})
	default:
		return h.fail(c, http.StatusBadRequest, "sortBy must be volume, liquidity or recent")
	}

	if len(pools) > limit {
		pools = pools[:limit]
	}
	return h.ok(c, h.views(pools))
}

// GetPoolTransactions returns the stored event history of one pool,
// newest first, paginated.
func (h *Handlers) GetPoolTransactions(c echo.Context) error {
	id := c.Param("id")

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pool, err := h.Pools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.fail(c, http.StatusNotFound, "pool not found")
		}
		return h.fail(c, http.StatusInternalServerError, "failed to get pool")
	}

	page, size := pageParams(c)

	total, err := h.Txs.CountByPool(ctx, pool.Address)
	if err != nil {
		return h.fail(c, http.StatusInternalServerError, "failed to count transactions")
	}

	rows, err := h.Txs.GetByPool(ctx, pool.Address, size, (page-1)*size)
	if err != nil {
		return h.fail(c, http.StatusInternalServerError, "failed to load transactions")
	}

	totalPages := int((total + uint64(size) - 1) / uint64(size))
	return h.okPaged(c, rows, Pagination{
		CurrentPage: page,
		PageSize:    size,
		TotalCount:  int64(total),
		TotalPages:  totalPages,
	})
}

// SyncPool reconciles one pool against the ledger on demand and returns
// the refreshed replica. Failures surface to the caller instead of being
// swallowed the way batch sync does.
func (h *Handlers) SyncPool(c echo.Context) error {
	address := c.Param("address")
	if !validAddress(address) {
		return h.fail(c, http.StatusBadRequest, "invalid pool address")
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	pool, err := h.Syncer.SyncOne(ctx, address)
	if err != nil {
		h.Logger.WithError(err).WithField("address", address).Error("on-demand sync failed")
		return h.fail(c, http.StatusBadGateway, "sync failed: "+err.Error())
	}
	if pool == nil {
		return h.fail(c, http.StatusNotFound, "no pool account at address")
	}

	// Best effort: pull recent history too, but the pool row is already
	// committed.
	if h.Cfg.EnableTxSync {
		if _, err := h.Syncer.SyncTransactions(ctx, address, h.Cfg.MaxTxPerPool); err != nil {
			h.Logger.WithError(err).WithField("address", address).Warn("transaction sync failed after pool sync")
		}
	}

	return h.ok(c, h.view(pool))
}
