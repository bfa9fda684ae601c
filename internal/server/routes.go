package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error
// handlers.
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = EnvelopeErrorHandler()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	// Optional API key authentication.
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")

	pools := v1.Group("/pools")
	pools.GET("", h.ListPools)
	pools.GET("/statistics", h.GetPoolStatistics)
	pools.GET("/top", h.TopPools)
	pools.GET("/search", h.SearchPools)
	pools.GET("/address/:address", h.GetPoolByAddress)
	pools.GET("/:id", h.GetPool)
	pools.GET("/:id/transactions", h.GetPoolTransactions)

	// On-demand sync hits the remote node, so it is rate limited.
	syncGroup := pools.Group("/sync")
	syncGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.5), // 1 request every 2 seconds
		Burst:     3,
		ExpiresIn: 2 * time.Minute,
	})))
	syncGroup.POST("/:address", h.SyncPool)

	system := v1.Group("/system")
	system.GET("/health", h.SystemHealth)
	system.GET("/state", h.GetSystemState)
	system.GET("/polling/statistics", h.GetPollingStatistics)
	system.POST("/polling/trigger", h.TriggerPolling)
	system.GET("/config", h.GetConfig)
	system.GET("/metrics", h.GetMetrics)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, Response{Success: false, Error: "not found"})
	})
}
