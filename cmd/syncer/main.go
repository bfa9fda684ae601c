// Headless polling daemon: runs the reconciliation loop without the HTTP
// API. Useful when the API is deployed separately against the same stores.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fixedratio-labs/pool-indexer/internal/config"
	"github.com/fixedratio-labs/pool-indexer/internal/ledger"
	"github.com/fixedratio-labs/pool-indexer/internal/rpc"
	"github.com/fixedratio-labs/pool-indexer/internal/scheduler"
	"github.com/fixedratio-labs/pool-indexer/internal/store"
	syncer "github.com/fixedratio-labs/pool-indexer/internal/sync"
)

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	pools, err := store.NewRedisPoolRepository(rclient, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create pool repository")
	}
	system, err := store.NewRedisSystemStateRepository(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create system state repository")
	}

	// Transaction history is optional for the headless daemon; without
	// ClickHouse it still reconciles pool and system state.
	var txs store.TransactionStore
	if cfg.EnableTxSync {
		ch, err := store.NewClickHouseTransactionStore(store.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to ClickHouse")
		}
		defer func() {
			_ = ch.Close()
		}()
		txs = ch
	}

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	reader := ledger.NewReader(rpcClient, logger)

	if !reader.TestConnection(ctx) {
		logger.WithField("rpc_url", cfg.RPCUrl).Warn("rpc node is not healthy, continuing anyway")
	}

	sy := syncer.New(reader, pools, system, txs, syncer.Config{
		Network:            cfg.Network,
		SystemStateAddress: cfg.SystemStateAddress,
		SystemAuthority:    cfg.SystemAuthority,
		MaxConcurrentPools: cfg.MaxConcurrentPools,
		MaxTxPerPool:       cfg.MaxTxPerPool,
	}, logger)

	sched := scheduler.New(sy, logger)

	// Log every cycle outcome so operators can follow the daemon from
	// its output alone.
	events := sched.Subscribe()
	go func() {
		for ev := range events {
			fields := logrus.Fields{
				"duration": ev.Duration.Round(time.Millisecond),
			}
			if ev.Kind == scheduler.EventCycleError {
				logger.WithFields(fields).WithField("error", ev.Error).Warn("poll cycle failed")
				continue
			}
			fields["pools"] = ev.PoolsSynced
			fields["transactions"] = ev.TransactionsSynced
			if ev.PoolsDiscovered > 0 {
				fields["discovered"] = ev.PoolsDiscovered
			}
			logger.WithFields(fields).Info("poll cycle completed")
		}
	}()

	if err := sched.Start(scheduler.Config{
		PollInterval:        cfg.PollInterval,
		DiscoveryInterval:   cfg.DiscoveryInterval,
		SystemStateInterval: cfg.SystemStateInterval,
		MaxTxPerPool:        cfg.MaxTxPerPool,
		MaxConcurrentPools:  cfg.MaxConcurrentPools,
		EnableDiscovery:     cfg.EnableDiscovery,
		EnableTxSync:        cfg.EnableTxSync,
		EnableSystemSync:    cfg.EnableSystemSync,
		Network:             cfg.Network,
		SystemStateAddress:  cfg.SystemStateAddress,
		OperationTimeout:    cfg.OperationTimeout,
		RetryOnFailure:      cfg.RetryOnFailure,
		MaxRetryAttempts:    cfg.MaxRetryAttempts,
		RetryDelay:          cfg.RetryDelay,
	}); err != nil {
		logger.WithError(err).Fatal("failed to start scheduler")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	sched.Stop()
}
