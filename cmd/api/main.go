package main

import (
	"context"
	"fmt"
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
	"github.com/fixedratio-labs/pool-indexer/internal/server"
	"github.com/fixedratio-labs/pool-indexer/internal/store"
	syncer "github.com/fixedratio-labs/pool-indexer/internal/sync"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main wires the stores, the ledger reader, the synchronizer and the
// scheduler behind the HTTP API, then serves until interrupted.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Redis holds the mutable pool and system-state replicas.
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

	// ClickHouse holds the append-only event history.
	txs, err := store.NewClickHouseTransactionStore(store.ClickHouseConfig{
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
		_ = txs.Close()
	}()

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	reader := ledger.NewReader(rpcClient, logger)

	sy := syncer.New(reader, pools, system, txs, syncer.Config{
		Network:            cfg.Network,
		SystemStateAddress: cfg.SystemStateAddress,
		SystemAuthority:    cfg.SystemAuthority,
		MaxConcurrentPools: cfg.MaxConcurrentPools,
		MaxTxPerPool:       cfg.MaxTxPerPool,
	}, logger)

	sched := scheduler.New(sy, logger)
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
	defer sched.Stop()

	h := &server.Handlers{
		Pools:     pools,
		System:    system,
		Txs:       txs,
		Syncer:    sy,
		Poller:    sched,
		Ledger:    reader,
		Cfg:       cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:   cfg.APIAddr,
			APIKey: cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
