package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

// ClickHouseTransactionStore keeps the append-only pool event history.
// Rows are inserted once and never updated, which fits ClickHouse's
// MergeTree model.
type ClickHouseTransactionStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

// ClickHouseConfig holds connection settings for the transaction store.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

func NewClickHouseTransactionStore(cfg ClickHouseConfig) (*ClickHouseTransactionStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")

	return &ClickHouseTransactionStore{conn: conn, logger: cfg.Logger}, nil
}

func (c *ClickHouseTransactionStore) Insert(ctx context.Context, tx *models.PoolTransaction) error {
	query := `
		INSERT INTO pool_transactions (
			signature, pool_address, type, amount_a, amount_b,
			success, slot, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		tx.Signature,
		tx.PoolAddress,
		string(tx.Type),
		tx.AmountA,
		tx.AmountB,
		tx.Success,
		tx.Slot,
		tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (c *ClickHouseTransactionStore) GetByPool(ctx context.Context, poolAddress string, limit, offset int) ([]*models.PoolTransaction, error) {
	query := `
		SELECT signature, pool_address, type, amount_a, amount_b,
		       success, slot, timestamp
		FROM pool_transactions
		WHERE pool_address = ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := c.conn.Query(ctx, query, poolAddress, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.PoolTransaction, 0, limit)
	for rows.Next() {
		var tx models.PoolTransaction
		var txType string
		if err := rows.Scan(
			&tx.Signature,
			&tx.PoolAddress,
			&txType,
			&tx.AmountA,
			&tx.AmountB,
			&tx.Success,
			&tx.Slot,
			&tx.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Type = models.TransactionType(txType)
		out = append(out, &tx)
	}
	return out, rows.Err()
}

func (c *ClickHouseTransactionStore) CountByPool(ctx context.Context, poolAddress string) (uint64, error) {
	var count uint64
	row := c.conn.QueryRow(ctx, `SELECT count() FROM pool_transactions WHERE pool_address = ?`, poolAddress)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// LatestSignature returns the most recent stored signature for a pool, or
// ErrNotFound when the pool has no history yet. The synchronizer uses it
// to bound incremental transaction fetches, so a transient query failure
// must surface as an error: mapping it to ErrNotFound would reset the
// cut-off and duplicate already-stored rows.
func (c *ClickHouseTransactionStore) LatestSignature(ctx context.Context, poolAddress string) (string, error) {
	var sig string
	row := c.conn.QueryRow(ctx, `
		SELECT signature FROM pool_transactions
		WHERE pool_address = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, poolAddress)
	if err := row.Scan(&sig); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query latest signature: %w", err)
	}
	return sig, nil
}

func (c *ClickHouseTransactionStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseTransactionStore) Close() error {
	return c.conn.Close()
}
