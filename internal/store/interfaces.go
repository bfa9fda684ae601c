package store

import (
	"context"
	"errors"
	"io"

	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

// ErrNotFound is returned when a row does not exist. It is a normal
// outcome for lookups, not a failure.
var ErrNotFound = errors.New("row not found")

// ErrAlreadyExists is returned by Add when a row with the same identity
// is already stored.
var ErrAlreadyExists = errors.New("row already exists")

// PoolRepository stores local replicas of on-chain pools. Rows are only
// written by the synchronizer; same-pool concurrent writes are not
// expected within one scheduler instance.
type PoolRepository interface {
	GetByID(ctx context.Context, id string) (*models.Pool, error)
	GetAll(ctx context.Context) ([]*models.Pool, error)
	Add(ctx context.Context, pool *models.Pool) error
	Update(ctx context.Context, pool *models.Pool) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)

	GetByAddress(ctx context.Context, network, address string) (*models.Pool, error)
	GetByNetwork(ctx context.Context, network string) ([]*models.Pool, error)
	GetAllAddressesForNetwork(ctx context.Context, network string) ([]string, error)

	Ping(ctx context.Context) error
}

// SystemStateRepository stores the single system state row per network.
type SystemStateRepository interface {
	Get(ctx context.Context, network string) (*models.SystemState, error)
	Upsert(ctx context.Context, state *models.SystemState) error
}

// TransactionStore is the append-only history of on-chain pool events.
type TransactionStore interface {
	Insert(ctx context.Context, tx *models.PoolTransaction) error
	GetByPool(ctx context.Context, poolAddress string, limit, offset int) ([]*models.PoolTransaction, error)
	CountByPool(ctx context.Context, poolAddress string) (uint64, error)
	LatestSignature(ctx context.Context, poolAddress string) (string, error)

	Ping(ctx context.Context) error
	io.Closer
}
