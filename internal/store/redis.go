package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fixedratio-labs/pool-indexer/internal/constants"
	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

const globalIndexKey = "pools:index:_all"

// PoolID derives the internal pool id from its network and address.
// The id is stable for the lifetime of the row.
func PoolID(network, address string) string {
	return network + ":" + address
}

func splitPoolID(id string) (network, address string, err error) {
	network, address, ok := strings.Cut(id, ":")
	if !ok || network == "" || address == "" {
		return "", "", fmt.Errorf("malformed pool id %q", id)
	}
	return network, address, nil
}

// RedisPoolRepository keeps one JSON row per pool plus per-network and
// global index sets, so network scans avoid KEYS/SCAN.
type RedisPoolRepository struct {
	client redis.Cmdable
	logger *logrus.Logger
}

func NewRedisPoolRepository(client redis.Cmdable, logger *logrus.Logger) (*RedisPoolRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisPoolRepository{client: client, logger: logger}, nil
}

func poolKey(network, address string) string {
	return constants.RedisKeyPoolPrefix + network + ":" + address
}

func networkIndexKey(network string) string {
	return constants.RedisKeyPoolIndexPrefix + network
}

func (r *RedisPoolRepository) GetByID(ctx context.Context, id string) (*models.Pool, error) {
	network, address, err := splitPoolID(id)
	if err != nil {
		return nil, err
	}
	return r.GetByAddress(ctx, network, address)
}

func (r *RedisPoolRepository) GetByAddress(ctx context.Context, network, address string) (*models.Pool, error) {
	val, err := r.client.Get(ctx, poolKey(network, address)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pool: %w", err)
	}

	var p models.Pool
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("unmarshal pool: %w", err)
	}
	return &p, nil
}

func (r *RedisPoolRepository) GetAll(ctx context.Context) ([]*models.Pool, error) {
	ids, err := r.client.SMembers(ctx, globalIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pool index: %w", err)
	}
	return r.fetchByIDs(ctx, ids)
}

func (r *RedisPoolRepository) GetByNetwork(ctx context.Context, network string) ([]*models.Pool, error) {
	addrs, err := r.client.SMembers(ctx, networkIndexKey(network)).Result()
	if err != nil {
		return nil, fmt.Errorf("list network index: %w", err)
	}
	ids := make([]string, 0, len(addrs))
	for _, a := range addrs {
		ids = append(ids, PoolID(network, a))
	}
	return r.fetchByIDs(ctx, ids)
}

func (r *RedisPoolRepository) fetchByIDs(ctx context.Context, ids []string) ([]*models.Pool, error) {
	if len(ids) == 0 {
		return []*models.Pool{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		network, address, err := splitPoolID(id)
		if err != nil {
			continue
		}
		keys = append(keys, poolKey(network, address))
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget pools: %w", err)
	}

	out := make([]*models.Pool, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var p models.Pool
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			r.logger.WithError(err).Warn("skipping unreadable pool row")
			continue
		}
		out = append(out, &p)
	}
	return out, nil
}

func (r *RedisPoolRepository) GetAllAddressesForNetwork(ctx context.Context, network string) ([]string, error) {
	addrs, err := r.client.SMembers(ctx, networkIndexKey(network)).Result()
	if err != nil {
		return nil, fmt.Errorf("list network index: %w", err)
	}
	return addrs, nil
}

func (r *RedisPoolRepository) Add(ctx context.Context, pool *models.Pool) error {
	exists, err := r.Exists(ctx, pool.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}
	return r.write(ctx, pool)
}

func (r *RedisPoolRepository) Update(ctx context.Context, pool *models.Pool) error {
	exists, err := r.Exists(ctx, pool.ID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return r.write(ctx, pool)
}

func (r *RedisPoolRepository) write(ctx context.Context, pool *models.Pool) error {
	b, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, poolKey(pool.Network, pool.Address), b, 0)
	pipe.SAdd(ctx, networkIndexKey(pool.Network), pool.Address)
	pipe.SAdd(ctx, globalIndexKey, pool.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write pool: %w", err)
	}
	return nil
}

func (r *RedisPoolRepository) Delete(ctx context.Context, id string) error {
	network, address, err := splitPoolID(id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, poolKey(network, address))
	pipe.SRem(ctx, networkIndexKey(network), address)
	pipe.SRem(ctx, globalIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}
	return nil
}

func (r *RedisPoolRepository) Exists(ctx context.Context, id string) (bool, error) {
	network, address, err := splitPoolID(id)
	if err != nil {
		return false, err
	}
	n, err := r.client.Exists(ctx, poolKey(network, address)).Result()
	if err != nil {
		return false, fmt.Errorf("exists pool: %w", err)
	}
	return n > 0, nil
}

func (r *RedisPoolRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.SCard(ctx, globalIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count pools: %w", err)
	}
	return n, nil
}

func (r *RedisPoolRepository) Ping(ctx context.Context) error {
	if pinger, ok := r.client.(interface {
		Ping(ctx context.Context) *redis.StatusCmd
	}); ok {
		return pinger.Ping(ctx).Err()
	}
	return nil
}

// RedisSystemStateRepository stores one system state row per network.
type RedisSystemStateRepository struct {
	client redis.Cmdable
}

func NewRedisSystemStateRepository(client redis.Cmdable) (*RedisSystemStateRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisSystemStateRepository{client: client}, nil
}

func systemKey(network string) string {
	return constants.RedisKeySystemPrefix + network
}

func (r *RedisSystemStateRepository) Get(ctx context.Context, network string) (*models.SystemState, error) {
	val, err := r.client.Get(ctx, systemKey(network)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get system state: %w", err)
	}

	var s models.SystemState
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("unmarshal system state: %w", err)
	}
	return &s, nil
}

func (r *RedisSystemStateRepository) Upsert(ctx context.Context, state *models.SystemState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal system state: %w", err)
	}
	if err := r.client.Set(ctx, systemKey(state.Network), b, 0).Err(); err != nil {
		return fmt.Errorf("upsert system state: %w", err)
	}
	return nil
}
