package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/fixedratio-labs/pool-indexer/internal/rpc"
)

// ErrNotFound is returned when an account or transaction does not exist on
// the ledger. Callers treat it as a normal empty outcome, not a failure.
var ErrNotFound = errors.New("not found on ledger")

// Reader exposes typed, read-only views of ledger account state. All calls
// may fail transiently; callers retry, they do not treat failures as fatal.
type Reader struct {
	client *rpc.Client
	logger *logrus.Logger
}

func NewReader(client *rpc.Client, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{client: client, logger: logger}
}

// TestConnection reports whether the RPC node answers getHealth.
func (r *Reader) TestConnection(ctx context.Context) bool {
	var health string
	if err := r.client.Call(ctx, "getHealth", []interface{}{}, &health); err != nil {
		r.logger.WithError(err).Debug("ledger health check failed")
		return false
	}
	return health == "ok"
}

// CurrentSlot returns the node's current slot.
func (r *Reader) CurrentSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := r.client.Call(ctx, "getSlot", []interface{}{}, &slot); err != nil {
		return 0, fmt.Errorf("getSlot: %w", err)
	}
	return slot, nil
}

// GetPoolState fetches and decodes a pool state account.
// Returns ErrNotFound when the account does not exist.
func (r *Reader) GetPoolState(ctx context.Context, address string) (*PoolAccount, error) {
	data, err := r.fetchAccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodePoolAccount(data)
}

// GetSystemState fetches and decodes the system state account.
// Returns ErrNotFound when the account does not exist.
func (r *Reader) GetSystemState(ctx context.Context, address string) (*SystemAccount, error) {
	data, err := r.fetchAccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	return DecodeSystemAccount(data)
}

// GetRecentTransactionSignatures returns up to limit recent signatures that
// reference the given address, newest first.
func (r *Reader) GetRecentTransactionSignatures(ctx context.Context, address string, limit int) ([]rpc.SignatureInfo, error) {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	params := []interface{}{address, map[string]interface{}{"limit": limit}}
	var sigs []rpc.SignatureInfo
	if err := r.client.Call(ctx, "getSignaturesForAddress", params, &sigs); err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}
	return sigs, nil
}

// GetTransactionDetails fetches a transaction by signature.
// Returns ErrNotFound for unknown signatures.
func (r *Reader) GetTransactionDetails(ctx context.Context, signature string) (*rpc.TransactionResult, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	// The node answers an unknown signature with a null result, which
	// Call leaves as a nil pointer.
	var res *rpc.TransactionResult
	if err := r.client.Call(ctx, "getTransaction", params, &res); err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	if res == nil {
		return nil, ErrNotFound
	}
	return res, nil
}

// GetTokenAccountBalance returns the raw token amount held by a token
// account (vault).
func (r *Reader) GetTokenAccountBalance(ctx context.Context, address string) (uint64, error) {
	params := []interface{}{address}
	var res rpc.TokenBalanceResult
	if err := r.client.Call(ctx, "getTokenAccountBalance", params, &res); err != nil {
		return 0, fmt.Errorf("getTokenAccountBalance: %w", err)
	}

	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

// GetMultipleAccounts fetches raw data for a batch of accounts in one call.
// Addresses with no account map to a nil slice.
func (r *Reader) GetMultipleAccounts(ctx context.Context, addresses []string) (map[string][]byte, error) {
	params := []interface{}{addresses, map[string]interface{}{"encoding": "base64"}}
	var res rpc.MultipleAccountsResult
	if err := r.client.Call(ctx, "getMultipleAccounts", params, &res); err != nil {
		return nil, fmt.Errorf("getMultipleAccounts: %w", err)
	}
	if len(res.Value) != len(addresses) {
		return nil, fmt.Errorf("getMultipleAccounts returned %d entries for %d addresses", len(res.Value), len(addresses))
	}

	out := make(map[string][]byte, len(addresses))
	for i, info := range res.Value {
		if info == nil {
			out[addresses[i]] = nil
			continue
		}
		data, err := decodeAccountData(info.Data)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", addresses[i], err)
		}
		out[addresses[i]] = data
	}
	return out, nil
}

func (r *Reader) fetchAccountData(ctx context.Context, address string) ([]byte, error) {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	params := []interface{}{address, map[string]interface{}{"encoding": "base64"}}
	var res rpc.AccountInfoResult
	if err := r.client.Call(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, fmt.Errorf("getAccountInfo: %w", err)
	}
	if res.Value == nil {
		return nil, ErrNotFound
	}
	return decodeAccountData(res.Value.Data)
}

func decodeAccountData(data []string) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("empty account data")
	}
	raw, err := base64.StdEncoding.DecodeString(data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return raw, nil
}
