package models

import "time"

// TransactionType classifies an on-chain event affecting a pool.
type TransactionType string

const (
	TxTypeSwap            TransactionType = "swap"
	TxTypeAddLiquidity    TransactionType = "add_liquidity"
	TxTypeRemoveLiquidity TransactionType = "remove_liquidity"
	TxTypePoolCreation    TransactionType = "pool_creation"
)

// PoolTransaction is the historical read-model row for a single on-chain
// event. Rows are append-only; they are never updated after insert.
type PoolTransaction struct {
	Signature   string          `json:"signature"`
	PoolAddress string          `json:"pool_address"`
	Type        TransactionType `json:"type"`
	AmountA     uint64          `json:"amount_a"`
	AmountB     uint64          `json:"amount_b"`
	Success     bool            `json:"success"`
	Slot        uint64          `json:"slot"`
	Timestamp   time.Time       `json:"timestamp"`
}
