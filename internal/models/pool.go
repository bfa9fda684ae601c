package models

import "time"

// Pool is the local replica of an on-chain fixed-ratio trading pool.
// Identity fields (token mints and the ratio) are immutable after creation:
// a pool with a different ratio is a different pool. Mutable fields are only
// ever written by the synchronizer.
type Pool struct {
	ID      string `json:"id"`      // internal identifier, stable across syncs
	Address string `json:"address"` // pool state account address on the ledger
	Network string `json:"network"` // "mainnet", "testnet", ...

	TokenAMint   string `json:"token_a_mint"`
	TokenBMint   string `json:"token_b_mint"`
	TokenASymbol string `json:"token_a_symbol"`
	TokenBSymbol string `json:"token_b_symbol"`
	TokenAName   string `json:"token_a_name"`
	TokenBName   string `json:"token_b_name"`

	// Fixed exchange ratio baked in at pool creation, A per B.
	// Denominator is conventionally 1. Never changes.
	RatioANumerator   uint64 `json:"ratio_a_numerator"`
	RatioBDenominator uint64 `json:"ratio_b_denominator"`

	Owner        string `json:"owner"`
	TokenAVault  string `json:"token_a_vault"`
	TokenBVault  string `json:"token_b_vault"`
	LPTokenAMint string `json:"lp_token_a_mint"`
	LPTokenBMint string `json:"lp_token_b_mint"`

	TokenALiquidity uint64 `json:"token_a_liquidity"`
	TokenBLiquidity uint64 `json:"token_b_liquidity"`

	TokenAVolume uint64 `json:"token_a_volume"`
	TokenBVolume uint64 `json:"token_b_volume"`

	CollectedFeesTokenA uint64 `json:"collected_fees_token_a"`
	CollectedFeesTokenB uint64 `json:"collected_fees_token_b"`
	CollectedSOLFees    uint64 `json:"collected_sol_fees"`

	OneToManyRatio  bool `json:"one_to_many_ratio"`
	LiquidityPaused bool `json:"liquidity_paused"` // owner pause, deposits/withdrawals
	SwapsPaused     bool `json:"swaps_paused"`     // owner pause, swaps only

	Active       bool      `json:"active"` // soft-delete flag, never hard-deleted
	CreatedAt    time.Time `json:"created_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// PairLabel returns "A/B" using token symbols.
func (p *Pool) PairLabel() string {
	return p.TokenASymbol + "/" + p.TokenBSymbol
}
