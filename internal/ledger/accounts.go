package ledger

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/fixedratio-labs/pool-indexer/internal/constants"
)

// Packed sizes of the on-chain account layouts. Fields are borsh-encoded,
// little-endian, with no discriminator prefix.
const (
	rentRequirementsLen = 5 * 8
	PoolAccountLen      = 7*32 + 4*8 + 5 + rentRequirementsLen + 1 + 4*8 + 3*8 + 8 + 2*8
	SystemAccountLen    = 1 + 8 + 1
)

// RentRequirements tracks rent-exemption bookkeeping inside the pool
// account. Kept only so the decoder walks the layout correctly.
type RentRequirements struct {
	LastUpdateSlot    uint64
	RentExemptMinimum uint64
	PoolStateRent     uint64
	TokenVaultRent    uint64
	LPMintRent        uint64
}

// PoolAccount is the decoded on-chain pool state account.
type PoolAccount struct {
	Owner        solana.PublicKey
	TokenAMint   solana.PublicKey
	TokenBMint   solana.PublicKey
	TokenAVault  solana.PublicKey
	TokenBVault  solana.PublicKey
	LPTokenAMint solana.PublicKey
	LPTokenBMint solana.PublicKey

	RatioANumerator      uint64
	RatioBDenominator    uint64
	TotalTokenALiquidity uint64
	TotalTokenBLiquidity uint64

	PoolAuthorityBumpSeed uint8
	TokenAVaultBumpSeed   uint8
	TokenBVaultBumpSeed   uint8
	LPTokenAMintBumpSeed  uint8
	LPTokenBMintBumpSeed  uint8

	RentRequirements RentRequirements

	// Bitmask, see constants.PoolFlag*.
	Flags uint8

	CollectedFeesTokenA      uint64
	CollectedFeesTokenB      uint64
	TotalFeesWithdrawnTokenA uint64
	TotalFeesWithdrawnTokenB uint64

	CollectedLiquidityFees    uint64
	CollectedSwapContractFees uint64
	TotalSOLFeesCollected     uint64

	LastConsolidationTimestamp int64
	TotalConsolidations        uint64
	TotalFeesConsolidated      uint64
}

func (a *PoolAccount) OneToManyRatio() bool {
	return a.Flags&constants.PoolFlagOneToManyRatio != 0
}

func (a *PoolAccount) LiquidityPaused() bool {
	return a.Flags&constants.PoolFlagLiquidityPaused != 0
}

func (a *PoolAccount) SwapsPaused() bool {
	return a.Flags&constants.PoolFlagSwapsPaused != 0
}

// SystemAccount is the decoded on-chain system state account.
type SystemAccount struct {
	Paused          bool
	PauseTimestamp  int64
	PauseReasonCode uint8
}

// DecodePoolAccount decodes raw pool state account bytes. A short buffer
// is a data-integrity problem upstream and fails fast.
func DecodePoolAccount(data []byte) (*PoolAccount, error) {
	if len(data) < PoolAccountLen {
		return nil, fmt.Errorf("pool account data too short: got %d bytes, want %d", len(data), PoolAccountLen)
	}

	var acc PoolAccount
	dec := bin.NewBorshDecoder(data)
	if err := dec.Decode(&acc); err != nil {
		return nil, fmt.Errorf("decode pool account: %w", err)
	}

	if acc.RatioANumerator == 0 || acc.RatioBDenominator == 0 {
		return nil, fmt.Errorf("pool account has zero ratio %d/%d", acc.RatioANumerator, acc.RatioBDenominator)
	}

	return &acc, nil
}

// DecodeSystemAccount decodes raw system state account bytes.
func DecodeSystemAccount(data []byte) (*SystemAccount, error) {
	if len(data) < SystemAccountLen {
		return nil, fmt.Errorf("system account data too short: got %d bytes, want %d", len(data), SystemAccountLen)
	}

	var acc SystemAccount
	dec := bin.NewBorshDecoder(data)
	if err := dec.Decode(&acc); err != nil {
		return nil, fmt.Errorf("decode system account: %w", err)
	}

	return &acc, nil
}
