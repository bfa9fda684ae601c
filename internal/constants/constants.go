package constants

import "time"

// Redis key layout
const (
	RedisKeyPoolPrefix      = "pools:"        // pools:<network>:<address> -> JSON row
	RedisKeyPoolIndexPrefix = "pools:index:"  // pools:index:<network> -> set of addresses
	RedisKeySystemPrefix    = "system:state:" // system:state:<network> -> JSON row
)

// Networks
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkDevnet  = "devnet"
)

// Pool state account flag bits (on-chain bitmask).
const (
	PoolFlagOneToManyRatio       uint8 = 1 << 0
	PoolFlagLiquidityPaused      uint8 = 1 << 1
	PoolFlagSwapsPaused          uint8 = 1 << 2
	PoolFlagWithdrawalProtection uint8 = 1 << 3
	PoolFlagSingleLPToken        uint8 = 1 << 4
)

// Sync limits
const (
	DefaultMaxConcurrentPools = 5
	DefaultMaxTxPerPool       = 20
	SignatureBatchSize        = 25
	// Delay between getTransaction calls, to stay under public RPC limits.
	DelayBetweenTxFetch = 200 * time.Millisecond
)

// Scheduler defaults
const (
	DefaultPollInterval        = 30 * time.Second
	DefaultDiscoveryInterval   = 5 * time.Minute
	DefaultSystemStateInterval = time.Minute
	DefaultOperationTimeout    = 15 * time.Second
	DefaultRetryDelay          = 5 * time.Second
	DefaultMaxRetryAttempts    = 3
)

// Placeholder used for token symbols until metadata resolution runs;
// display falls back to a shortened mint address.
const UnknownSymbol = "UNKNOWN"

// Well-known token mints, used to seed symbols for new pools without a
// separate metadata lookup.
var TokenSymbols = map[string]string{
	"So11111111111111111111111111111111111111112":  "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs": "ETH",
	"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": "BTC",
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": "RAY",
}

// SymbolForMint returns the known symbol for a mint, or a shortened form
// of the mint address when the token has not been resolved yet.
func SymbolForMint(mint string) string {
	if s, ok := TokenSymbols[mint]; ok {
		return s
	}
	if len(mint) > 8 {
		return mint[:4] + "..." + mint[len(mint)-4:]
	}
	return mint
}
