package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

func TestCalculateTieBreakPicksTokenB(t *testing.T) {
	// At exactly 1:1 token B is the base.
	info, err := Calculate(1, 1, "X", "Token X", 100, "Y", "Token Y", 200)
	require.NoError(t, err)

	assert.Equal(t, "Y", info.BaseSymbol)
	assert.Equal(t, "X", info.QuoteSymbol)
	assert.Equal(t, "Y/X", info.Pair)
	assert.Equal(t, uint64(200), info.BaseLiquidity)
	assert.Equal(t, uint64(100), info.QuoteLiquidity)
	assert.Equal(t, 1.0, info.Rate)
}

func TestCalculateTokenAAsBase(t *testing.T) {
	// aPerB = 1/4 < 1, so token A is the base and the rate is bPerA.
	info, err := Calculate(1, 4, "SOL", "Solana", 10, "BTC", "Bitcoin", 40)
	require.NoError(t, err)

	assert.Equal(t, "SOL", info.BaseSymbol)
	assert.Equal(t, "BTC", info.QuoteSymbol)
	assert.Equal(t, "SOL/BTC", info.Pair)
	assert.Equal(t, 4.0, info.Rate)
	assert.Equal(t, uint64(10), info.BaseLiquidity)
	assert.Equal(t, "1 SOL = 4.00 BTC", info.RateText)
}

func TestCalculateEndToEnd(t *testing.T) {
	// 10000 BTC per USDC: USDC is the base.
	pool := &models.Pool{
		RatioANumerator:   10000,
		RatioBDenominator: 1,
		TokenASymbol:      "BTC",
		TokenAName:        "Bitcoin",
		TokenBSymbol:      "USDC",
		TokenBName:        "USD Coin",
		TokenALiquidity:   1_000_000,
		TokenBLiquidity:   100,
	}

	info, err := ForPool(pool)
	require.NoError(t, err)

	assert.Equal(t, "USDC", info.BaseSymbol)
	assert.Equal(t, "BTC", info.QuoteSymbol)
	assert.Equal(t, "USDC/BTC", info.Pair)
	assert.Equal(t, "1 USDC = 10,000.00 BTC", info.RateText)
	assert.Equal(t, uint64(100), info.BaseLiquidity)
	assert.Equal(t, uint64(1_000_000), info.QuoteLiquidity)
}

func TestCalculateRejectsZeroRatio(t *testing.T) {
	_, err := Calculate(0, 1, "A", "", 0, "B", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numerator")

	_, err = Calculate(1, 0, "A", "", 0, "B", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denominator")
}

func TestFormatRateBands(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"grouped thousands", 12345.6, "12,345.60"},
		{"millions grouped", 123456.789, "123,456.79"},
		{"scientific large", 2_500_000, "2.50e+06"},
		{"plain two decimals", 3.14159, "3.14"},
		{"exactly one", 1.0, "1.00"},
		{"six decimals", 0.005, "0.005000"},
		{"six decimals boundary", 0.001, "0.001000"},
		{"scientific sub-milli", 0.0005, "5.00e-04"},
		{"scientific small", 0.0000005, "5.00e-07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.rate))
		})
	}
}

func TestFormatRateSentence(t *testing.T) {
	info, err := Calculate(123456, 10, "AAA", "", 0, "BBB", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "1 BBB = 12,345.60 AAA", info.RateText)
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "1,000.00", groupThousands("1000.00"))
	assert.Equal(t, "999", groupThousands("999"))
	assert.Equal(t, "1,234,567.89", groupThousands("1234567.89"))
}
