// Package display derives a human-readable base/quote presentation from a
// pool's immutable stored ratio. The computation is pure and deterministic:
// the same pool always renders the same way.
package display

import (
	"fmt"
	"strings"

	"github.com/fixedratio-labs/pool-indexer/internal/models"
)

// TokenDisplayInfo is the derived presentation of a pool's exchange rate.
// It is computed on demand and never persisted.
type TokenDisplayInfo struct {
	BaseSymbol     string  `json:"base_symbol"`
	BaseName       string  `json:"base_name"`
	QuoteSymbol    string  `json:"quote_symbol"`
	QuoteName      string  `json:"quote_name"`
	BaseLiquidity  uint64  `json:"base_liquidity"`
	QuoteLiquidity uint64  `json:"quote_liquidity"`
	Rate           float64 `json:"rate"`
	Pair           string  `json:"pair"`      // "BASE/QUOTE"
	RateText       string  `json:"rate_text"` // "1 BASE = <rate> QUOTE"
}

// ForPool chooses the display orientation for a pool. The more valuable
// side becomes the base (rate 1); at exactly 1:1 token B is the base.
// A zero numerator or denominator is a data-integrity failure upstream
// and is rejected rather than rendered as Inf/NaN.
func ForPool(pool *models.Pool) (*TokenDisplayInfo, error) {
	return Calculate(
		pool.RatioANumerator, pool.RatioBDenominator,
		pool.TokenASymbol, pool.TokenAName, pool.TokenALiquidity,
		pool.TokenBSymbol, pool.TokenBName, pool.TokenBLiquidity,
	)
}

// Calculate implements the orientation rule on raw ratio values.
func Calculate(
	ratioNum, ratioDen uint64,
	symbolA, nameA string, liquidityA uint64,
	symbolB, nameB string, liquidityB uint64,
) (*TokenDisplayInfo, error) {
	if ratioNum == 0 {
		return nil, fmt.Errorf("ratio numerator must be positive")
	}
	if ratioDen == 0 {
		return nil, fmt.Errorf("ratio denominator must be positive")
	}

	aPerB := float64(ratioNum) / float64(ratioDen)

	info := &TokenDisplayInfo{}
	if aPerB >= 1.0 {
		// Token B is the more valuable side; ties at exactly 1:1 also
		// pick B as base.
		info.BaseSymbol = symbolB
		info.BaseName = nameB
		info.BaseLiquidity = liquidityB
		info.QuoteSymbol = symbolA
		info.QuoteName = nameA
		info.QuoteLiquidity = liquidityA
		info.Rate = aPerB
	} else {
		info.BaseSymbol = symbolA
		info.BaseName = nameA
		info.BaseLiquidity = liquidityA
		info.QuoteSymbol = symbolB
		info.QuoteName = nameB
		info.QuoteLiquidity = liquidityB
		info.Rate = float64(ratioDen) / float64(ratioNum)
	}

	info.Pair = info.BaseSymbol + "/" + info.QuoteSymbol
	info.RateText = fmt.Sprintf("1 %s = %s %s", info.BaseSymbol, FormatRate(info.Rate), info.QuoteSymbol)
	return info, nil
}

// FormatRate renders a rate value with magnitude-dependent precision:
// very large and very small rates use scientific notation, mid-range
// rates use fixed decimals with thousands grouping above 1000.
func FormatRate(rate float64) string {
	switch {
	case rate >= 1_000_000:
		return fmt.Sprintf("%.2e", rate)
	case rate >= 1_000:
		return groupThousands(fmt.Sprintf("%.2f", rate))
	case rate >= 1:
		return fmt.Sprintf("%.2f", rate)
	case rate >= 0.001:
		return fmt.Sprintf("%.6f", rate)
	default:
		return fmt.Sprintf("%.2e", rate)
	}
}

// groupThousands inserts comma separators into the integer part of a
// fixed-decimal string.
func groupThousands(s string) string {
	intPart, fracPart, _ := strings.Cut(s, ".")

	n := len(intPart)
	if n <= 3 {
		if fracPart != "" {
			return intPart + "." + fracPart
		}
		return intPart
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}
