package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultBonus leaves points unchanged. Promotions may raise it.
const DefaultBonus = 1.0

var multipliers = map[string]decimal.Decimal{
	"beach":    decimal.RequireFromString("1.2"),
	"waterway": decimal.RequireFromString("1.2"),
	"park":     decimal.RequireFromString("1.1"),
	"trail":    decimal.RequireFromString("1.1"),
}

// Multiplier returns the location multiplier for a cleanup type.
// Street, urban, unknown and empty types earn 1.0.
func Multiplier(cleanupType string) decimal.Decimal {
	if m, ok := multipliers[strings.ToLower(strings.TrimSpace(cleanupType))]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// CalculatePoints returns round(round(pounds*10) * multiplier * bonus).
// Arithmetic is decimal so 10 lbs at a beach is exactly 120.
func CalculatePoints(pounds float64, cleanupType string, bonus float64) int64 {
	if bonus <= 0 {
		bonus = DefaultBonus
	}

	base := decimal.NewFromFloat(pounds).
		Mul(decimal.NewFromInt(10)).
		Round(0)

	return base.
		Mul(Multiplier(cleanupType)).
		Mul(decimal.NewFromFloat(bonus)).
		Round(0).
		IntPart()
}
