package derive

import (
	"math/big"
)

// USDCDecimals is the number of implied decimals of escrow amounts.
const USDCDecimals = 6

var usdcUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(USDCDecimals), nil)

func parseAmount(value string) *big.Int {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return new(big.Int)
	}
	return amount
}

// ToUSD converts base units to a USD value.
func ToUSD(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(value, usdcUnit).Float64()
	return f
}

// FormatUSD renders base units with two decimals, e.g. 100000000 -> "100.00".
func FormatUSD(value string) string {
	amount := parseAmount(value)
	sign := amount.Sign()
	abs := new(big.Int).Abs(amount)
	text := new(big.Rat).SetFrac(abs, usdcUnit).FloatString(2)
	if sign < 0 {
		return "-" + text
	}
	return text
}
