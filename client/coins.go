package client

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of decimals of one coin.
const Decimals = 9

// FormatCoins renders an amount of the smallest unit in whole coins.
func FormatCoins(amount uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -Decimals).String()
}

// ParseCoins reads an amount of whole coins, like "1.5", into the smallest
// unit.
func ParseCoins(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, errors.New("negative amount")
	}
	units := d.Shift(Decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("%s has more than %d decimals", s, Decimals)
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%s is too large", s)
	}
	return bi.Uint64(), nil
}
