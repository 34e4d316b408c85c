package ledger

import (
	"github.com/BurntSushi/toml"
)

// AccountStorageOverhead is charged on top of the data length of every
// account when computing its reserve.
const AccountStorageOverhead = 128

// Rent fixes the minimum balance an account must retain to stay valid.
type Rent struct {
	CoinsPerByteYear uint64
	ExemptionYears   uint64
}

// DefaultRent matches the usual public network parameters.
var DefaultRent = Rent{CoinsPerByteYear: 3480, ExemptionYears: 2}

// MinimumBalance is the reserve of an account holding dataLen bytes.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (AccountStorageOverhead + uint64(dataLen)) * r.CoinsPerByteYear * r.ExemptionYears
}

// IsExempt reports whether balance covers the reserve for dataLen bytes.
func (r Rent) IsExempt(balance uint64, dataLen int) bool {
	return balance >= r.MinimumBalance(dataLen)
}

// Config holds the tunable parameters of a ledger.
type Config struct {
	Rent Rent
}

// DefaultConfig returns the configuration used when nothing is given.
func DefaultConfig() Config {
	return Config{Rent: DefaultRent}
}

// LoadConfig reads a TOML file on top of DefaultConfig, e.g.
//
//	[Rent]
//	CoinsPerByteYear = 3480
//	ExemptionYears = 2
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
