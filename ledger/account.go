package ledger

import (
	"bytes"

	"go.dedis.ch/cothority/v3/byzcoin"
)

// SystemProgramID owns every wallet account and is the all-zero address.
var SystemProgramID = byzcoin.InstanceID{}

// Account is an addressed unit of state: a native balance, the program that
// owns it and opaque data only the owner may change.
type Account struct {
	Balance uint64
	Owner   byzcoin.InstanceID
	Data    []byte
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return c
}

func (a *Account) equal(b *Account) bool {
	return a.Balance == b.Balance && a.Owner == b.Owner && bytes.Equal(a.Data, b.Data)
}
