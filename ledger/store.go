package ledger

import (
	"fmt"
	"sync"

	"go.dedis.ch/cothority/v3/byzcoin"
)

// StateAction says what a StateChange does to an account.
type StateAction int

// The actions a committed transaction can apply.
const (
	Create StateAction = iota + 1
	Update
	Remove
)

func (sa StateAction) String() string {
	switch sa {
	case Create:
		return "Create"
	case Update:
		return "Update"
	case Remove:
		return "Remove"
	}
	return "Unknown"
}

// StateChange is one account write produced by a committed transaction.
type StateChange struct {
	Action  StateAction
	Key     byzcoin.InstanceID
	Account Account
}

// Store holds the committed accounts. Apply must be all-or-nothing.
type Store interface {
	Get(key byzcoin.InstanceID) (Account, bool)
	Apply(changes []StateChange) error
	ForEach(f func(key byzcoin.InstanceID, acc Account) error) error
}

// MemStore keeps accounts in memory.
type MemStore struct {
	sync.RWMutex
	accounts map[byzcoin.InstanceID]Account
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{accounts: map[byzcoin.InstanceID]Account{}}
}

// Get implements Store.
func (ms *MemStore) Get(key byzcoin.InstanceID) (Account, bool) {
	ms.RLock()
	defer ms.RUnlock()
	acc, ok := ms.accounts[key]
	if !ok {
		return Account{}, false
	}
	return acc.Clone(), true
}

// Apply implements Store. All changes are checked before any is written.
func (ms *MemStore) Apply(changes []StateChange) error {
	ms.Lock()
	defer ms.Unlock()
	for _, sc := range changes {
		_, exists := ms.accounts[sc.Key]
		switch sc.Action {
		case Create:
			if exists {
				return fmt.Errorf("cannot create %x: already exists", sc.Key[:])
			}
		case Update, Remove:
			if !exists {
				return fmt.Errorf("cannot %s %x: not found", sc.Action, sc.Key[:])
			}
		default:
			return fmt.Errorf("unknown state action %d", sc.Action)
		}
	}
	for _, sc := range changes {
		if sc.Action == Remove {
			delete(ms.accounts, sc.Key)
			continue
		}
		ms.accounts[sc.Key] = sc.Account.Clone()
	}
	return nil
}

// ForEach implements Store. f must not call back into the store.
func (ms *MemStore) ForEach(f func(key byzcoin.InstanceID, acc Account) error) error {
	ms.RLock()
	defer ms.RUnlock()
	for k, acc := range ms.accounts {
		if err := f(k, acc.Clone()); err != nil {
			return err
		}
	}
	return nil
}
