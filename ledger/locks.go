package ledger

import (
	"bytes"
	"sort"
	"sync"

	"go.dedis.ch/cothority/v3/byzcoin"
)

// lockTable serializes transactions per account: writers of an account
// exclude each other and its readers. Locks are taken in key order so that
// two transactions can never wait on each other.
type lockTable struct {
	sync.Mutex
	locks map[byzcoin.InstanceID]*sync.RWMutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: map[byzcoin.InstanceID]*sync.RWMutex{}}
}

func (lt *lockTable) get(key byzcoin.InstanceID) *sync.RWMutex {
	lt.Lock()
	defer lt.Unlock()
	m, ok := lt.locks[key]
	if !ok {
		m = &sync.RWMutex{}
		lt.locks[key] = m
	}
	return m
}

// acquire locks every key, for writing when writable says so, and returns
// the function releasing them. keys must not contain duplicates.
func (lt *lockTable) acquire(keys []byzcoin.InstanceID, writable map[byzcoin.InstanceID]bool) func() {
	sorted := append([]byzcoin.InstanceID(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	release := make([]func(), 0, len(sorted))
	for _, k := range sorted {
		m := lt.get(k)
		if writable[k] {
			m.Lock()
			release = append(release, m.Unlock)
		} else {
			m.RLock()
			release = append(release, m.RUnlock)
		}
	}
	return func() {
		for i := len(release) - 1; i >= 0; i-- {
			release[i]()
		}
	}
}
