// Package ledger is a small host ledger for on-ledger programs. It keeps
// accounts, verifies signed transactions and runs their instructions
// atomically: either every instruction succeeds and all account changes are
// committed together, or nothing is. Transactions writing the same account
// are serialized, others run in parallel.
package ledger

import (
	"fmt"
	"sync"

	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"
)

// Program is the entry point of an on-ledger program. Process executes one
// instruction; returning an error aborts the whole transaction.
type Program interface {
	Process(ctx *Context, inst Instruction) error
}

// Event is a structured record emitted by a program.
type Event struct {
	Program byzcoin.InstanceID
	Name    string
	Data    []byte
}

// Receipt is the outcome of a transaction.
type Receipt struct {
	TxID      []byte
	Slot      uint64
	Timestamp int64
	Logs      []string
	Events    []Event
	ErrorCode uint32
	Error     string
	// Nonce is the nonce the transaction used up, 0 if it was rejected
	// before execution.
	Nonce uint64
}

// Err rebuilds the error of a failed transaction, nil if it committed.
func (r *Receipt) Err() error {
	return ErrorFromCode(r.ErrorCode, r.Error)
}

// Observer is called with the receipt of every processed transaction. It
// runs before the accounts of the transaction are unlocked, so receipts
// touching the same account are observed in slot order.
type Observer func(r *Receipt)

// Ledger runs programs over a Store.
type Ledger struct {
	store Store
	clock Clock
	rent  Rent
	locks *lockTable

	programsMu sync.RWMutex
	programs   map[byzcoin.InstanceID]Program

	mu     sync.Mutex
	slot   uint64
	nonces map[byzcoin.InstanceID]uint64

	observersMu sync.RWMutex
	observers   []Observer
}

// NewLedger returns a ledger with the system program registered.
func NewLedger(store Store, clock Clock, cfg Config) *Ledger {
	l := &Ledger{
		store:    store,
		clock:    clock,
		rent:     cfg.Rent,
		locks:    newLockTable(),
		programs: map[byzcoin.InstanceID]Program{SystemProgramID: systemProgram{}},
		nonces:   map[byzcoin.InstanceID]uint64{},
	}
	return l
}

// RegisterProgram makes a program callable at id.
func (l *Ledger) RegisterProgram(id byzcoin.InstanceID, p Program) error {
	l.programsMu.Lock()
	defer l.programsMu.Unlock()
	if _, ok := l.programs[id]; ok {
		return fmt.Errorf("%w: %x", ErrProgramExists, id[:])
	}
	l.programs[id] = p
	return nil
}

func (l *Ledger) program(id byzcoin.InstanceID) (Program, bool) {
	l.programsMu.RLock()
	defer l.programsMu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

// AddObserver registers o for all future receipts.
func (l *Ledger) AddObserver(o Observer) {
	l.observersMu.Lock()
	l.observers = append(l.observers, o)
	l.observersMu.Unlock()
}

// Rent returns the rent parameters of the ledger.
func (l *Ledger) Rent() Rent { return l.rent }

// Slot is the number of committed transactions.
func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

// GetAccount returns a copy of a committed account.
func (l *Ledger) GetAccount(key byzcoin.InstanceID) (*Account, error) {
	acc, ok := l.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrAccountNotFound, key[:])
	}
	return &acc, nil
}

// Airdrop credits amount to a system account, creating it if needed.
func (l *Ledger) Airdrop(key byzcoin.InstanceID, amount uint64) error {
	unlock := l.locks.acquire([]byzcoin.InstanceID{key}, map[byzcoin.InstanceID]bool{key: true})
	defer unlock()
	acc, ok := l.store.Get(key)
	if acc.Owner != SystemProgramID || len(acc.Data) != 0 {
		return fmt.Errorf("%w: airdrop to %x", ErrTransferFromNonSystem, key[:])
	}
	if acc.Balance+amount < acc.Balance {
		return fmt.Errorf("%w: %x", ErrBalanceOverflow, key[:])
	}
	acc.Balance += amount
	if !l.rent.IsExempt(acc.Balance, 0) {
		return fmt.Errorf("%w: airdrop of %d to %x", ErrInsufficientFundsForRent, amount, key[:])
	}
	action := Update
	if !ok {
		action = Create
	}
	log.Lvlf3("Airdrop of %d to %x", amount, key[:])
	return l.store.Apply([]StateChange{{Action: action, Key: key, Account: acc}})
}

// Nonces returns the last nonce used by every signer.
func (l *Ledger) Nonces() map[byzcoin.InstanceID]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := make(map[byzcoin.InstanceID]uint64, len(l.nonces))
	for k, v := range l.nonces {
		n[k] = v
	}
	return n
}

// RestoreNonces raises the last nonces of signers to the given ones, as
// saved from Nonces by a previous run.
func (l *Ledger) RestoreNonces(n map[byzcoin.InstanceID]uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range n {
		if v > l.nonces[k] {
			l.nonces[k] = v
		}
	}
}

// nonceFree tells whether nonce is above the last nonce of every signer.
// l.mu must be held.
func (l *Ledger) nonceFree(nonce uint64, signers map[byzcoin.InstanceID]bool) bool {
	for s := range signers {
		if nonce <= l.nonces[s] {
			return false
		}
	}
	return true
}

// useNonce records nonce for every signer, if it is still free. l.mu must
// be held.
func (l *Ledger) useNonce(nonce uint64, signers map[byzcoin.InstanceID]bool, r *Receipt) bool {
	if !l.nonceFree(nonce, signers) {
		return false
	}
	for s := range signers {
		l.nonces[s] = nonce
	}
	r.Nonce = nonce
	return true
}

// SendTransaction verifies and executes tx. The returned receipt is never
// nil; the error is the same as receipt.Err().
//
// Every signer must sign with a nonce above the one of its previous
// transaction. A transaction that fails after its signatures were checked
// still uses up its nonce, so it cannot be replayed later either.
func (l *Ledger) SendTransaction(tx *Transaction) (*Receipt, error) {
	r := &Receipt{}
	release, err := l.process(tx, r)
	defer release()
	if err != nil {
		r.Events = nil
		r.ErrorCode = CodeOf(err)
		r.Error = err.Error()
		log.Lvl2("Transaction failed:", err)
	}
	l.observersMu.RLock()
	obs := append([]Observer(nil), l.observers...)
	l.observersMu.RUnlock()
	for _, o := range obs {
		o(r)
	}
	return r, err
}

func noop() {}

// process runs tx and returns the function unlocking its accounts.
func (l *Ledger) process(tx *Transaction, r *Receipt) (func(), error) {
	if len(tx.Instructions) == 0 {
		return noop, ErrEmptyTransaction
	}
	msg, signers, err := tx.verify()
	r.TxID = msg
	if err != nil {
		return noop, err
	}
	if len(signers) == 0 {
		return noop, fmt.Errorf("%w: transaction has no signature", ErrMissingSignature)
	}

	var keys []byzcoin.InstanceID
	writable := map[byzcoin.InstanceID]bool{}
	seen := map[byzcoin.InstanceID]bool{}
	for _, inst := range tx.Instructions {
		for _, m := range inst.Accounts {
			if !seen[m.Key] {
				seen[m.Key] = true
				keys = append(keys, m.Key)
			}
			if m.Writable {
				writable[m.Key] = true
			}
		}
	}
	release := l.locks.acquire(keys, writable)

	l.mu.Lock()
	free := l.nonceFree(tx.Nonce, signers)
	l.mu.Unlock()
	if !free {
		return release, fmt.Errorf("%w: nonce %d", ErrDuplicateTransaction, tx.Nonce)
	}

	r.Timestamp = l.clock.Now().Unix()
	st := newTxState(l.store, keys, writable, signers)
	for i, inst := range tx.Instructions {
		if err = l.execute(i, inst, st, r); err != nil {
			break
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.useNonce(tx.Nonce, signers, r) {
		return release, fmt.Errorf("%w: nonce %d", ErrDuplicateTransaction, tx.Nonce)
	}
	if err != nil {
		return release, err
	}
	if err := l.store.Apply(st.changes()); err != nil {
		return release, fmt.Errorf("committing transaction: %w", err)
	}
	l.slot++
	r.Slot = l.slot
	log.Lvlf3("Committed transaction %x in slot %d", msg[:8], r.Slot)
	return release, nil
}

func (l *Ledger) execute(i int, inst Instruction, st *txState, r *Receipt) error {
	p, ok := l.program(inst.ProgramID)
	if !ok {
		return fmt.Errorf("instruction %d: %w: %x", i, ErrUnknownProgram, inst.ProgramID[:])
	}
	ctx := newContext(inst.ProgramID, inst, st, r.Timestamp, l.rent, r)
	if err := p.Process(ctx, inst); err != nil {
		return fmt.Errorf("instruction %d: %w", i, err)
	}
	if err := ctx.verify(); err != nil {
		return fmt.Errorf("instruction %d: %w", i, err)
	}
	return nil
}
