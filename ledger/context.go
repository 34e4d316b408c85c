package ledger

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dedis/ledger_auctions/pda"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"
)

// AccountInfo is an account as seen by a running instruction. Accounts
// listed twice share the same *Account.
type AccountInfo struct {
	Key      byzcoin.InstanceID
	Signer   bool
	Writable bool
	*Account
}

// txState holds the staged accounts of one transaction.
type txState struct {
	pre      map[byzcoin.InstanceID]Account
	accounts map[byzcoin.InstanceID]*Account
	existed  map[byzcoin.InstanceID]bool
	writable map[byzcoin.InstanceID]bool
	signers  map[byzcoin.InstanceID]bool
}

func newTxState(store Store, keys []byzcoin.InstanceID, writable, signers map[byzcoin.InstanceID]bool) *txState {
	st := &txState{
		pre:      map[byzcoin.InstanceID]Account{},
		accounts: map[byzcoin.InstanceID]*Account{},
		existed:  map[byzcoin.InstanceID]bool{},
		writable: writable,
		signers:  signers,
	}
	for _, k := range keys {
		acc, ok := store.Get(k)
		st.existed[k] = ok
		st.pre[k] = acc.Clone()
		st.accounts[k] = &acc
	}
	return st
}

// changes lists what committing the staged accounts does to the store.
// Accounts drained to a zero balance are removed.
func (st *txState) changes() []StateChange {
	var sc []StateChange
	for k, acc := range st.accounts {
		pre := st.pre[k]
		switch {
		case !st.existed[k] && acc.Balance > 0:
			sc = append(sc, StateChange{Action: Create, Key: k, Account: acc.Clone()})
		case st.existed[k] && acc.Balance == 0:
			sc = append(sc, StateChange{Action: Remove, Key: k})
		case st.existed[k] && !acc.equal(&pre):
			sc = append(sc, StateChange{Action: Update, Key: k, Account: acc.Clone()})
		}
	}
	return sc
}

// Context is what a program sees while executing one instruction: its
// accounts, the transaction's timestamp and rent, and the host operations
// it may call. Between host operations and at the end of the instruction
// the ledger checks that the program only changed what it was allowed to.
type Context struct {
	program   byzcoin.InstanceID
	accounts  []*AccountInfo
	state     *txState
	baseline  map[byzcoin.InstanceID]Account
	timestamp int64
	rent      Rent
	receipt   *Receipt
}

func newContext(program byzcoin.InstanceID, inst Instruction, st *txState, timestamp int64, rent Rent, r *Receipt) *Context {
	c := &Context{
		program:   program,
		state:     st,
		baseline:  map[byzcoin.InstanceID]Account{},
		timestamp: timestamp,
		rent:      rent,
		receipt:   r,
	}
	for _, m := range inst.Accounts {
		c.accounts = append(c.accounts, &AccountInfo{
			Key:      m.Key,
			Signer:   st.signers[m.Key],
			Writable: st.writable[m.Key],
			Account:  st.accounts[m.Key],
		})
		c.baseline[m.Key] = st.accounts[m.Key].Clone()
	}
	return c
}

// ProgramID is the id of the executing program.
func (c *Context) ProgramID() byzcoin.InstanceID { return c.program }

// Accounts returns the instruction's accounts in order.
func (c *Context) Accounts() []*AccountInfo { return c.accounts }

// Account returns the i-th account of the instruction.
func (c *Context) Account(i int) (*AccountInfo, error) {
	if i < 0 || i >= len(c.accounts) {
		return nil, fmt.Errorf("%w: need account %d, got %d", ErrNotEnoughAccounts, i, len(c.accounts))
	}
	return c.accounts[i], nil
}

// UnixTimestamp is the ledger time of the transaction in seconds.
func (c *Context) UnixTimestamp() int64 { return c.timestamp }

// Now is UnixTimestamp as a time.Time.
func (c *Context) Now() time.Time { return time.Unix(c.timestamp, 0) }

// Rent returns the ledger's rent parameters.
func (c *Context) Rent() Rent { return c.rent }

// Logf records a line in the receipt's logs.
func (c *Context) Logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	log.Lvlf3("program %x: %s", c.program[:4], line)
	c.receipt.Logs = append(c.receipt.Logs, "Program log: "+line)
}

// Emit records an event. Events are only delivered if the transaction
// commits.
func (c *Context) Emit(name string, data []byte) {
	c.receipt.Events = append(c.receipt.Events, Event{Program: c.program, Name: name, Data: data})
}

// Transfer moves amount from a system account that signed the transaction
// to any writable account.
func (c *Context) Transfer(from, to *AccountInfo, amount uint64) error {
	if err := c.verify(); err != nil {
		return err
	}
	if !from.Signer {
		return fmt.Errorf("%w: transfer source %x", ErrMissingSignature, from.Key[:])
	}
	if !from.Writable || !to.Writable {
		return fmt.Errorf("%w: transfer between %x and %x", ErrReadonlyModified, from.Key[:], to.Key[:])
	}
	if from.Owner != SystemProgramID || len(from.Data) != 0 {
		return fmt.Errorf("%w: %x", ErrTransferFromNonSystem, from.Key[:])
	}
	if from.Balance < amount {
		return fmt.Errorf("%w: %x has %d, needs %d", ErrInsufficientFunds, from.Key[:], from.Balance, amount)
	}
	from.Balance -= amount
	if to.Balance+amount < to.Balance {
		return fmt.Errorf("%w: %x", ErrBalanceOverflow, to.Key[:])
	}
	to.Balance += amount
	if err := c.checkRent(from); err != nil {
		return err
	}
	if err := c.checkRent(to); err != nil {
		return err
	}
	c.rebase()
	return nil
}

// CreateAccount allocates space bytes in target, funds it to its reserve
// from payer and hands it to the executing program. target must be the
// program address derived from seeds, bump included.
func (c *Context) CreateAccount(payer, target *AccountInfo, space int, seeds [][]byte) error {
	if err := c.verify(); err != nil {
		return err
	}
	addr, err := pda.CreateAddress(seeds, c.program)
	if err != nil || addr != target.Key {
		return fmt.Errorf("%w: %x", ErrInvalidSeeds, target.Key[:])
	}
	if target.Owner != SystemProgramID || len(target.Data) != 0 {
		return fmt.Errorf("%w: %x", ErrAccountInUse, target.Key[:])
	}
	if !payer.Signer {
		return fmt.Errorf("%w: payer %x", ErrMissingSignature, payer.Key[:])
	}
	if !payer.Writable || !target.Writable {
		return fmt.Errorf("%w: create %x", ErrReadonlyModified, target.Key[:])
	}
	need := c.rent.MinimumBalance(space)
	if target.Balance < need {
		diff := need - target.Balance
		if payer.Owner != SystemProgramID || len(payer.Data) != 0 {
			return fmt.Errorf("%w: %x", ErrTransferFromNonSystem, payer.Key[:])
		}
		if payer.Balance < diff {
			return fmt.Errorf("%w: %x has %d, needs %d", ErrInsufficientFunds, payer.Key[:], payer.Balance, diff)
		}
		payer.Balance -= diff
		target.Balance += diff
	}
	target.Data = make([]byte, space)
	target.Owner = c.program
	if err := c.checkRent(payer); err != nil {
		return err
	}
	c.rebase()
	return nil
}

func (c *Context) checkRent(info *AccountInfo) error {
	if info.Balance > 0 && !c.rent.IsExempt(info.Balance, len(info.Data)) {
		return fmt.Errorf("%w: %x holds %d, reserve is %d", ErrInsufficientFundsForRent,
			info.Key[:], info.Balance, c.rent.MinimumBalance(len(info.Data)))
	}
	return nil
}

// verify compares every account of the instruction with its baseline.
func (c *Context) verify() error {
	var before, after uint64
	for k, old := range c.baseline {
		cur := c.state.accounts[k]
		before += old.Balance
		after += cur.Balance
		if cur.equal(&old) {
			continue
		}
		if !c.state.writable[k] {
			return fmt.Errorf("%w: %x", ErrReadonlyModified, k[:])
		}
		if cur.Owner != old.Owner {
			return fmt.Errorf("%w: %x", ErrIllegalOwnerChange, k[:])
		}
		if !bytes.Equal(cur.Data, old.Data) && old.Owner != c.program {
			return fmt.Errorf("%w: %x", ErrExternalDataModified, k[:])
		}
		if cur.Balance < old.Balance && old.Owner != c.program {
			return fmt.Errorf("%w: %x", ErrExternalBalanceSpent, k[:])
		}
		if cur.Balance > 0 && !c.rent.IsExempt(cur.Balance, len(cur.Data)) {
			return fmt.Errorf("%w: %x", ErrInsufficientFundsForRent, k[:])
		}
	}
	if before != after {
		return fmt.Errorf("%w: %d before, %d after", ErrUnbalancedInstruction, before, after)
	}
	return nil
}

// rebase accepts the current state as the new baseline after a host
// operation.
func (c *Context) rebase() {
	for k := range c.baseline {
		c.baseline[k] = c.state.accounts[k].Clone()
	}
}
