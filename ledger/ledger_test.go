package ledger

import (
	"crypto/sha256"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3/log"

	"github.com/dedis/ledger_auctions/pda"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

const coin = 1000000000

var testProgramID = byzcoin.InstanceID(sha256.Sum256([]byte("ledger test program")))

// testProgram exercises the host checks, including ones a correct
// program would never trip.
type testProgram struct{}

func (testProgram) Process(ctx *Context, inst Instruction) error {
	a, err := ctx.Account(0)
	if err != nil {
		return err
	}
	switch inst.Command {
	case "create":
		target, err := ctx.Account(1)
		if err != nil {
			return err
		}
		return ctx.CreateAccount(a, target, 16, [][]byte{[]byte("test"), inst.Args.Search("bump")})
	case "write":
		a.Data = []byte("hello, world....")
	case "mint":
		a.Balance++
	case "steal":
		b, err := ctx.Account(1)
		if err != nil {
			return err
		}
		a.Balance -= 10
		b.Balance += 10
	case "emit":
		ctx.Logf("emitting at %d", ctx.UnixTimestamp())
		ctx.Emit("hello", []byte("world"))
	default:
		return ErrUnknownCommand
	}
	return nil
}

type ledgerTest struct {
	l     *Ledger
	clock *ManualClock
	nonce uint64
}

func newLedgerTest(t *testing.T) *ledgerTest {
	lt := &ledgerTest{clock: NewManualClock(time.Unix(1700000000, 0))}
	lt.l = NewLedger(NewMemStore(), lt.clock, DefaultConfig())
	require.NoError(t, lt.l.RegisterProgram(testProgramID, testProgram{}))
	return lt
}

func (lt *ledgerTest) wallet(t *testing.T, amount uint64) (darc.Signer, byzcoin.InstanceID) {
	s := darc.NewSignerEd25519(nil, nil)
	addr, err := AddressOf(s)
	require.NoError(t, err)
	if amount > 0 {
		require.NoError(t, lt.l.Airdrop(addr, amount))
	}
	return s, addr
}

func (lt *ledgerTest) send(t *testing.T, signers []darc.Signer, instrs ...Instruction) (*Receipt, error) {
	lt.nonce++
	tx := NewTransaction(lt.nonce, instrs...)
	require.NoError(t, tx.SignWith(signers...))
	return lt.l.SendTransaction(tx)
}

func (lt *ledgerTest) balance(t *testing.T, key byzcoin.InstanceID) uint64 {
	acc, err := lt.l.GetAccount(key)
	if errors.Is(err, ErrAccountNotFound) {
		return 0
	}
	require.NoError(t, err)
	return acc.Balance
}

func TestLedger_Transfer(t *testing.T) {
	lt := newLedgerTest(t)
	alice, a := lt.wallet(t, 10*coin)
	_, b := lt.wallet(t, coin)

	r, err := lt.send(t, []darc.Signer{alice}, NewTransferInstruction(a, b, 3*coin))
	require.NoError(t, err)
	require.NoError(t, r.Err())
	require.Equal(t, uint64(1), r.Slot)
	require.Equal(t, uint64(7*coin), lt.balance(t, a))
	require.Equal(t, uint64(4*coin), lt.balance(t, b))

	// Draining an account removes it.
	_, err = lt.send(t, []darc.Signer{alice}, NewTransferInstruction(a, b, 7*coin))
	require.NoError(t, err)
	_, err = lt.l.GetAccount(a)
	require.True(t, errors.Is(err, ErrAccountNotFound))
	require.Equal(t, uint64(2), lt.l.Slot())
}

func TestLedger_Signatures(t *testing.T) {
	lt := newLedgerTest(t)
	alice, a := lt.wallet(t, 10*coin)
	bob, b := lt.wallet(t, coin)

	_, err := lt.send(t, []darc.Signer{bob}, NewTransferInstruction(a, b, coin))
	require.True(t, errors.Is(err, ErrMissingSignature))

	tx := NewTransaction(42, NewTransferInstruction(a, b, coin))
	require.NoError(t, tx.SignWith(alice))
	tx.Instructions[0].Args = byzcoin.Arguments{Uint64Arg("amount", 5*coin)}
	_, err = lt.l.SendTransaction(tx)
	require.True(t, errors.Is(err, ErrInvalidSignature))

	_, err = lt.l.SendTransaction(NewTransaction(1))
	require.True(t, errors.Is(err, ErrEmptyTransaction))
	require.Equal(t, uint64(10*coin), lt.balance(t, a))
}

func TestLedger_Atomicity(t *testing.T) {
	lt := newLedgerTest(t)
	alice, a := lt.wallet(t, 10*coin)
	_, b := lt.wallet(t, coin)

	r, err := lt.send(t, []darc.Signer{alice},
		NewTransferInstruction(a, b, 2*coin),
		NewTransferInstruction(a, b, 20*coin))
	require.True(t, errors.Is(err, ErrInsufficientFunds))
	require.Equal(t, ErrInsufficientFunds.Code, r.ErrorCode)
	require.Equal(t, uint64(10*coin), lt.balance(t, a))
	require.Equal(t, uint64(coin), lt.balance(t, b))
	require.Equal(t, uint64(0), lt.l.Slot())
}

func TestLedger_Duplicate(t *testing.T) {
	lt := newLedgerTest(t)
	alice, a := lt.wallet(t, 10*coin)
	bob, b := lt.wallet(t, coin)

	tx := NewTransaction(7, NewTransferInstruction(a, b, coin))
	require.NoError(t, tx.SignWith(alice))
	_, err := lt.l.SendTransaction(tx)
	require.NoError(t, err)
	_, err = lt.l.SendTransaction(tx)
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	require.Equal(t, uint64(9*coin), lt.balance(t, a))

	// Lower nonces are refused as well, other signers are not affected.
	next := NewTransaction(8, NewTransferInstruction(a, b, coin))
	require.NoError(t, next.SignWith(alice))
	_, err = lt.l.SendTransaction(next)
	require.NoError(t, err)
	require.Equal(t, uint64(8*coin), lt.balance(t, a))
	stale := NewTransaction(3, NewTransferInstruction(a, b, coin))
	require.NoError(t, stale.SignWith(alice))
	_, err = lt.l.SendTransaction(stale)
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	require.Equal(t, uint64(8), lt.l.Nonces()[a])
	_, ok := lt.l.Nonces()[b]
	require.False(t, ok)

	// A failed transaction uses up its nonce: replaying it once it would
	// succeed does nothing.
	broke := NewTransaction(100, NewTransferInstruction(b, a, 5*coin))
	require.NoError(t, broke.SignWith(bob))
	r, err := lt.l.SendTransaction(broke)
	require.True(t, errors.Is(err, ErrInsufficientFunds))
	require.Equal(t, uint64(100), r.Nonce)
	require.NoError(t, lt.l.Airdrop(b, 10*coin))
	_, err = lt.l.SendTransaction(broke)
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	require.Equal(t, uint64(8*coin), lt.balance(t, a))

	// Nonces survive a restart of the ledger over the same store.
	restarted := NewLedger(lt.l.store, lt.clock, DefaultConfig())
	restarted.RestoreNonces(lt.l.Nonces())
	_, err = restarted.SendTransaction(tx)
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
	_, err = restarted.SendTransaction(broke)
	require.True(t, errors.Is(err, ErrDuplicateTransaction))
}

func TestLedger_Rent(t *testing.T) {
	lt := newLedgerTest(t)
	alice, a := lt.wallet(t, 10*coin)
	_, b := lt.wallet(t, 0)

	reserve := lt.l.Rent().MinimumBalance(0)
	require.Equal(t, uint64(890880), reserve)

	_, err := lt.send(t, []darc.Signer{alice}, NewTransferInstruction(a, b, reserve-1))
	require.True(t, errors.Is(err, ErrInsufficientFundsForRent))
	_, err = lt.send(t, []darc.Signer{alice}, NewTransferInstruction(a, b, 10*coin-1))
	require.True(t, errors.Is(err, ErrInsufficientFundsForRent))
	_, err = lt.send(t, []darc.Signer{alice}, NewTransferInstruction(a, b, reserve))
	require.NoError(t, err)

	require.NoError(t, lt.l.Airdrop(b, 0))
	_, c := lt.wallet(t, 0)
	require.True(t, errors.Is(lt.l.Airdrop(c, 1), ErrInsufficientFundsForRent))
}

func TestLedger_HostChecks(t *testing.T) {
	lt := newLedgerTest(t)
	alice, a := lt.wallet(t, 10*coin)

	seeds := [][]byte{[]byte("test")}
	target, bump, err := pda.FindAddress(seeds, testProgramID)
	require.NoError(t, err)
	create := Instruction{
		ProgramID: testProgramID,
		Accounts: []AccountMeta{
			NewAccountMeta(a, true, true),
			NewAccountMeta(target, false, true),
		},
		Command: "create",
		Args:    byzcoin.Arguments{{Name: "bump", Value: []byte{bump}}},
	}
	_, err = lt.send(t, []darc.Signer{alice}, create)
	require.NoError(t, err)
	acc, err := lt.l.GetAccount(target)
	require.NoError(t, err)
	require.Equal(t, testProgramID, acc.Owner)
	require.Equal(t, 16, len(acc.Data))
	require.Equal(t, lt.l.Rent().MinimumBalance(16), acc.Balance)
	require.Equal(t, 10*coin-acc.Balance, lt.balance(t, a))

	_, err = lt.send(t, []darc.Signer{alice}, create)
	require.True(t, errors.Is(err, ErrAccountInUse))

	badSeeds := create
	badSeeds.Args = byzcoin.Arguments{{Name: "bump", Value: []byte{bump - 1}}}
	_, err = lt.send(t, []darc.Signer{alice}, badSeeds)
	require.True(t, errors.Is(err, ErrInvalidSeeds))

	call := func(cmd string, metas ...AccountMeta) error {
		_, err := lt.send(t, []darc.Signer{alice}, Instruction{
			ProgramID: testProgramID,
			Accounts:  metas,
			Command:   cmd,
		})
		return err
	}
	require.NoError(t, call("write", NewAccountMeta(target, false, true)))
	require.True(t, errors.Is(call("write", NewAccountMeta(target, false, false)), ErrReadonlyModified))
	require.True(t, errors.Is(call("write", NewAccountMeta(a, true, true)), ErrExternalDataModified))
	require.True(t, errors.Is(call("mint", NewAccountMeta(target, false, true)), ErrUnbalancedInstruction))
	require.True(t, errors.Is(call("steal", NewAccountMeta(a, true, true), NewAccountMeta(target, false, true)),
		ErrExternalBalanceSpent))
	require.True(t, errors.Is(call("steal"), ErrNotEnoughAccounts))

	_, err = lt.send(t, []darc.Signer{alice}, Instruction{ProgramID: byzcoin.NewInstanceID([]byte("nope"))})
	require.True(t, errors.Is(err, ErrUnknownProgram))
	require.True(t, errors.Is(lt.l.RegisterProgram(testProgramID, testProgram{}), ErrProgramExists))
}

func TestLedger_EventsAndObservers(t *testing.T) {
	lt := newLedgerTest(t)
	alice, a := lt.wallet(t, 10*coin)

	var mu sync.Mutex
	var seen []*Receipt
	lt.l.AddObserver(func(r *Receipt) {
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})

	emit := Instruction{
		ProgramID: testProgramID,
		Accounts:  []AccountMeta{NewAccountMeta(a, true, false)},
		Command:   "emit",
	}
	r, err := lt.send(t, []darc.Signer{alice}, emit)
	require.NoError(t, err)
	require.Equal(t, []Event{{Program: testProgramID, Name: "hello", Data: []byte("world")}}, r.Events)
	require.Equal(t, []string{"Program log: emitting at 1700000000"}, r.Logs)
	require.Equal(t, int64(1700000000), r.Timestamp)

	// Events of failed transactions are dropped.
	r, err = lt.send(t, []darc.Signer{alice}, emit, NewTransferInstruction(a, a, 100*coin))
	require.Error(t, err)
	require.Empty(t, r.Events)

	mu.Lock()
	require.Equal(t, 2, len(seen))
	mu.Unlock()
}

func TestLedger_ConcurrentTransfers(t *testing.T) {
	lt := newLedgerTest(t)
	n := 8
	signers := make([]darc.Signer, n)
	addrs := make([]byzcoin.InstanceID, n)
	for i := range signers {
		signers[i], addrs[i] = lt.wallet(t, 100*coin)
	}
	// Observers run before the accounts are released, so receipts of
	// transactions sharing an account arrive in slot order.
	var obsMu sync.Mutex
	var observed []*Receipt
	lt.l.AddObserver(func(r *Receipt) {
		obsMu.Lock()
		observed = append(observed, r)
		obsMu.Unlock()
	})
	from := map[uint64]int{}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tx := NewTransaction(uint64(i*1000+j+1),
					NewTransferInstruction(addrs[i], addrs[(i+1)%n], coin))
				if err := tx.SignWith(signers[i]); err != nil {
					t.Error(err)
					return
				}
				r, err := lt.l.SendTransaction(tx)
				if err != nil {
					t.Error(err)
					continue
				}
				obsMu.Lock()
				from[r.Slot] = i
				obsMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	var total uint64
	for _, addr := range addrs {
		b := lt.balance(t, addr)
		require.Equal(t, uint64(100*coin), b)
		total += b
	}
	require.Equal(t, uint64(n*100*coin), total)
	require.Equal(t, uint64(n*20), lt.l.Slot())

	require.Len(t, observed, n*20)
	for k := 0; k < n; k++ {
		var last uint64
		for _, r := range observed {
			i := from[r.Slot]
			if i != k && (i+1)%n != k {
				continue
			}
			require.True(t, r.Slot > last, "account %d saw slot %d after %d", k, r.Slot, last)
			last = r.Slot
		}
	}
}

func TestErrorFromCode(t *testing.T) {
	err := ErrorFromCode(ErrAccountInUse.Code, "instruction 0: account already in use: 00ff")
	require.True(t, errors.Is(err, ErrAccountInUse))
	require.Equal(t, "instruction 0: account already in use: 00ff", err.Error())
	require.Nil(t, ErrorFromCode(0, ""))
	require.Equal(t, ErrProgramFailed.Code, CodeOf(errors.New("plain")))
	require.Equal(t, uint32(0), CodeOf(nil))

	unknown := ErrorFromCode(12345, "something")
	var e *Error
	require.True(t, errors.As(unknown, &e))
	require.Equal(t, uint32(12345), e.Code)
}

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "ledger")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "ledger.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("[Rent]\nCoinsPerByteYear = 10\n"), 0644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint64(10), cfg.Rent.CoinsPerByteYear)
	require.Equal(t, DefaultRent.ExemptionYears, cfg.Rent.ExemptionYears)

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}
