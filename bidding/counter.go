package bidding

import (
	"github.com/dedis/ledger_auctions/ledger"
	"go.dedis.ch/onet/v3/log"
)

// initializeCounter creates the item counter. Accounts: authority (signer,
// writable), counter (writable).
func initializeCounter(ctx *ledger.Context) error {
	authority, err := ctx.Account(0)
	if err != nil {
		return err
	}
	counter, err := ctx.Account(1)
	if err != nil {
		return err
	}
	addr, bump, err := CounterAddress(ctx.ProgramID())
	if err != nil {
		return err
	}
	if addr != counter.Key {
		return ErrCounterAddressMismatch
	}
	if err := ctx.CreateAccount(authority, counter, CounterSpace, withBump(CounterSeeds(), bump)); err != nil {
		return err
	}
	c := &ItemCounter{Authority: authority.Key, Bump: uint32(bump)}
	if err := c.store(counter.Data); err != nil {
		return err
	}
	log.Lvlf2("Item counter created by %x", authority.Key[:8])
	ctx.Logf("item counter initialized")
	return nil
}
