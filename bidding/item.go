package bidding

import (
	"fmt"
	"math"

	"github.com/dedis/ledger_auctions/ledger"
	"go.dedis.ch/cothority/v3/byzcoin"
)

type itemArgs struct {
	name, description, imageURL string
	openingPrice, minimumBid    uint64
	duration                    uint64
}

func parseItemArgs(args byzcoin.Arguments) (a itemArgs, err error) {
	if a.name, err = ledger.ArgString(args, "name"); err != nil {
		return
	}
	if a.description, err = ledger.ArgString(args, "description"); err != nil {
		return
	}
	if a.imageURL, err = ledger.ArgString(args, "image_url"); err != nil {
		return
	}
	if a.openingPrice, err = ledger.ArgUint64(args, "opening_price"); err != nil {
		return
	}
	if a.minimumBid, err = ledger.ArgUint64(args, "minimum_bid"); err != nil {
		return
	}
	a.duration, err = ledger.ArgUint64(args, "duration")
	return
}

func (a itemArgs) validate(now int64) error {
	switch {
	case len(a.name) > MaxNameLen:
		return ErrNameTooLong
	case len(a.description) > MaxDescriptionLen:
		return ErrDescriptionTooLong
	case len(a.imageURL) > MaxImageURLLen:
		return ErrImageURLTooLong
	case a.openingPrice == 0 || a.minimumBid == 0:
		return ErrInvalidPriceTerms
	case a.duration == 0 || a.duration > uint64(math.MaxInt64-now):
		return ErrInvalidDuration
	}
	return nil
}

// initializeItem opens an auction under the next id of the counter.
// Accounts: authority (signer, writable), counter (writable), item
// (writable), escrow (writable).
func initializeItem(ctx *ledger.Context, args byzcoin.Arguments) error {
	a, err := parseItemArgs(args)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(0)
	if err != nil {
		return err
	}
	counterInfo, err := ctx.Account(1)
	if err != nil {
		return err
	}
	itemInfo, err := ctx.Account(2)
	if err != nil {
		return err
	}
	escrowInfo, err := ctx.Account(3)
	if err != nil {
		return err
	}

	counter, err := loadCounter(ctx, counterInfo)
	if err != nil {
		return err
	}
	if counter.ItemCount >= MaxItems {
		return ErrItemCounterExhausted
	}
	id := uint16(counter.ItemCount)
	now := ctx.UnixTimestamp()
	if err := a.validate(now); err != nil {
		return err
	}

	itemAddr, itemBump, err := ItemAddress(ctx.ProgramID(), id)
	if err != nil {
		return err
	}
	if itemAddr != itemInfo.Key {
		return fmt.Errorf("%w: expected item %d", ErrItemAddressMismatch, id)
	}
	escrowAddr, escrowBump, err := EscrowAddress(ctx.ProgramID(), authority.Key, id)
	if err != nil {
		return err
	}
	if escrowAddr != escrowInfo.Key {
		return fmt.Errorf("%w: expected escrow of item %d", ErrEscrowAddressMismatch, id)
	}

	if err := ctx.CreateAccount(authority, itemInfo, ItemSpace, withBump(ItemSeeds(id), itemBump)); err != nil {
		return err
	}
	if err := ctx.CreateAccount(authority, escrowInfo, EscrowSpace, withBump(EscrowSeeds(authority.Key, id), escrowBump)); err != nil {
		return err
	}

	it := &Item{
		Authority:    authority.Key,
		Name:         a.name,
		Description:  a.description,
		ImageURL:     a.imageURL,
		OpeningPrice: a.openingPrice,
		ItemID:       uint32(id),
		MinimumBid:   a.minimumBid,
		CreatedAt:    now,
		Duration:     int64(a.duration),
		Bump:         uint32(itemBump),
	}
	if err := it.store(itemInfo.Data); err != nil {
		return err
	}
	e := &Escrow{Authority: authority.Key, ItemID: uint32(id), Bump: uint32(escrowBump)}
	if err := e.store(escrowInfo.Data); err != nil {
		return err
	}
	counter.ItemCount++
	if err := counter.store(counterInfo.Data); err != nil {
		return err
	}

	ctx.Logf("item %d created, opening price %d, ends at %d", id, it.OpeningPrice, it.EndsAt())
	return emit(ctx, EventItemCreated, &ItemCreated{
		ItemID:       it.ItemID,
		Authority:    it.Authority,
		Item:         itemInfo.Key,
		Escrow:       escrowInfo.Key,
		Name:         it.Name,
		OpeningPrice: it.OpeningPrice,
		MinimumBid:   it.MinimumBid,
		CreatedAt:    it.CreatedAt,
		EndsAt:       it.EndsAt(),
	})
}
