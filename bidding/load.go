package bidding

import (
	"fmt"

	"github.com/dedis/ledger_auctions/ledger"
)

// owned fails unless info holds data of the program. An account nobody
// created yet is reported as not initialized, anything else as mismatch.
func owned(ctx *ledger.Context, info *ledger.AccountInfo, mismatch error) error {
	if info.Owner == ctx.ProgramID() {
		return nil
	}
	if info.Owner == ledger.SystemProgramID && len(info.Data) == 0 {
		return fmt.Errorf("%w: %x", ErrAccountNotInitialized, info.Key[:])
	}
	return fmt.Errorf("%w: %x is owned by %x", mismatch, info.Key[:], info.Owner[:])
}

func loadCounter(ctx *ledger.Context, info *ledger.AccountInfo) (*ItemCounter, error) {
	if err := owned(ctx, info, ErrCounterAddressMismatch); err != nil {
		return nil, err
	}
	c, err := DecodeItemCounter(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCounterAddressMismatch, err)
	}
	if !matches(info.Key, CounterSeeds(), c.Bump, ctx.ProgramID()) {
		return nil, ErrCounterAddressMismatch
	}
	return c, nil
}

func loadItem(ctx *ledger.Context, info *ledger.AccountInfo, id uint16) (*Item, error) {
	if err := owned(ctx, info, ErrItemAddressMismatch); err != nil {
		return nil, err
	}
	it, err := DecodeItem(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrItemAddressMismatch, err)
	}
	if it.ItemID != uint32(id) || !matches(info.Key, ItemSeeds(id), it.Bump, ctx.ProgramID()) {
		return nil, fmt.Errorf("%w: item %d", ErrItemAddressMismatch, id)
	}
	return it, nil
}

func loadEscrow(ctx *ledger.Context, info *ledger.AccountInfo, it *Item) (*Escrow, error) {
	if err := owned(ctx, info, ErrEscrowAddressMismatch); err != nil {
		return nil, err
	}
	e, err := DecodeEscrow(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEscrowAddressMismatch, err)
	}
	id := uint16(it.ItemID)
	if e.ItemID != it.ItemID || e.Authority != it.Authority ||
		!matches(info.Key, EscrowSeeds(it.Authority, id), e.Bump, ctx.ProgramID()) {
		return nil, fmt.Errorf("%w: item %d", ErrEscrowAddressMismatch, id)
	}
	return e, nil
}
