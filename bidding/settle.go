package bidding

import (
	"fmt"

	"github.com/dedis/ledger_auctions/ledger"
	"go.dedis.ch/cothority/v3/byzcoin"
)

// transferItemToWinner closes an expired auction: the escrow pays the
// creator down to its reserve and the item changes owner. Anybody may call
// it. Accounts: authority (signer), auction creator (writable), item
// (writable), escrow (writable).
func transferItemToWinner(ctx *ledger.Context, args byzcoin.Arguments) error {
	id, err := ledger.ArgUint16(args, "item_id")
	if err != nil {
		return err
	}
	newAuthority, err := ledger.ArgAddress(args, "new_authority")
	if err != nil {
		return err
	}
	authority, err := ctx.Account(0)
	if err != nil {
		return err
	}
	creator, err := ctx.Account(1)
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
	if !authority.Signer {
		return fmt.Errorf("%w: settlement by %x", ledger.ErrMissingSignature, authority.Key[:])
	}

	it, err := loadItem(ctx, itemInfo, id)
	if err != nil {
		return err
	}
	if _, err := loadEscrow(ctx, escrowInfo, it); err != nil {
		return err
	}
	if it.Settled {
		return ErrAuctionSettled
	}
	now := ctx.UnixTimestamp()
	if !it.Expired(now) {
		return fmt.Errorf("%w: item %d ends at %d", ErrAuctionNotExpired, id, it.EndsAt())
	}
	if creator.Key != it.Authority {
		return ErrInvalidAuctionCreator
	}
	if newAuthority != it.HighestBidder {
		return ErrInvalidNewAuthority
	}

	// The creator gets everything above the reserve: the highest bid and
	// whatever was credited to the escrow from outside.
	reserve := ctx.Rent().MinimumBalance(len(escrowInfo.Data))
	if escrowInfo.Balance < reserve || escrowInfo.Balance-reserve < it.HighestBid {
		return ErrEscrowNotRentExempt
	}
	paid := escrowInfo.Balance - reserve
	if paid > 0 {
		if !creator.Writable {
			return ErrAuctionCreatorNotWritable
		}
		if creator.Balance+paid < creator.Balance {
			return ErrArithmeticOverflow
		}
		escrowInfo.Balance -= paid
		creator.Balance += paid
	}

	it.Owner = newAuthority
	if !it.HasBids() {
		it.Owner = it.Authority
	}
	it.Settled = true
	it.SettledAt = now
	if err := it.store(itemInfo.Data); err != nil {
		return err
	}
	ctx.Logf("item %d settled, %x wins with %d", id, it.Owner[:8], it.HighestBid)
	return emit(ctx, EventAuctionSettled, &AuctionSettled{
		ItemID:    it.ItemID,
		Creator:   it.Authority,
		Winner:    it.Owner,
		Amount:    it.HighestBid,
		Paid:      paid,
		Timestamp: now,
	})
}
