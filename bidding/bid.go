package bidding

import (
	"fmt"

	"github.com/dedis/ledger_auctions/ledger"
	"go.dedis.ch/cothority/v3/byzcoin"
)

// bid places amount on an item, refunding the bidder it replaces.
// Accounts: authority (signer, writable), item (writable), escrow
// (writable), previous bidder (writable unless the item has no bids).
func bid(ctx *ledger.Context, args byzcoin.Arguments) error {
	id, err := ledger.ArgUint16(args, "item_id")
	if err != nil {
		return err
	}
	amount, err := ledger.ArgUint64(args, "amount")
	if err != nil {
		return err
	}
	authority, err := ctx.Account(0)
	if err != nil {
		return err
	}
	itemInfo, err := ctx.Account(1)
	if err != nil {
		return err
	}
	escrowInfo, err := ctx.Account(2)
	if err != nil {
		return err
	}
	previous, err := ctx.Account(3)
	if err != nil {
		return err
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
	if it.Expired(ctx.UnixTimestamp()) {
		return fmt.Errorf("%w: item %d ended at %d", ErrAuctionExpired, id, it.EndsAt())
	}
	if previous.Key != it.HighestBidder {
		return ErrInvalidPreviousBidder
	}
	floor, err := it.NextMinimumBid()
	if err != nil {
		return err
	}
	if amount < floor {
		return fmt.Errorf("%w: %d offered, at least %d needed", ErrBidTooLow, amount, floor)
	}

	reserve := ctx.Rent().MinimumBalance(len(escrowInfo.Data))
	var refund uint64
	if it.HasBids() {
		if !previous.Writable {
			return ErrPreviousBidderNotWritable
		}
		if escrowInfo.Balance < reserve+it.HighestBid {
			return ErrEscrowNotRentExempt
		}
		if previous.Balance+it.HighestBid < previous.Balance {
			return ErrArithmeticOverflow
		}
		escrowInfo.Balance -= it.HighestBid
		previous.Balance += it.HighestBid
		refund = it.HighestBid
	}
	if err := ctx.Transfer(authority, escrowInfo, amount); err != nil {
		return err
	}
	// Outside credits to the escrow stay on top of the bid until settlement.
	if escrowInfo.Balance < reserve || escrowInfo.Balance-reserve < amount {
		return ErrEscrowNotRentExempt
	}

	it.HighestBid = amount
	it.HighestBidder = authority.Key
	if err := it.store(itemInfo.Data); err != nil {
		return err
	}
	ctx.Logf("item %d: bid of %d by %x", id, amount, authority.Key[:8])
	return emit(ctx, EventBidPlaced, &BidPlaced{
		ItemID:         it.ItemID,
		Bidder:         authority.Key,
		Amount:         amount,
		PreviousBidder: previous.Key,
		Refund:         refund,
		Timestamp:      ctx.UnixTimestamp(),
	})
}
