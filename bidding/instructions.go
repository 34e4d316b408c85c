package bidding

import (
	"time"

	"github.com/dedis/ledger_auctions/ledger"
	"go.dedis.ch/cothority/v3/byzcoin"
)

// ItemParams describes a new auction.
type ItemParams struct {
	Name         string
	Description  string
	ImageURL     string
	OpeningPrice uint64
	MinimumBid   uint64
	Duration     time.Duration
}

// NewInitializeCounterInstruction creates the item counter, paid by
// authority.
func NewInitializeCounterInstruction(program, authority byzcoin.InstanceID) (ledger.Instruction, error) {
	counter, _, err := CounterAddress(program)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.NewAccountMeta(authority, true, true),
			ledger.NewAccountMeta(counter, false, true),
		},
		Command: CmdInitializeCounter,
	}, nil
}

// NewInitializeItemInstruction opens an auction that will get itemID,
// which must be the current count of the item counter.
func NewInitializeItemInstruction(program, authority byzcoin.InstanceID, itemID uint16, p ItemParams) (ledger.Instruction, error) {
	counter, _, err := CounterAddress(program)
	if err != nil {
		return ledger.Instruction{}, err
	}
	item, _, err := ItemAddress(program, itemID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	escrow, _, err := EscrowAddress(program, authority, itemID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.NewAccountMeta(authority, true, true),
			ledger.NewAccountMeta(counter, false, true),
			ledger.NewAccountMeta(item, false, true),
			ledger.NewAccountMeta(escrow, false, true),
		},
		Command: CmdInitializeItem,
		Args: byzcoin.Arguments{
			ledger.StringArg("name", p.Name),
			ledger.StringArg("description", p.Description),
			ledger.StringArg("image_url", p.ImageURL),
			ledger.Uint64Arg("opening_price", p.OpeningPrice),
			ledger.Uint64Arg("minimum_bid", p.MinimumBid),
			ledger.Uint64Arg("duration", uint64(p.Duration/time.Second)),
		},
	}, nil
}

// NewBidInstruction bids amount on an item. previousBidder is the highest
// bidder the caller last saw, NoBidder for the first bid.
func NewBidInstruction(program, bidder, creator byzcoin.InstanceID, itemID uint16, amount uint64,
	previousBidder byzcoin.InstanceID) (ledger.Instruction, error) {
	item, _, err := ItemAddress(program, itemID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	escrow, _, err := EscrowAddress(program, creator, itemID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.NewAccountMeta(bidder, true, true),
			ledger.NewAccountMeta(item, false, true),
			ledger.NewAccountMeta(escrow, false, true),
			ledger.NewAccountMeta(previousBidder, false, previousBidder != NoBidder),
		},
		Command: CmdBid,
		Args: byzcoin.Arguments{
			ledger.Uint16Arg("item_id", itemID),
			ledger.Uint64Arg("amount", amount),
		},
	}, nil
}

// NewTransferItemToWinnerInstruction settles an auction. authority signs
// and may be anybody; winner must be the highest bidder, NoBidder if the
// item got no bids.
func NewTransferItemToWinnerInstruction(program, authority, creator byzcoin.InstanceID, itemID uint16,
	winner byzcoin.InstanceID) (ledger.Instruction, error) {
	item, _, err := ItemAddress(program, itemID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	escrow, _, err := EscrowAddress(program, creator, itemID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: program,
		Accounts: []ledger.AccountMeta{
			ledger.NewAccountMeta(authority, true, false),
			ledger.NewAccountMeta(creator, false, true),
			ledger.NewAccountMeta(item, false, true),
			ledger.NewAccountMeta(escrow, false, true),
		},
		Command: CmdTransferToWinner,
		Args: byzcoin.Arguments{
			ledger.Uint16Arg("item_id", itemID),
			ledger.AddressArg("new_authority", winner),
		},
	}, nil
}
