// Package bidding is an on-ledger escrow auction program. Sellers open
// auctions, bidders lock their bids in a per-auction escrow that refunds
// the outbid bidder, and after expiry the winning bid goes to the seller
// and the item to the winner.
package bidding

import (
	"crypto/sha256"
	"fmt"

	"github.com/dedis/ledger_auctions/ledger"
	"go.dedis.ch/cothority/v3/byzcoin"
)

// ProgramID is the address the bidding program is deployed at.
var ProgramID = byzcoin.InstanceID(sha256.Sum256([]byte("bidding")))

// Commands understood by the program.
const (
	CmdInitializeCounter = "initialize_counter"
	CmdInitializeItem    = "initialize_item"
	CmdBid               = "bid"
	CmdTransferToWinner  = "transfer_item_to_winner"
)

// Program is the bidding program. It is stateless, everything lives in
// accounts.
type Program struct{}

// Process dispatches an instruction to its handler.
func (Program) Process(ctx *ledger.Context, inst ledger.Instruction) error {
	switch inst.Command {
	case CmdInitializeCounter:
		return initializeCounter(ctx)
	case CmdInitializeItem:
		return initializeItem(ctx, inst.Args)
	case CmdBid:
		return bid(ctx, inst.Args)
	case CmdTransferToWinner:
		return transferItemToWinner(ctx, inst.Args)
	default:
		return fmt.Errorf("%w: bidding has no %q", ledger.ErrUnknownCommand, inst.Command)
	}
}

// Register deploys the program on l at ProgramID.
func Register(l *ledger.Ledger) error {
	return l.RegisterProgram(ProgramID, Program{})
}
