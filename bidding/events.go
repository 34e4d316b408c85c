package bidding

import (
	"fmt"

	"github.com/dedis/ledger_auctions/ledger"
	"go.dedis.ch/protobuf"
)

// Event names as they appear in receipts.
const (
	EventItemCreated    = "ItemCreated"
	EventBidPlaced      = "BidPlaced"
	EventAuctionSettled = "AuctionSettled"
)

func emit(ctx *ledger.Context, name string, ev interface{}) error {
	buf, err := protobuf.Encode(ev)
	if err != nil {
		return err
	}
	ctx.Emit(name, buf)
	return nil
}

// DecodeEvent returns the *ItemCreated, *BidPlaced or *AuctionSettled held
// by ev. Events of other programs are an error.
func DecodeEvent(ev ledger.Event) (interface{}, error) {
	if ev.Program != ProgramID {
		return nil, fmt.Errorf("event of program %x", ev.Program[:4])
	}
	var v interface{}
	switch ev.Name {
	case EventItemCreated:
		v = &ItemCreated{}
	case EventBidPlaced:
		v = &BidPlaced{}
	case EventAuctionSettled:
		v = &AuctionSettled{}
	default:
		return nil, fmt.Errorf("unknown event %q", ev.Name)
	}
	if err := protobuf.Decode(ev.Data, v); err != nil {
		return nil, err
	}
	return v, nil
}
