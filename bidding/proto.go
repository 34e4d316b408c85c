package bidding

import "go.dedis.ch/cothority/v3/byzcoin"

// PROTOSTART
// package bidding;
//
// option java_package = "ch.epfl.dedis.ledgerauctions.proto";
// option java_outer_classname = "BiddingProto";

// ItemCounter hands out item ids. There is one per deployment.
type ItemCounter struct {
	Authority byzcoin.InstanceID
	// ItemCount is the next item id. It reaches MaxItems once every id
	// has been issued, after which no item can be created.
	ItemCount uint32
	Bump      uint32
}

// Item is the state of one auction.
type Item struct {
	Authority     byzcoin.InstanceID // creator, receives the proceeds
	Name          string
	Description   string
	ImageURL      string
	OpeningPrice  uint64
	ItemID        uint32
	HighestBid    uint64
	MinimumBid    uint64
	HighestBidder byzcoin.InstanceID
	CreatedAt     int64
	Duration      int64
	Settled       bool
	SettledAt     int64
	Owner         byzcoin.InstanceID // set at settlement
	Bump          uint32
}

// Escrow holds the highest bid of an item on top of its own reserve.
type Escrow struct {
	Authority byzcoin.InstanceID // mirrors the item creator
	ItemID    uint32
	Bump      uint32
}

// ItemCreated is emitted when an auction opens.
type ItemCreated struct {
	ItemID       uint32
	Authority    byzcoin.InstanceID
	Item         byzcoin.InstanceID
	Escrow       byzcoin.InstanceID
	Name         string
	OpeningPrice uint64
	MinimumBid   uint64
	CreatedAt    int64
	EndsAt       int64
}

// BidPlaced is emitted for every accepted bid. Refund is what the
// previous bidder got back.
type BidPlaced struct {
	ItemID         uint32
	Bidder         byzcoin.InstanceID
	Amount         uint64
	PreviousBidder byzcoin.InstanceID
	Refund         uint64
	Timestamp      int64
}

// AuctionSettled is emitted once an auction is closed. Winner is the
// creator when nobody bid. Paid is what the creator received, the highest
// bid plus any surplus the escrow held.
type AuctionSettled struct {
	ItemID    uint32
	Creator   byzcoin.InstanceID
	Winner    byzcoin.InstanceID
	Amount    uint64
	Timestamp int64
	Paid      uint64
}
