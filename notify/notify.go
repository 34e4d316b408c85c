// Package notify forwards the events of the bidding program to NATS, where
// off-ledger listeners such as a listing mirror pick them up.
package notify

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"

	"github.com/dedis/ledger_auctions/bidding"
	"github.com/dedis/ledger_auctions/client"
	"github.com/dedis/ledger_auctions/ledger"
)

// SubjectPrefix is followed by the item id in every subject, so
// "auction.events.*" receives everything.
const SubjectPrefix = "auction.events"

// Message types.
const (
	TypeItemCreated    = "item_created"
	TypeBidPlaced      = "bid_placed"
	TypeAuctionSettled = "auction_settled"
)

// Conn publishes raw messages. *nats.Conn implements it.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON published for one event. Amounts are in the smallest
// unit, the *Coins fields repeat them in whole coins for display.
type Message struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	ItemID    uint16 `json:"item_id"`
	TxID      string `json:"tx_id"`
	Slot      uint64 `json:"slot"`
	Timestamp int64  `json:"timestamp"`

	Creator        string `json:"creator,omitempty"`
	Item           string `json:"item,omitempty"`
	Escrow         string `json:"escrow,omitempty"`
	Name           string `json:"name,omitempty"`
	OpeningPrice   uint64 `json:"opening_price,omitempty"`
	MinimumBid     uint64 `json:"minimum_bid,omitempty"`
	EndsAt         int64  `json:"ends_at,omitempty"`
	Bidder         string `json:"bidder,omitempty"`
	PreviousBidder string `json:"previous_bidder,omitempty"`
	Winner         string `json:"winner,omitempty"`
	Amount         uint64 `json:"amount,omitempty"`
	AmountCoins    string `json:"amount_coins,omitempty"`
	Refund         uint64 `json:"refund,omitempty"`
	RefundCoins    string `json:"refund_coins,omitempty"`
	Paid           uint64 `json:"paid,omitempty"`
	PaidCoins      string `json:"paid_coins,omitempty"`
}

// Subject is where messages about an item are published.
func Subject(itemID uint16) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, itemID)
}

func addr(id byzcoin.InstanceID) string {
	if id == bidding.NoBidder {
		return ""
	}
	return hex.EncodeToString(id[:])
}

// Messages converts the bidding events of a committed receipt. Failed
// transactions and events of other programs give nothing.
func Messages(r *ledger.Receipt) []*Message {
	if r.ErrorCode != 0 {
		return nil
	}
	var msgs []*Message
	for _, ev := range r.Events {
		if ev.Program != bidding.ProgramID {
			continue
		}
		v, err := bidding.DecodeEvent(ev)
		if err != nil {
			log.Warn("Skipping undecodable event:", err)
			continue
		}
		m := &Message{
			EventID:   uuid.New().String(),
			TxID:      hex.EncodeToString(r.TxID),
			Slot:      r.Slot,
			Timestamp: r.Timestamp,
		}
		switch e := v.(type) {
		case *bidding.ItemCreated:
			m.Type = TypeItemCreated
			m.ItemID = uint16(e.ItemID)
			m.Creator = addr(e.Authority)
			m.Item = addr(e.Item)
			m.Escrow = addr(e.Escrow)
			m.Name = e.Name
			m.OpeningPrice = e.OpeningPrice
			m.MinimumBid = e.MinimumBid
			m.EndsAt = e.EndsAt
		case *bidding.BidPlaced:
			m.Type = TypeBidPlaced
			m.ItemID = uint16(e.ItemID)
			m.Bidder = addr(e.Bidder)
			m.PreviousBidder = addr(e.PreviousBidder)
			m.Amount = e.Amount
			m.AmountCoins = client.FormatCoins(e.Amount)
			if e.Refund > 0 {
				m.Refund = e.Refund
				m.RefundCoins = client.FormatCoins(e.Refund)
			}
		case *bidding.AuctionSettled:
			m.Type = TypeAuctionSettled
			m.ItemID = uint16(e.ItemID)
			m.Creator = addr(e.Creator)
			m.Winner = addr(e.Winner)
			m.Amount = e.Amount
			m.AmountCoins = client.FormatCoins(e.Amount)
			if e.Paid > 0 {
				m.Paid = e.Paid
				m.PaidCoins = client.FormatCoins(e.Paid)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// Notifier publishes the messages of every receipt it observes.
type Notifier struct {
	conn Conn
}

// New returns a notifier publishing on conn.
func New(conn Conn) *Notifier {
	return &Notifier{conn: conn}
}

// Observe publishes the messages of r. It has the signature of a
// ledger.Observer. Publishing failures are logged and otherwise ignored,
// the transaction is committed already.
func (n *Notifier) Observe(r *ledger.Receipt) {
	for _, m := range Messages(r) {
		buf, err := json.Marshal(m)
		if err != nil {
			log.Error("Couldn't marshal event:", err)
			continue
		}
		if err := n.conn.Publish(Subject(m.ItemID), buf); err != nil {
			log.Warnf("Couldn't publish %s of item %d: %v", m.Type, m.ItemID, err)
			continue
		}
		log.Lvlf3("Published %s of item %d", m.Type, m.ItemID)
	}
}

// Connect dials a NATS server.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("escrow-auctions"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second))
}

// Decode parses a published message.
func Decode(data []byte) (*Message, error) {
	m := &Message{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if m.EventID == "" || m.Type == "" {
		return nil, fmt.Errorf("not an auction event: %q", data)
	}
	return m, nil
}

// Subscribe calls h with every message published for any item.
func Subscribe(nc *nats.Conn, h func(*Message)) (*nats.Subscription, error) {
	return nc.Subscribe(SubjectPrefix+".*", func(msg *nats.Msg) {
		m, err := Decode(msg.Data)
		if err != nil {
			log.Warn("Dropping message on", msg.Subject, ":", err)
			return
		}
		h(m)
	})
}
