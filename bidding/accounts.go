package bidding

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/protobuf"
)

// Account layout: 8-byte discriminator, 4-byte little-endian payload
// length, protobuf payload, zero padding up to the allocated space.

// Allocated space of each account kind, fixed at creation.
const (
	CounterSpace = 128
	ItemSpace    = 2048
	EscrowSpace  = 128
)

// Limits on the display metadata of an item.
const (
	MaxNameLen        = 200
	MaxDescriptionLen = 600
	MaxImageURLLen    = 500
)

// NoBidder is the highest bidder of an item without bids.
var NoBidder = byzcoin.InstanceID{}

// MaxItems is the number of distinct 16-bit item ids.
const MaxItems = math.MaxUint16 + 1

const headerLen = 8 + 4

func discriminator(name string) []byte {
	h := sha256.Sum256([]byte("account:" + name))
	return h[:8]
}

var (
	counterDiscriminator = discriminator("ItemCounter")
	itemDiscriminator    = discriminator("Item")
	escrowDiscriminator  = discriminator("Escrow")
)

// EndsAt is the unix time from which bids are refused and settlement is
// possible.
func (it *Item) EndsAt() int64 {
	return it.CreatedAt + it.Duration
}

// Expired reports whether the auction has ended at unix time now.
func (it *Item) Expired(now int64) bool {
	return now >= it.EndsAt()
}

// HasBids reports whether a bid has been accepted.
func (it *Item) HasBids() bool {
	return it.HighestBid > 0
}

// NextMinimumBid is the lowest amount the next bid may offer.
func (it *Item) NextMinimumBid() (uint64, error) {
	if !it.HasBids() {
		return it.OpeningPrice, nil
	}
	next := it.HighestBid + it.MinimumBid
	if next < it.HighestBid {
		return 0, ErrArithmeticOverflow
	}
	return next, nil
}

func encodeAccount(disc []byte, v interface{}, data []byte) error {
	buf, err := protobuf.Encode(v)
	if err != nil {
		return err
	}
	if headerLen+len(buf) > len(data) {
		return fmt.Errorf("account needs %d bytes, has %d", headerLen+len(buf), len(data))
	}
	copy(data, disc)
	binary.LittleEndian.PutUint32(data[8:], uint32(len(buf)))
	n := copy(data[headerLen:], buf)
	for i := headerLen + n; i < len(data); i++ {
		data[i] = 0
	}
	return nil
}

func decodeAccount(disc []byte, data []byte, v interface{}) error {
	if len(data) < headerLen || !bytes.Equal(data[:8], disc) {
		return ErrAccountNotInitialized
	}
	n := binary.LittleEndian.Uint32(data[8:headerLen])
	if uint64(n) > uint64(len(data)-headerLen) {
		return errors.New("account payload longer than its data")
	}
	return protobuf.Decode(data[headerLen:headerLen+int(n)], v)
}

// DecodeItemCounter reads an item counter from account data.
func DecodeItemCounter(data []byte) (*ItemCounter, error) {
	c := &ItemCounter{}
	if err := decodeAccount(counterDiscriminator, data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DecodeItem reads an item from account data.
func DecodeItem(data []byte) (*Item, error) {
	it := &Item{}
	if err := decodeAccount(itemDiscriminator, data, it); err != nil {
		return nil, err
	}
	return it, nil
}

// DecodeEscrow reads an escrow from account data.
func DecodeEscrow(data []byte) (*Escrow, error) {
	e := &Escrow{}
	if err := decodeAccount(escrowDiscriminator, data, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *ItemCounter) store(data []byte) error { return encodeAccount(counterDiscriminator, c, data) }
func (it *Item) store(data []byte) error       { return encodeAccount(itemDiscriminator, it, data) }
func (e *Escrow) store(data []byte) error      { return encodeAccount(escrowDiscriminator, e, data) }
