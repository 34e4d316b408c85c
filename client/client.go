// Package client talks to the bidding program through any backend that can
// run transactions and read accounts: an in-process ledger or a remote
// node.
package client

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3/log"

	"github.com/dedis/ledger_auctions/bidding"
	"github.com/dedis/ledger_auctions/ledger"
)

// Backend runs transactions and serves committed accounts.
type Backend interface {
	SendTransaction(tx *ledger.Transaction) (*ledger.Receipt, error)
	GetAccount(key byzcoin.InstanceID) (*ledger.Account, error)
}

// DefaultMaxRetries is how often a stale view is refreshed before giving up.
const DefaultMaxRetries = 3

// Client acts on the bidding program on behalf of one wallet.
type Client struct {
	backend Backend
	program byzcoin.InstanceID
	signer  darc.Signer
	address byzcoin.InstanceID
	nonce   uint64

	// Rent must match the ledger's, it is used to tell the held amount of an
	// escrow from its reserve.
	Rent ledger.Rent
	// MaxRetries bounds the retries of CreateItem and Bid after a
	// concurrent change.
	MaxRetries int
}

// NewClient returns a client signing with signer.
func NewClient(b Backend, program byzcoin.InstanceID, signer darc.Signer) (*Client, error) {
	addr, err := ledger.AddressOf(signer)
	if err != nil {
		return nil, err
	}
	return &Client{
		backend:    b,
		program:    program,
		signer:     signer,
		address:    addr,
		nonce:      uint64(time.Now().UnixNano()),
		Rent:       ledger.DefaultRent,
		MaxRetries: DefaultMaxRetries,
	}, nil
}

// Address is the wallet of the client.
func (c *Client) Address() byzcoin.InstanceID { return c.address }

// Balance returns the coins of the client's wallet.
func (c *Client) Balance() (uint64, error) {
	acc, err := c.backend.GetAccount(c.address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// send signs with the next nonce of the client. The ledger refuses nonces
// below the last one it saw from the wallet, so concurrent sends through one
// client can fail with ledger.ErrDuplicateTransaction.
func (c *Client) send(instrs ...ledger.Instruction) (*ledger.Receipt, error) {
	tx := ledger.NewTransaction(atomic.AddUint64(&c.nonce, 1), instrs...)
	if err := tx.SignWith(c.signer); err != nil {
		return nil, err
	}
	return c.backend.SendTransaction(tx)
}

// Transfer sends amount coins from the client's wallet to another one.
func (c *Client) Transfer(to byzcoin.InstanceID, amount uint64) error {
	_, err := c.send(ledger.NewTransferInstruction(c.address, to, amount))
	return err
}

// InitializeCounter creates the item counter. It fails if the counter
// already exists.
func (c *Client) InitializeCounter() error {
	inst, err := bidding.NewInitializeCounterInstruction(c.program, c.address)
	if err != nil {
		return err
	}
	_, err = c.send(inst)
	return err
}

// EnsureCounter creates the item counter unless somebody already did.
func (c *Client) EnsureCounter() error {
	_, err := c.Counter()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		return err
	}
	err = c.InitializeCounter()
	if errors.Is(err, ledger.ErrAccountInUse) {
		return nil
	}
	return err
}

func (c *Client) account(key byzcoin.InstanceID) (*ledger.Account, error) {
	acc, err := c.backend.GetAccount(key)
	if err != nil {
		return nil, err
	}
	if acc.Owner != c.program {
		return nil, fmt.Errorf("%w: %x", bidding.ErrAccountNotInitialized, key[:])
	}
	return acc, nil
}

// Counter reads the item counter.
func (c *Client) Counter() (*bidding.ItemCounter, error) {
	addr, _, err := bidding.CounterAddress(c.program)
	if err != nil {
		return nil, err
	}
	acc, err := c.account(addr)
	if err != nil {
		return nil, err
	}
	return bidding.DecodeItemCounter(acc.Data)
}

// Item reads an auction.
func (c *Client) Item(id uint16) (*bidding.Item, error) {
	addr, _, err := bidding.ItemAddress(c.program, id)
	if err != nil {
		return nil, err
	}
	acc, err := c.account(addr)
	if err != nil {
		return nil, err
	}
	return bidding.DecodeItem(acc.Data)
}

// Items lists every auction created so far.
func (c *Client) Items() ([]*bidding.Item, error) {
	counter, err := c.Counter()
	if err != nil {
		return nil, err
	}
	var items []*bidding.Item
	for id := uint32(0); id < counter.ItemCount; id++ {
		it, err := c.Item(uint16(id))
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", id, err)
		}
		items = append(items, it)
	}
	return items, nil
}

// EscrowInfo is an escrow with its balance split into reserve and bid.
type EscrowInfo struct {
	Address byzcoin.InstanceID
	*bidding.Escrow
	Balance uint64
	// Held is the part of the balance above the reserve: the highest bid
	// while the auction runs, plus anything credited from outside.
	Held uint64
}

// Escrow reads the escrow of an item of creator.
func (c *Client) Escrow(creator byzcoin.InstanceID, id uint16) (*EscrowInfo, error) {
	addr, _, err := bidding.EscrowAddress(c.program, creator, id)
	if err != nil {
		return nil, err
	}
	acc, err := c.account(addr)
	if err != nil {
		return nil, err
	}
	e, err := bidding.DecodeEscrow(acc.Data)
	if err != nil {
		return nil, err
	}
	info := &EscrowInfo{Address: addr, Escrow: e, Balance: acc.Balance}
	if reserve := c.Rent.MinimumBalance(len(acc.Data)); acc.Balance > reserve {
		info.Held = acc.Balance - reserve
	}
	return info, nil
}

// CreateItem opens an auction and returns its id. Another item created at
// the same time makes the id stale, in which case the counter is read
// again.
func (c *Client) CreateItem(p bidding.ItemParams) (uint16, error) {
	var err error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		var counter *bidding.ItemCounter
		counter, err = c.Counter()
		if err != nil {
			return 0, err
		}
		if counter.ItemCount >= bidding.MaxItems {
			return 0, bidding.ErrItemCounterExhausted
		}
		id := uint16(counter.ItemCount)
		var inst ledger.Instruction
		inst, err = bidding.NewInitializeItemInstruction(c.program, c.address, id, p)
		if err != nil {
			return 0, err
		}
		_, err = c.send(inst)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, bidding.ErrItemAddressMismatch) && !errors.Is(err, bidding.ErrEscrowAddressMismatch) {
			return 0, err
		}
		log.Lvlf2("Item id %d was taken, retrying", id)
	}
	return 0, err
}

// Bid offers amount on an item. If somebody outbid the highest bidder the
// client saw, the item is read again and the bid resent.
func (c *Client) Bid(id uint16, amount uint64) error {
	var err error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		var it *bidding.Item
		it, err = c.Item(id)
		if err != nil {
			return err
		}
		var inst ledger.Instruction
		inst, err = bidding.NewBidInstruction(c.program, c.address, it.Authority, id, amount, it.HighestBidder)
		if err != nil {
			return err
		}
		_, err = c.send(inst)
		if !errors.Is(err, bidding.ErrInvalidPreviousBidder) {
			return err
		}
		log.Lvlf2("Item %d got a new bid meanwhile, retrying", id)
	}
	return err
}

// Settle closes an ended auction in favour of its highest bidder.
func (c *Client) Settle(id uint16) error {
	it, err := c.Item(id)
	if err != nil {
		return err
	}
	inst, err := bidding.NewTransferItemToWinnerInstruction(c.program, c.address, it.Authority, id, it.HighestBidder)
	if err != nil {
		return err
	}
	_, err = c.send(inst)
	return err
}
