package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"

	"github.com/dedis/ledger_auctions/bidding"
	"github.com/dedis/ledger_auctions/client"
	"github.com/dedis/ledger_auctions/ledger"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

const coin = 1000000000

func newRemoteClient(t *testing.T, sc *Client) *client.Client {
	c, err := client.NewClient(sc, bidding.ProgramID, darc.NewSignerEd25519(nil, nil))
	require.NoError(t, err)
	require.NoError(t, sc.Airdrop(c.Address(), 10*coin))
	return c
}

func TestService_Auction(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	_, roster, _ := local.GenTree(2, true)
	defer local.CloseAll()

	sc := NewClient(roster.List[0])
	cfg, err := sc.GetConfig()
	require.NoError(t, err)
	require.Equal(t, ledger.DefaultRent, cfg.Rent)
	require.Equal(t, bidding.ProgramID, cfg.Program)

	seller := newRemoteClient(t, sc)
	alice := newRemoteClient(t, sc)
	bob := newRemoteClient(t, sc)

	require.NoError(t, seller.EnsureCounter())
	id, err := seller.CreateItem(bidding.ItemParams{
		Name:         "bike",
		OpeningPrice: coin,
		MinimumBid:   coin / 10,
		Duration:     time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, alice.Bid(id, coin))
	err = bob.Bid(id, coin)
	require.True(t, errors.Is(err, bidding.ErrBidTooLow))
	require.NoError(t, bob.Bid(id, 2*coin))

	e, err := seller.Escrow(seller.Address(), id)
	require.NoError(t, err)
	require.Equal(t, uint64(2*coin), e.Held)

	// Every node runs its own ledger.
	other := NewClient(roster.List[1])
	_, err = other.GetAccount(e.Address)
	require.True(t, errors.Is(err, ledger.ErrAccountNotFound))

	time.Sleep(2 * time.Second)
	require.NoError(t, alice.Settle(id))
	it, err := alice.Item(id)
	require.NoError(t, err)
	require.True(t, it.Settled)
	require.Equal(t, bob.Address(), it.Owner)
	balance, err := alice.Balance()
	require.NoError(t, err)
	require.Equal(t, uint64(10*coin), balance)

	cfg, err = sc.GetConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(5), cfg.Slot)
}

func TestService_Persistence(t *testing.T) {
	local := onet.NewTCPTest(cothority.Suite)
	hosts, roster, _ := local.GenTree(1, true)
	defer local.CloseAll()

	s := local.GetServices(hosts, escrowAuctionsID)[0].(*Service)
	sc := NewClient(roster.List[0])
	seller := newRemoteClient(t, sc)
	require.NoError(t, seller.EnsureCounter())
	_, err := seller.CreateItem(bidding.ItemParams{Name: "boat", OpeningPrice: 1, MinimumBid: 1, Duration: time.Hour})
	require.NoError(t, err)

	// A refused airdrop leaves no account behind.
	err = sc.Airdrop(byzcoin.InstanceID{1}, 1)
	require.True(t, errors.Is(err, ledger.ErrInsufficientFundsForRent))

	// A transfer and a transaction that fails after its signature checked
	// out, both to be replayed after the restart.
	payer := darc.NewSignerEd25519(nil, nil)
	from, err := ledger.AddressOf(payer)
	require.NoError(t, err)
	require.NoError(t, sc.Airdrop(from, coin))
	transfer := ledger.NewTransaction(5, ledger.NewTransferInstruction(from, seller.Address(), coin/2))
	require.NoError(t, transfer.SignWith(payer))
	_, err = sc.SendTransaction(transfer)
	require.NoError(t, err)
	overdraft := ledger.NewTransaction(6, ledger.NewTransferInstruction(from, seller.Address(), 5*coin))
	require.NoError(t, overdraft.SignWith(payer))
	_, err = sc.SendTransaction(overdraft)
	require.True(t, errors.Is(err, ledger.ErrInsufficientFunds))

	restarted := &Service{ServiceProcessor: s.ServiceProcessor}
	require.NoError(t, restarted.startLedger(ledger.DefaultConfig()))
	count := func(st *ledger.MemStore) int {
		n := 0
		require.NoError(t, st.ForEach(func(byzcoin.InstanceID, ledger.Account) error {
			n++
			return nil
		}))
		return n
	}
	// seller, counter, item, escrow and payer
	require.Equal(t, 5, count(restarted.store))
	require.Equal(t, count(s.store), count(restarted.store))
	require.Equal(t, s.ledger.Nonces(), restarted.ledger.Nonces())

	acc, err := restarted.ledger.GetAccount(seller.Address())
	require.NoError(t, err)
	balance, err := seller.Balance()
	require.NoError(t, err)
	require.Equal(t, balance, acc.Balance)

	// Neither transaction can be replayed on the restarted node, even once
	// the overdraft would go through.
	require.NoError(t, restarted.ledger.Airdrop(from, 10*coin))
	_, err = restarted.ledger.SendTransaction(transfer)
	require.True(t, errors.Is(err, ledger.ErrDuplicateTransaction))
	_, err = restarted.ledger.SendTransaction(overdraft)
	require.True(t, errors.Is(err, ledger.ErrDuplicateTransaction))
	acc, err = restarted.ledger.GetAccount(seller.Address())
	require.NoError(t, err)
	require.Equal(t, balance, acc.Balance)

	// The payer goes on with higher nonces.
	next := ledger.NewTransaction(7, ledger.NewTransferInstruction(from, seller.Address(), coin))
	require.NoError(t, next.SignWith(payer))
	_, err = restarted.ledger.SendTransaction(next)
	require.NoError(t, err)
}
