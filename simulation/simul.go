package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul"
	"go.dedis.ch/onet/v3/simul/monitor"

	"github.com/dedis/ledger_auctions/bidding"
	"github.com/dedis/ledger_auctions/client"
	"github.com/dedis/ledger_auctions/service"
)

func main() {
	simul.Start()
}

func init() {
	onet.SimulationRegister("EscrowAuction", NewSimulationEscrowAuction)
}

// SimulationEscrowAuction runs full auctions against the ledger of the
// root node.
type SimulationEscrowAuction struct {
	onet.SimulationBFTree
	Bidders  int
	Bids     int
	Duration string
}

// NewSimulationEscrowAuction returns the new simulation, where all fields are
// initialised using the config-file
func NewSimulationEscrowAuction(config string) (onet.Simulation, error) {
	es := &SimulationEscrowAuction{}
	_, err := toml.Decode(config, es)
	if err != nil {
		return nil, err
	}
	return es, nil
}

// Setup creates the tree used for that simulation
func (s *SimulationEscrowAuction) Setup(dir string, hosts []string) (
	*onet.SimulationConfig, error) {
	sc := &onet.SimulationConfig{}
	s.CreateRoster(sc, hosts, 2000)
	err := s.CreateTree(sc)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Node loads the roster and the tree to speed up the first round.
func (s *SimulationEscrowAuction) Node(config *onet.SimulationConfig) error {
	index, _ := config.Roster.Search(config.Server.ServerIdentity.ID)
	if index < 0 {
		log.Fatal("Didn't find this node in roster")
	}
	log.Lvl3("Initializing node-index", index)
	return s.SimulationBFTree.Node(config)
}

const coin = 1000000000

func (s *SimulationEscrowAuction) newClient(sc *service.Client, amount uint64) (*client.Client, error) {
	c, err := client.NewClient(sc, bidding.ProgramID, darc.NewSignerEd25519(nil, nil))
	if err != nil {
		return nil, err
	}
	cfg, err := sc.GetConfig()
	if err != nil {
		return nil, err
	}
	c.Rent = cfg.Rent
	c.MaxRetries = s.Bidders
	return c, sc.Airdrop(c.Address(), amount)
}

// Run opens one auction per round, has every bidder outbid the previous
// one Bids times, waits for the end of the auction and settles it.
func (s *SimulationEscrowAuction) Run(config *onet.SimulationConfig) error {
	duration, err := time.ParseDuration(s.Duration)
	if err != nil {
		return errors.New("parse duration of Duration failed: " + err.Error())
	}
	if s.Bidders < 1 || s.Bids < 1 {
		return errors.New("need at least one bidder and one bid")
	}
	log.Lvl2("Size is:", config.Tree.Size(), "rounds:", s.Rounds)
	sc := service.NewClient(config.Roster.List[0])

	seller, err := s.newClient(sc, 100*coin)
	if err != nil {
		return errors.New("couldn't fund seller: " + err.Error())
	}
	bidders := make([]*client.Client, s.Bidders)
	for i := range bidders {
		bidders[i], err = s.newClient(sc, 100*coin)
		if err != nil {
			return errors.New("couldn't fund bidder: " + err.Error())
		}
	}
	if err := seller.EnsureCounter(); err != nil {
		return errors.New("couldn't create item counter: " + err.Error())
	}

	for round := 0; round < s.Rounds; round++ {
		log.Lvl1("Starting round", round)
		roundM := monitor.NewTimeMeasure("round")

		create := monitor.NewTimeMeasure("create")
		id, err := seller.CreateItem(bidding.ItemParams{
			Name:         fmt.Sprintf("lot %d", round),
			Description:  "simulated lot",
			OpeningPrice: coin / 100,
			MinimumBid:   coin / 1000,
			Duration:     duration,
		})
		if err != nil {
			return errors.New("couldn't create item: " + err.Error())
		}
		create.Record()

		bid := monitor.NewTimeMeasure("bid")
		amount := uint64(coin / 100)
		for b := 0; b < s.Bids; b++ {
			for _, c := range bidders {
				if err := c.Bid(id, amount); err != nil {
					return fmt.Errorf("couldn't bid %d on item %d: %v", amount, id, err)
				}
				amount += coin / 1000
			}
		}
		bid.Record()
		final := amount - coin/1000

		it, err := seller.Item(id)
		if err != nil {
			return err
		}
		time.Sleep(time.Until(time.Unix(it.EndsAt(), 0)) + time.Second)

		confirm := monitor.NewTimeMeasure("confirm")
		before, err := seller.Balance()
		if err != nil {
			return err
		}
		if err := bidders[0].Settle(id); err != nil {
			return errors.New("couldn't settle: " + err.Error())
		}
		after, err := seller.Balance()
		if err != nil {
			return err
		}
		if after-before != final {
			return fmt.Errorf("seller got %d instead of %d", after-before, final)
		}
		e, err := seller.Escrow(seller.Address(), id)
		if err != nil {
			return err
		}
		if e.Held != 0 {
			return fmt.Errorf("escrow of item %d still holds %d", id, e.Held)
		}
		it, err = seller.Item(id)
		if err != nil {
			return err
		}
		if it.Owner != bidders[len(bidders)-1].Address() {
			return errors.New("item went to the wrong bidder")
		}
		confirm.Record()
		roundM.Record()
	}
	return nil
}
