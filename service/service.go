package service

import (
	"errors"
	"os"
	"sync"

	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"

	"github.com/dedis/ledger_auctions/bidding"
	"github.com/dedis/ledger_auctions/ledger"
	"github.com/dedis/ledger_auctions/notify"
)

// Environment variables read when a node starts.
const (
	// EnvConfig names a TOML file with the ledger configuration.
	EnvConfig = "ESCROW_AUCTIONS_CONFIG"
	// EnvNATS is the url of a NATS server receiving the auction events.
	EnvNATS = "ESCROW_AUCTIONS_NATS"
	// EnvFaucet disables the Airdrop handler when set to "off".
	EnvFaucet = "ESCROW_AUCTIONS_FAUCET"
)

var storageKey = []byte("storage")

// Used for tests
var escrowAuctionsID onet.ServiceID

func init() {
	var err error
	escrowAuctionsID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
	network.RegisterMessage(&storage{})
}

// Service hosts one ledger with the bidding program. Nodes don't share
// state, every node is a ledger of its own.
type Service struct {
	*onet.ServiceProcessor
	ledger *ledger.Ledger
	store  *ledger.MemStore
	faucet bool

	saveMu sync.Mutex
}

// Ledger gives in-process access to the ledger of the node.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// SendTransaction executes a transaction. A failing transaction is not an
// error of the request, its receipt carries the error code.
func (s *Service) SendTransaction(req *SendTransaction) (*SendTransactionReply, error) {
	r, err := s.ledger.SendTransaction(&req.Transaction)
	if err != nil {
		log.Lvl2(s.ServerIdentity(), "transaction failed:", err)
	}
	return &SendTransactionReply{Receipt: *r}, nil
}

// GetAccount returns a committed account.
func (s *Service) GetAccount(req *GetAccount) (*GetAccountReply, error) {
	acc, err := s.ledger.GetAccount(req.Key)
	if err != nil {
		return &GetAccountReply{ErrorCode: ledger.CodeOf(err), Error: err.Error()}, nil
	}
	return &GetAccountReply{Account: *acc}, nil
}

// Airdrop credits coins to a wallet.
func (s *Service) Airdrop(req *Airdrop) (*AirdropReply, error) {
	if !s.faucet {
		return nil, errors.New("faucet is disabled on this node")
	}
	if err := s.ledger.Airdrop(req.Key, req.Amount); err != nil {
		return &AirdropReply{ErrorCode: ledger.CodeOf(err), Error: err.Error()}, nil
	}
	s.save()
	return &AirdropReply{}, nil
}

// GetConfig returns the rent parameters and the current slot.
func (s *Service) GetConfig(req *GetConfig) (*GetConfigReply, error) {
	return &GetConfigReply{
		Rent:    s.ledger.Rent(),
		Slot:    s.ledger.Slot(),
		Program: bidding.ProgramID,
	}, nil
}

// observe saves the ledger after every transaction that changed accounts
// or used up a nonce.
func (s *Service) observe(r *ledger.Receipt) {
	if r.ErrorCode == 0 || r.Nonce != 0 {
		s.save()
	}
}

// save writes all accounts and signer nonces of the ledger to the node's
// database.
func (s *Service) save() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	st := &storage{}
	err := s.store.ForEach(func(key byzcoin.InstanceID, acc ledger.Account) error {
		st.Accounts = append(st.Accounts, storedAccount{Key: key, Account: acc})
		return nil
	})
	for signer, nonce := range s.ledger.Nonces() {
		st.Nonces = append(st.Nonces, storedNonce{Signer: signer, Nonce: nonce})
	}
	if err == nil {
		err = s.Save(storageKey, st)
	}
	if err != nil {
		log.Error(s.ServerIdentity(), "couldn't save accounts:", err)
	}
}

// tryLoad restores the accounts saved by a previous run into the store and
// returns the signer nonces of that run.
func (s *Service) tryLoad() (map[byzcoin.InstanceID]uint64, error) {
	nonces := map[byzcoin.InstanceID]uint64{}
	msg, err := s.Load(storageKey)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nonces, nil
	}
	st, ok := msg.(*storage)
	if !ok {
		return nil, errors.New("data of wrong type")
	}
	changes := make([]ledger.StateChange, 0, len(st.Accounts))
	for _, sa := range st.Accounts {
		changes = append(changes, ledger.StateChange{Action: ledger.Create, Key: sa.Key, Account: sa.Account})
	}
	for _, sn := range st.Nonces {
		nonces[sn.Signer] = sn.Nonce
	}
	log.Lvlf2("%s restored %d accounts and %d nonces", s.ServerIdentity(), len(changes), len(nonces))
	return nonces, s.store.Apply(changes)
}

// startLedger builds the ledger of the node from what a previous run saved
// and deploys the bidding program on it.
func (s *Service) startLedger(cfg ledger.Config) error {
	s.store = ledger.NewMemStore()
	nonces, err := s.tryLoad()
	if err != nil {
		return err
	}
	s.ledger = ledger.NewLedger(s.store, ledger.SystemClock{}, cfg)
	s.ledger.RestoreNonces(nonces)
	if err := bidding.Register(s.ledger); err != nil {
		return err
	}
	s.ledger.AddObserver(s.observe)
	return nil
}

func loadConfig() (ledger.Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return ledger.DefaultConfig(), nil
	}
	return ledger.LoadConfig(path)
}

// newService starts the ledger of a node: the configuration comes from the
// file named by EnvConfig, accounts and nonces from the node's database, and
// auction events go to the NATS server named by EnvNATS, if any.
func newService(c *onet.Context) (onet.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		faucet:           os.Getenv(EnvFaucet) != "off",
	}
	if err := s.RegisterHandlers(s.SendTransaction, s.GetAccount, s.Airdrop, s.GetConfig); err != nil {
		return nil, err
	}
	if err := s.startLedger(cfg); err != nil {
		return nil, err
	}
	if url := os.Getenv(EnvNATS); url != "" {
		nc, err := notify.Connect(url)
		if err != nil {
			return nil, err
		}
		s.ledger.AddObserver(notify.New(nc).Observe)
		log.Lvl2(s.ServerIdentity(), "publishing auction events to", url)
	}
	return s, nil
}
