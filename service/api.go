package service

import (
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"

	"github.com/dedis/ledger_auctions/ledger"
)

// Client is a structure to communicate with the ledger of one node. It can
// be used as the backend of client.Client.
type Client struct {
	*onet.Client
	dst *network.ServerIdentity
}

// NewClient returns a client talking to dst.
func NewClient(dst *network.ServerIdentity) *Client {
	return &Client{Client: onet.NewClient(cothority.Suite, ServiceName), dst: dst}
}

// SendTransaction sends tx to the node. Transaction failures come back as
// the same errors the ledger returns.
func (c *Client) SendTransaction(tx *ledger.Transaction) (*ledger.Receipt, error) {
	log.Lvl4("Sending transaction to", c.dst)
	reply := &SendTransactionReply{}
	if err := c.SendProtobuf(c.dst, &SendTransaction{Transaction: *tx}, reply); err != nil {
		return nil, err
	}
	return &reply.Receipt, reply.Receipt.Err()
}

// GetAccount reads an account from the node.
func (c *Client) GetAccount(key byzcoin.InstanceID) (*ledger.Account, error) {
	reply := &GetAccountReply{}
	if err := c.SendProtobuf(c.dst, &GetAccount{Key: key}, reply); err != nil {
		return nil, err
	}
	if err := ledger.ErrorFromCode(reply.ErrorCode, reply.Error); err != nil {
		return nil, err
	}
	return &reply.Account, nil
}

// Airdrop asks the node's faucet for coins.
func (c *Client) Airdrop(key byzcoin.InstanceID, amount uint64) error {
	reply := &AirdropReply{}
	if err := c.SendProtobuf(c.dst, &Airdrop{Key: key, Amount: amount}, reply); err != nil {
		return err
	}
	return ledger.ErrorFromCode(reply.ErrorCode, reply.Error)
}

// GetConfig returns the ledger parameters of the node.
func (c *Client) GetConfig() (*GetConfigReply, error) {
	reply := &GetConfigReply{}
	if err := c.SendProtobuf(c.dst, &GetConfig{}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
