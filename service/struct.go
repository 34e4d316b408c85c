package service

import (
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/network"

	"github.com/dedis/ledger_auctions/ledger"
)

// ServiceName can be used from other packages to refer to this service.
const ServiceName = "EscrowAuctions"

// We need to register all messages so the network knows how to handle them.
func init() {
	network.RegisterMessages(
		SendTransaction{}, SendTransactionReply{},
		GetAccount{}, GetAccountReply{},
		Airdrop{}, AirdropReply{},
		GetConfig{}, GetConfigReply{},
	)
}

// PROTOSTART
// package escrowauctions;
//
// option java_package = "ch.epfl.dedis.ledgerauctions.proto";
// option java_outer_classname = "EscrowAuctionsProto";

// SendTransaction asks the node to execute a signed transaction.
type SendTransaction struct {
	Transaction ledger.Transaction
}

// SendTransactionReply holds the receipt, failed or not.
type SendTransactionReply struct {
	Receipt ledger.Receipt
}

// GetAccount reads a committed account.
type GetAccount struct {
	Key byzcoin.InstanceID
}

// GetAccountReply has ErrorCode set if the account could not be read.
type GetAccountReply struct {
	Account   ledger.Account
	ErrorCode uint32
	Error     string
}

// Airdrop credits coins to a wallet. Only nodes running as a devnet
// answer it.
type Airdrop struct {
	Key    byzcoin.InstanceID
	Amount uint64
}

// AirdropReply has ErrorCode set if nothing was credited.
type AirdropReply struct {
	ErrorCode uint32
	Error     string
}

// GetConfig asks for the parameters of the ledger.
type GetConfig struct {
}

// GetConfigReply describes the ledger of the node.
type GetConfigReply struct {
	Rent    ledger.Rent
	Slot    uint64
	Program byzcoin.InstanceID
}

// storage is what a node keeps across restarts.
type storage struct {
	Accounts []storedAccount
	Nonces   []storedNonce
}

// storedNonce is the last nonce a signer used.
type storedNonce struct {
	Signer byzcoin.InstanceID
	Nonce  uint64
}

type storedAccount struct {
	Key     byzcoin.InstanceID
	Account ledger.Account
}
