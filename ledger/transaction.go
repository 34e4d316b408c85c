package ledger

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/protobuf"
)

// AccountMeta lists one account an instruction touches and in which role.
type AccountMeta struct {
	Key      byzcoin.InstanceID
	Signer   bool
	Writable bool
}

// NewAccountMeta is a short-hand for building an AccountMeta.
func NewAccountMeta(key byzcoin.InstanceID, signer, writable bool) AccountMeta {
	return AccountMeta{Key: key, Signer: signer, Writable: writable}
}

// Instruction calls one command of a program with named arguments over a
// fixed list of accounts.
type Instruction struct {
	ProgramID byzcoin.InstanceID
	Accounts  []AccountMeta
	Command   string
	Args      byzcoin.Arguments
}

// Signature is an ed25519 signature over the transaction hash, together
// with the address of the key that produced it.
type Signature struct {
	Signer byzcoin.InstanceID
	Sig    []byte
}

// Transaction is a list of instructions executed atomically. The nonce makes
// otherwise identical transactions distinct.
type Transaction struct {
	Instructions []Instruction
	Nonce        uint64
	Signatures   []Signature
}

type txBody struct {
	Instructions []Instruction
	Nonce        uint64
}

// NewTransaction returns an unsigned transaction.
func NewTransaction(nonce uint64, instrs ...Instruction) *Transaction {
	return &Transaction{Instructions: instrs, Nonce: nonce}
}

// Hash is what signers sign and what identifies the transaction.
func (tx *Transaction) Hash() ([]byte, error) {
	buf, err := protobuf.Encode(&txBody{Instructions: tx.Instructions, Nonce: tx.Nonce})
	if err != nil {
		return nil, fmt.Errorf("encoding transaction: %w", err)
	}
	h := sha256.Sum256(buf)
	return h[:], nil
}

// SignWith replaces all signatures with ones from the given signers.
func (tx *Transaction) SignWith(signers ...darc.Signer) error {
	msg, err := tx.Hash()
	if err != nil {
		return err
	}
	tx.Signatures = nil
	for _, s := range signers {
		addr, err := AddressOf(s)
		if err != nil {
			return err
		}
		sig, err := s.Sign(msg)
		if err != nil {
			return fmt.Errorf("signing with %x: %w", addr[:], err)
		}
		tx.Signatures = append(tx.Signatures, Signature{Signer: addr, Sig: sig})
	}
	return nil
}

// verify checks every signature and that every account flagged as signer
// has signed. It returns the transaction hash and the set of signers.
func (tx *Transaction) verify() ([]byte, map[byzcoin.InstanceID]bool, error) {
	msg, err := tx.Hash()
	if err != nil {
		return nil, nil, err
	}
	signed := map[byzcoin.InstanceID]bool{}
	for _, s := range tx.Signatures {
		pub := cothority.Suite.Point()
		if err := pub.UnmarshalBinary(s.Signer[:]); err != nil {
			return msg, nil, fmt.Errorf("%w: signer %x is not a public key", ErrInvalidSignature, s.Signer[:])
		}
		if err := schnorr.Verify(cothority.Suite, pub, msg, s.Sig); err != nil {
			return msg, nil, fmt.Errorf("%w: %x", ErrInvalidSignature, s.Signer[:])
		}
		signed[s.Signer] = true
	}
	for _, inst := range tx.Instructions {
		for _, m := range inst.Accounts {
			if m.Signer && !signed[m.Key] {
				return msg, nil, fmt.Errorf("%w: %x", ErrMissingSignature, m.Key[:])
			}
		}
	}
	return msg, signed, nil
}

// AddressOf returns the account address of a signer: its ed25519 public key.
func AddressOf(s darc.Signer) (byzcoin.InstanceID, error) {
	if s.Ed25519 == nil {
		return byzcoin.InstanceID{}, errors.New("only ed25519 signers have an account address")
	}
	buf, err := s.Ed25519.Point.MarshalBinary()
	if err != nil {
		return byzcoin.InstanceID{}, err
	}
	return byzcoin.NewInstanceID(buf), nil
}
