package bidding

import (
	"encoding/binary"

	"github.com/dedis/ledger_auctions/pda"
	"go.dedis.ch/cothority/v3/byzcoin"
)

// Every account of the program lives at an address derived from public
// values, so there is never a need to store or look up a pointer.
var (
	counterTag = []byte("item_counter")
	itemTag    = []byte("item")
	escrowTag  = []byte("escrow")
)

func itemIDSeed(id uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, id)
	return buf
}

// CounterSeeds are the seeds of the item counter.
func CounterSeeds() [][]byte {
	return [][]byte{counterTag}
}

// ItemSeeds are the seeds of the item with the given id.
func ItemSeeds(id uint16) [][]byte {
	return [][]byte{itemTag, itemIDSeed(id)}
}

// EscrowSeeds are the seeds of the escrow of an item.
func EscrowSeeds(creator byzcoin.InstanceID, id uint16) [][]byte {
	return [][]byte{escrowTag, creator.Slice(), itemIDSeed(id)}
}

// CounterAddress derives the address of the item counter.
func CounterAddress(program byzcoin.InstanceID) (byzcoin.InstanceID, uint8, error) {
	return pda.FindAddress(CounterSeeds(), program)
}

// ItemAddress derives the address of an item.
func ItemAddress(program byzcoin.InstanceID, id uint16) (byzcoin.InstanceID, uint8, error) {
	return pda.FindAddress(ItemSeeds(id), program)
}

// EscrowAddress derives the address of the escrow of an item.
func EscrowAddress(program, creator byzcoin.InstanceID, id uint16) (byzcoin.InstanceID, uint8, error) {
	return pda.FindAddress(EscrowSeeds(creator, id), program)
}

func withBump(seeds [][]byte, bump uint8) [][]byte {
	return append(seeds, []byte{bump})
}

// matches tells whether key is the address derived from seeds and a bump
// stored in the account itself.
func matches(key byzcoin.InstanceID, seeds [][]byte, bump uint32, program byzcoin.InstanceID) bool {
	if bump > 255 {
		return false
	}
	addr, err := pda.CreateAddress(withBump(seeds, uint8(bump)), program)
	return err == nil && addr == key
}
