// Package pda derives program addresses: 32-byte account keys computed from
// a list of seeds and the id of the program that owns them. A derived address
// never lies on the ed25519 curve, so no private key can sign for it and only
// the owning program, by presenting the seeds, can create it.
package pda

import (
	"crypto/sha256"
	"errors"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32
)

var marker = []byte("ProgramDerivedAddress")

var (
	// ErrMaxSeedLength is returned when a seed is longer than MaxSeedLen.
	ErrMaxSeedLength = errors.New("seed longer than 32 bytes")
	// ErrTooManySeeds is returned when more than MaxSeeds seeds are given.
	ErrTooManySeeds = errors.New("too many seeds")
	// ErrOnCurve is returned by CreateAddress when the hash is a valid
	// curve point and so cannot be used as a program address.
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")
	// ErrNoViableBump is returned when every bump yields an on-curve hash.
	ErrNoViableBump = errors.New("unable to find a viable program address bump")
)

// CreateAddress hashes seeds and program into an address. The seeds must
// already contain the bump, if any.
func CreateAddress(seeds [][]byte, program byzcoin.InstanceID) (byzcoin.InstanceID, error) {
	if len(seeds) > MaxSeeds {
		return byzcoin.InstanceID{}, ErrTooManySeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return byzcoin.InstanceID{}, ErrMaxSeedLength
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write(marker)
	var addr byzcoin.InstanceID
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr[:]) {
		return byzcoin.InstanceID{}, ErrOnCurve
	}
	return addr, nil
}

// FindAddress searches the bump from 255 downwards and returns the first
// off-curve address together with its bump.
func FindAddress(seeds [][]byte, program byzcoin.InstanceID) (byzcoin.InstanceID, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return byzcoin.InstanceID{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateAddress(withBump, program)
		switch err {
		case nil:
			return addr, uint8(bump), nil
		case ErrOnCurve:
			continue
		default:
			return byzcoin.InstanceID{}, 0, err
		}
	}
	return byzcoin.InstanceID{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b is the compressed encoding of an ed25519
// point, which is what wallet addresses are.
func IsOnCurve(b []byte) bool {
	return cothority.Suite.Point().UnmarshalBinary(b) == nil
}
