package pda

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/cothority/v3/darc"
)

var testProgram = byzcoin.InstanceID(sha256.Sum256([]byte("pda test program")))

func TestFindAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("item"), {1, 0}}
	a1, b1, err := FindAddress(seeds, testProgram)
	require.NoError(t, err)
	a2, b2, err := FindAddress(seeds, testProgram)
	require.NoError(t, err)
	require.Equal(t, a1, a2)
	require.Equal(t, b1, b2)
	require.False(t, IsOnCurve(a1[:]))

	again, err := CreateAddress([][]byte{[]byte("item"), {1, 0}, {b1}}, testProgram)
	require.NoError(t, err)
	require.Equal(t, a1, again)
}

func TestFindAddress_DistinctSeeds(t *testing.T) {
	creator := byzcoin.NewInstanceID([]byte("creator"))
	seen := map[byzcoin.InstanceID]bool{}
	seedSets := [][][]byte{
		{[]byte("item_counter")},
		{[]byte("item"), {0, 0}},
		{[]byte("item"), {1, 0}},
		{[]byte("item"), {0, 1}},
		{[]byte("escrow"), creator[:], {0, 0}},
		{[]byte("escrow"), creator[:], {1, 0}},
	}
	for _, seeds := range seedSets {
		addr, _, err := FindAddress(seeds, testProgram)
		require.NoError(t, err)
		require.False(t, seen[addr], "collision for seeds %x", seeds)
		seen[addr] = true
	}

	other := byzcoin.InstanceID(sha256.Sum256([]byte("another program")))
	a1, _, err := FindAddress(seedSets[1], testProgram)
	require.NoError(t, err)
	a2, _, err := FindAddress(seedSets[1], other)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)
}

func TestCreateAddress_SeedLimits(t *testing.T) {
	_, err := CreateAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLen+1)}, testProgram)
	require.Equal(t, ErrMaxSeedLength, err)

	tooMany := make([][]byte, MaxSeeds+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	_, err = CreateAddress(tooMany, testProgram)
	require.Equal(t, ErrTooManySeeds, err)

	_, _, err = FindAddress(tooMany[:MaxSeeds], testProgram)
	require.Equal(t, ErrTooManySeeds, err)
}

func TestIsOnCurve_WalletKeys(t *testing.T) {
	signer := darc.NewSignerEd25519(nil, nil)
	buf, err := signer.Ed25519.Point.MarshalBinary()
	require.NoError(t, err)
	require.True(t, IsOnCurve(buf))
	require.False(t, IsOnCurve([]byte{1, 2, 3}))
}
