package ledger

import (
	"encoding/binary"
	"fmt"

	"go.dedis.ch/cothority/v3/byzcoin"
)

// Instruction arguments are little-endian for integers and raw bytes for
// everything else.

// Uint16Arg encodes v as a 2-byte argument.
func Uint16Arg(name string, v uint16) byzcoin.Argument {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return byzcoin.Argument{Name: name, Value: buf}
}

// Uint64Arg encodes v as an 8-byte argument.
func Uint64Arg(name string, v uint64) byzcoin.Argument {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return byzcoin.Argument{Name: name, Value: buf}
}

// StringArg encodes s as its bytes.
func StringArg(name, s string) byzcoin.Argument {
	return byzcoin.Argument{Name: name, Value: []byte(s)}
}

// AddressArg encodes an address as its 32 bytes.
func AddressArg(name string, id byzcoin.InstanceID) byzcoin.Argument {
	return byzcoin.Argument{Name: name, Value: id.Slice()}
}

// ArgUint16 decodes a 2-byte argument.
func ArgUint16(args byzcoin.Arguments, name string) (uint16, error) {
	buf := args.Search(name)
	if len(buf) != 2 {
		return 0, fmt.Errorf("%w: %s must be 2 bytes", ErrInvalidArgument, name)
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ArgUint64 decodes an 8-byte argument.
func ArgUint64(args byzcoin.Arguments, name string) (uint64, error) {
	buf := args.Search(name)
	if len(buf) != 8 {
		return 0, fmt.Errorf("%w: %s must be 8 bytes", ErrInvalidArgument, name)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ArgString decodes a string argument. A missing argument is an error, an
// empty one is not.
func ArgString(args byzcoin.Arguments, name string) (string, error) {
	for _, a := range args {
		if a.Name == name {
			return string(a.Value), nil
		}
	}
	return "", fmt.Errorf("%w: need an argument with name %s", ErrInvalidArgument, name)
}

// ArgAddress decodes a 32-byte address argument.
func ArgAddress(args byzcoin.Arguments, name string) (byzcoin.InstanceID, error) {
	buf := args.Search(name)
	if len(buf) != len(byzcoin.InstanceID{}) {
		return byzcoin.InstanceID{}, fmt.Errorf("%w: %s must be 32 bytes", ErrInvalidArgument, name)
	}
	return byzcoin.NewInstanceID(buf), nil
}
