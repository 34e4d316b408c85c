package ledger

import (
	"fmt"

	"go.dedis.ch/cothority/v3/byzcoin"
)

// TransferCommand is the system program's command moving coins between
// wallets.
const TransferCommand = "transfer"

// systemProgram owns all wallets.
type systemProgram struct{}

func (systemProgram) Process(ctx *Context, inst Instruction) error {
	switch inst.Command {
	case TransferCommand:
		amount, err := ArgUint64(inst.Args, "amount")
		if err != nil {
			return err
		}
		from, err := ctx.Account(0)
		if err != nil {
			return err
		}
		to, err := ctx.Account(1)
		if err != nil {
			return err
		}
		return ctx.Transfer(from, to, amount)
	default:
		return fmt.Errorf("%w: system program has no %q", ErrUnknownCommand, inst.Command)
	}
}

// NewTransferInstruction moves amount from one wallet to another.
func NewTransferInstruction(from, to byzcoin.InstanceID, amount uint64) Instruction {
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			NewAccountMeta(from, true, true),
			NewAccountMeta(to, false, true),
		},
		Command: TransferCommand,
		Args:    byzcoin.Arguments{Uint64Arg("amount", amount)},
	}
}
