package chain

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var ErrEmptyInstruction = errors.New("empty instruction payload")

// AccountMeta names an account an instruction touches.
type AccountMeta struct {
	Address    solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// InstructionBlob is an opaque swap instruction produced by the external
// aggregator. Its payload is untrusted until executed: callers forward it
// verbatim and must not interpret the bytes. The only validation owed to it
// before execution is a non-empty length check and program-ID allow-listing.
type InstructionBlob struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Validate performs the length check. Everything else about the payload is
// the executing program's problem.
func (b InstructionBlob) Validate() error {
	if len(b.Data) == 0 {
		return ErrEmptyInstruction
	}
	return nil
}

// SwapProgram is the black-box aggregator program. Given a transaction and an
// instruction blob it performs the swap's token movements under the signer's
// authority. Failures inside Execute abort the enclosing transaction.
type SwapProgram interface {
	ID() solana.PublicKey
	Execute(tx *Transaction, blob InstructionBlob, signer Authority) error
}
