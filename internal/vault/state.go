package vault

import (
	"github.com/gagliardetto/solana-go"
)

// Treasury is the singleton ledger record for a deployment.
type Treasury struct {
	Authority         solana.PublicKey
	DelegateAuthority solana.PublicKey
	TotalShares       uint64
	Bump              uint8
}

// Position is one depositor's proportional claim on the treasury. A position
// with zero shares is empty but may persist as a record.
type Position struct {
	Owner  solana.PublicKey
	Shares uint64
}
