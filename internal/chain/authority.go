package chain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Authority is a capability that can sign transfers on behalf of a logical
// owner. Wallet authorities wrap an end user's key; derived authorities are
// program-controlled and scoped by a seed path, so they can authorize actions
// without any private key existing at all.
type Authority struct {
	key     solana.PublicKey
	derived bool
	bump    uint8
}

// WalletAuthority wraps an externally held key.
func WalletAuthority(key solana.PublicKey) Authority {
	return Authority{key: key}
}

// DeriveAuthority derives a program-controlled authority from a seed path,
// mirroring program-derived addresses on the ledger network. The returned
// bump completes the derivation path and carries no other meaning.
func DeriveAuthority(programID solana.PublicKey, seeds [][]byte) (Authority, error) {
	key, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Authority{}, fmt.Errorf("derive authority: %w", err)
	}
	return Authority{key: key, derived: true, bump: bump}, nil
}

// Key returns the public key this authority signs as.
func (a Authority) Key() solana.PublicKey { return a.key }

// Derived reports whether the authority is program-controlled.
func (a Authority) Derived() bool { return a.derived }

// Bump returns the derivation bump seed for derived authorities.
func (a Authority) Bump() uint8 { return a.bump }
