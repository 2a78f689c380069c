package vault

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/atomx-labs/atomx/internal/chain"
)

// ledgerOp is one step of a randomized deposit/withdraw/profit sequence.
type ledgerOp struct {
	Kind   int // 0 deposit, 1 withdraw, 2 profit
	Owner  int
	Amount uint64
}

func genLedgerOp(owners int) gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.IntRange(0, owners-1),
		gen.UInt64Range(1, 1_000_000),
	).Map(func(vals []interface{}) ledgerOp {
		return ledgerOp{Kind: vals[0].(int), Owner: vals[1].(int), Amount: vals[2].(uint64)}
	})
}

// TestShareAccountingInvariant drives random operation sequences against the
// ledger and checks after every step that outstanding shares equal the sum of
// all positions and never exceed what the balance can back.
func TestShareAccountingInvariant(t *testing.T) {
	const ownerCount = 4

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("total shares equal the sum of positions", prop.ForAll(
		func(ops []ledgerOp) bool {
			env := newTestEnv(t)

			owners := make([]solana.PublicKey, ownerCount)
			tokens := make([]solana.PublicKey, ownerCount)
			for i := range owners {
				owners[i], tokens[i] = env.newDepositor(t, 0)
				require.NoError(t, env.world.MintTo(tokens[i], 10_000_000))
			}

			for _, op := range ops {
				var err error
				switch op.Kind {
				case 0:
					_, err = env.service.Deposit(owners[op.Owner], tokens[op.Owner], op.Amount)
				case 1:
					_, err = env.service.Withdraw(owners[op.Owner], tokens[op.Owner], op.Amount)
				case 2:
					err = env.world.MintTo(env.service.VaultTokenAccount(), op.Amount)
				}
				if err != nil && !expectedLedgerError(err) {
					t.Logf("unexpected ledger error: %v", err)
					return false
				}

				state, err := env.service.TreasuryState()
				if err != nil {
					return false
				}
				var sum uint64
				for _, owner := range owners {
					sum += env.service.PositionOf(owner).Shares
				}
				if state.TotalShares != sum {
					t.Logf("total shares %d, position sum %d", state.TotalShares, sum)
					return false
				}
				if state.TotalShares > 0 && env.vaultBalance(t) == 0 {
					t.Log("shares outstanding against an empty balance")
					return false
				}
			}
			return true
		},
		gen.SliceOf(genLedgerOp(ownerCount)),
	))

	properties.TestingRun(t)
}

// expectedLedgerError reports whether err is a normal rejection during random
// sequences, as opposed to a broken invariant.
func expectedLedgerError(err error) bool {
	return errors.Is(err, ErrInsufficientShares) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrMathOverflow) ||
		errors.Is(err, chain.ErrInsufficient)
}
