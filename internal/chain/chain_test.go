package chain

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return NewWorld(zaptest.NewLogger(t))
}

func fundedAccount(t *testing.T, w *World, balance uint64) (address, owner solana.PublicKey) {
	t.Helper()
	owner = solana.NewWallet().PublicKey()
	address = solana.NewWallet().PublicKey()
	_, err := w.CreateTokenAccount(address, solana.NewWallet().PublicKey(), owner)
	require.NoError(t, err)
	require.NoError(t, w.MintTo(address, balance))
	return address, owner
}

func TestCreateTokenAccountTwice(t *testing.T) {
	w := newTestWorld(t)
	address := solana.NewWallet().PublicKey()

	_, err := w.CreateTokenAccount(address, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	_, err = w.CreateTokenAccount(address, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestTransferMovesBalance(t *testing.T) {
	w := newTestWorld(t)
	src, owner := fundedAccount(t, w, 100)
	dst, _ := fundedAccount(t, w, 0)

	err := w.Execute(func(tx *Transaction) error {
		return tx.Transfer(src, dst, 40, WalletAuthority(owner))
	})
	require.NoError(t, err)

	srcBalance, err := w.Balance(src)
	require.NoError(t, err)
	dstBalance, err := w.Balance(dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), srcBalance)
	assert.Equal(t, uint64(40), dstBalance)
}

func TestTransferRequiresOwnerSignature(t *testing.T) {
	w := newTestWorld(t)
	src, _ := fundedAccount(t, w, 100)
	dst, _ := fundedAccount(t, w, 0)

	err := w.Execute(func(tx *Transaction) error {
		return tx.Transfer(src, dst, 40, WalletAuthority(solana.NewWallet().PublicKey()))
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTransferInsufficientBalance(t *testing.T) {
	w := newTestWorld(t)
	src, owner := fundedAccount(t, w, 10)
	dst, _ := fundedAccount(t, w, 0)

	err := w.Execute(func(tx *Transaction) error {
		return tx.Transfer(src, dst, 40, WalletAuthority(owner))
	})
	assert.ErrorIs(t, err, ErrInsufficient)
}

func TestExecuteRollsBackEveryTouchedAccount(t *testing.T) {
	w := newTestWorld(t)
	a, aOwner := fundedAccount(t, w, 100)
	b, bOwner := fundedAccount(t, w, 50)
	c, _ := fundedAccount(t, w, 0)

	err := w.Execute(func(tx *Transaction) error {
		if err := tx.Transfer(a, c, 70, WalletAuthority(aOwner)); err != nil {
			return err
		}
		if err := tx.Transfer(b, c, 30, WalletAuthority(bOwner)); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	for address, want := range map[solana.PublicKey]uint64{a: 100, b: 50, c: 0} {
		got, err := w.Balance(address)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCreditOverflow(t *testing.T) {
	w := newTestWorld(t)
	addr, _ := fundedAccount(t, w, math.MaxUint64)

	err := w.Execute(func(tx *Transaction) error {
		return tx.Credit(addr, 1)
	})
	assert.ErrorIs(t, err, ErrMathOverflow)
}

func TestDeriveAuthorityIsDeterministic(t *testing.T) {
	programID := solana.NewWallet().PublicKey()

	a, err := DeriveAuthority(programID, [][]byte{[]byte("vault")})
	require.NoError(t, err)
	b, err := DeriveAuthority(programID, [][]byte{[]byte("vault")})
	require.NoError(t, err)

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.Bump(), b.Bump())
	assert.True(t, a.Derived())
	assert.False(t, WalletAuthority(programID).Derived())
}

func TestInstructionBlobValidate(t *testing.T) {
	blob := InstructionBlob{ProgramID: solana.NewWallet().PublicKey()}
	assert.ErrorIs(t, blob.Validate(), ErrEmptyInstruction)

	blob.Data = []byte{0x01}
	assert.NoError(t, blob.Validate())
}
