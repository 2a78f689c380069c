// Package chain models the execution substrate the treasury programs run on:
// token accounts keyed by public key, all-or-nothing transactions, and
// derived signing authorities.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrUnauthorized    = errors.New("signer does not own source account")
	ErrInsufficient    = errors.New("insufficient balance")
	ErrMathOverflow    = errors.New("math overflow")
)

// TokenAccount holds a balance of a single mint on behalf of an owner
// authority. Only the owner may debit it.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Balance uint64
}

// World is the in-process bank. Every mutation goes through Execute, which
// guarantees the transaction is applied fully or not at all.
type World struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*TokenAccount
	logger   *zap.Logger
}

func NewWorld(logger *zap.Logger) *World {
	return &World{
		accounts: make(map[solana.PublicKey]*TokenAccount),
		logger:   logger.Named("chain"),
	}
}

// CreateTokenAccount registers a new token account for the given mint and owner.
func (w *World) CreateTokenAccount(address, mint, owner solana.PublicKey) (*TokenAccount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.accounts[address]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, address)
	}
	acc := &TokenAccount{Address: address, Mint: mint, Owner: owner}
	w.accounts[address] = acc
	return acc, nil
}

// MintTo credits freshly minted tokens to an account, outside any transaction.
// Intended for wiring and tests.
func (w *World) MintTo(address solana.PublicKey, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	acc, ok := w.accounts[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	next, ok := checkedAdd(acc.Balance, amount)
	if !ok {
		return ErrMathOverflow
	}
	acc.Balance = next
	return nil
}

// Balance returns the current balance of an account.
func (w *World) Balance(address solana.PublicKey) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	acc, ok := w.accounts[address]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return acc.Balance, nil
}

// Mint returns the mint an account holds.
func (w *World) Mint(address solana.PublicKey) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	acc, ok := w.accounts[address]
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return acc.Mint, nil
}

// Execute runs fn inside a transaction. If fn returns an error, every account
// touched by the transaction is restored to its pre-transaction balance and
// the error is returned unchanged. Transactions are serialized against each
// other, matching the ledger network's per-account concurrency control.
func (w *World) Execute(fn func(tx *Transaction) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx := &Transaction{world: w, snapshots: make(map[solana.PublicKey]uint64)}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Transaction is a unit of atomic balance mutation. It snapshots every
// account before first touching it so a failing step can revert the whole
// unit, including movements done by delegated programs.
type Transaction struct {
	world     *World
	snapshots map[solana.PublicKey]uint64
}

func (tx *Transaction) account(address solana.PublicKey) (*TokenAccount, error) {
	acc, ok := tx.world.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if _, snapped := tx.snapshots[address]; !snapped {
		tx.snapshots[address] = acc.Balance
	}
	return acc, nil
}

// Balance reads an account balance as seen inside the transaction.
func (tx *Transaction) Balance(address solana.PublicKey) (uint64, error) {
	acc, err := tx.account(address)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Mint reads the mint of an account.
func (tx *Transaction) Mint(address solana.PublicKey) (solana.PublicKey, error) {
	acc, err := tx.account(address)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return acc.Mint, nil
}

// Transfer moves amount from one token account to another. The signer must be
// the owner authority of the source account.
func (tx *Transaction) Transfer(from, to solana.PublicKey, amount uint64, signer Authority) error {
	src, err := tx.account(from)
	if err != nil {
		return err
	}
	dst, err := tx.account(to)
	if err != nil {
		return err
	}
	if !signer.Key().Equals(src.Owner) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, signer.Key())
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficient, src.Balance, amount)
	}
	next, ok := checkedAdd(dst.Balance, amount)
	if !ok {
		return ErrMathOverflow
	}
	src.Balance -= amount
	dst.Balance = next
	return nil
}

// Credit adds tokens to an account without a source, used by swap program
// fakes to model output legs.
func (tx *Transaction) Credit(address solana.PublicKey, amount uint64) error {
	acc, err := tx.account(address)
	if err != nil {
		return err
	}
	next, ok := checkedAdd(acc.Balance, amount)
	if !ok {
		return ErrMathOverflow
	}
	acc.Balance = next
	return nil
}

// Debit removes tokens from an account under the owner's authority.
func (tx *Transaction) Debit(address solana.PublicKey, amount uint64, signer Authority) error {
	acc, err := tx.account(address)
	if err != nil {
		return err
	}
	if !signer.Key().Equals(acc.Owner) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, signer.Key())
	}
	if acc.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficient, acc.Balance, amount)
	}
	acc.Balance -= amount
	return nil
}

func (tx *Transaction) rollback() {
	for address, balance := range tx.snapshots {
		if acc, ok := tx.world.accounts[address]; ok {
			acc.Balance = balance
		}
	}
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
