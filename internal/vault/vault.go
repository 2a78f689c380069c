// Package vault implements the share-accounted treasury ledger and the
// atomic arbitrage execution engine that mutates it.
package vault

import (
	"fmt"
	"math/bits"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/chain"
	"github.com/atomx-labs/atomx/internal/router"
)

// DefaultExecutorFeeBPS is the executor's share of arbitrage profit.
const DefaultExecutorFeeBPS = 1000

var treasurySeed = []byte("vault")

// Service owns the treasury state and exposes the ledger operations. Every
// mutation runs inside a chain.World transaction, so the only observable
// outcomes are fully applied or fully reverted.
type Service struct {
	mu sync.Mutex

	world      *chain.World
	router     *router.Router
	delegation *router.Delegation
	sink       EventSink
	logger     *zap.Logger

	programID      solana.PublicKey
	baseMint       solana.PublicKey
	vaultToken     solana.PublicKey
	authority      chain.Authority
	executorFeeBPS uint64

	treasury  *Treasury
	positions map[solana.PublicKey]*Position

	now func() time.Time
}

// Config configures a vault Service.
type Config struct {
	World          *chain.World
	Router         *router.Router
	Sink           EventSink
	Logger         *zap.Logger
	ProgramID      solana.PublicKey
	BaseMint       solana.PublicKey
	ExecutorFeeBPS uint64
}

// NewService derives the treasury's signing authority, creates its working
// token account, and claims the router's delegation capability. The treasury
// record itself is created later by InitializeTreasury.
func NewService(cfg Config) (*Service, error) {
	authority, err := chain.DeriveAuthority(cfg.ProgramID, [][]byte{treasurySeed})
	if err != nil {
		return nil, fmt.Errorf("derive treasury authority: %w", err)
	}

	vaultToken, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("vault_token"), cfg.BaseMint.Bytes()}, cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive vault token address: %w", err)
	}
	if _, err := cfg.World.CreateTokenAccount(vaultToken, cfg.BaseMint, authority.Key()); err != nil {
		return nil, fmt.Errorf("create vault token account: %w", err)
	}

	delegation, err := cfg.Router.BindDelegate(authority)
	if err != nil {
		return nil, fmt.Errorf("bind delegate: %w", err)
	}

	feeBPS := cfg.ExecutorFeeBPS
	if feeBPS == 0 {
		feeBPS = DefaultExecutorFeeBPS
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}

	return &Service{
		world:          cfg.World,
		router:         cfg.Router,
		delegation:     delegation,
		sink:           sink,
		logger:         cfg.Logger.Named("vault"),
		programID:      cfg.ProgramID,
		baseMint:       cfg.BaseMint,
		vaultToken:     vaultToken,
		authority:      authority,
		executorFeeBPS: feeBPS,
		positions:      make(map[solana.PublicKey]*Position),
		now:            time.Now,
	}, nil
}

// InitializeTreasury creates the treasury record with zero outstanding shares
// and registers the delegate authority. Calling it twice is an idempotency
// error, not a crash.
func (s *Service) InitializeTreasury(authority, delegateAuthority solana.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.treasury != nil {
		return ErrAlreadyInitialized
	}
	s.treasury = &Treasury{
		Authority:         authority,
		DelegateAuthority: delegateAuthority,
		TotalShares:       0,
		Bump:              s.authority.Bump(),
	}
	s.logger.Info("treasury initialized",
		zap.String("authority", authority.String()),
		zap.String("delegate", delegateAuthority.String()))
	return nil
}

// VaultTokenAccount returns the treasury's working token account address.
func (s *Service) VaultTokenAccount() solana.PublicKey { return s.vaultToken }

// TreasuryState returns a copy of the treasury record.
func (s *Service) TreasuryState() (Treasury, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.treasury == nil {
		return Treasury{}, ErrNotInitialized
	}
	return *s.treasury, nil
}

// PositionOf returns a copy of the owner's position. Owners without a
// position report zero shares.
func (s *Service) PositionOf(owner solana.PublicKey) Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.positions[owner]; ok {
		return *p
	}
	return Position{Owner: owner}
}

// Deposit transfers amount of the base asset from the owner's token account
// into treasury custody and mints shares proportional to the treasury
// balance before the deposit. The ledger entry and the asset transfer commit
// as one unit.
func (s *Service) Deposit(owner, ownerToken solana.PublicKey, amount uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.treasury == nil {
		return 0, ErrNotInitialized
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	var minted uint64
	err := s.world.Execute(func(tx *chain.Transaction) error {
		mint, err := tx.Mint(ownerToken)
		if err != nil {
			return err
		}
		if !mint.Equals(s.baseMint) {
			return ErrInvalidAssetMint
		}

		balanceBefore, err := tx.Balance(s.vaultToken)
		if err != nil {
			return err
		}

		shares := amount
		if s.treasury.TotalShares != 0 {
			shares, err = mulDiv(amount, s.treasury.TotalShares, balanceBefore)
			if err != nil {
				return err
			}
		}

		if err := tx.Transfer(ownerToken, s.vaultToken, amount, chain.WalletAuthority(owner)); err != nil {
			return fmt.Errorf("deposit transfer: %w", err)
		}

		pos, ok := s.positions[owner]
		if !ok {
			pos = &Position{Owner: owner}
		}
		nextShares, overflow := addChecked(pos.Shares, shares)
		if overflow {
			return ErrMathOverflow
		}
		nextTotal, overflow := addChecked(s.treasury.TotalShares, shares)
		if overflow {
			return ErrMathOverflow
		}
		pos.Shares = nextShares
		s.positions[owner] = pos
		s.treasury.TotalShares = nextTotal
		minted = shares
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.sink.Append(Deposited{User: owner, Amount: amount, Shares: minted, At: s.now()})
	s.logger.Info("deposit",
		zap.String("owner", owner.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("shares", minted))
	return minted, nil
}

// Withdraw burns shares from the owner's position and pays out the
// proportional slice of the treasury balance. Rounding always favors the
// treasury; withdrawing every outstanding share drains the balance exactly.
func (s *Service) Withdraw(owner, ownerToken solana.PublicKey, shares uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.treasury == nil {
		return 0, ErrNotInitialized
	}
	if shares == 0 {
		return 0, ErrInvalidAmount
	}
	pos, ok := s.positions[owner]
	if !ok || pos.Shares < shares {
		return 0, ErrInsufficientShares
	}

	var paid uint64
	err := s.world.Execute(func(tx *chain.Transaction) error {
		balance, err := tx.Balance(s.vaultToken)
		if err != nil {
			return err
		}

		amount := balance
		if shares != s.treasury.TotalShares {
			amount, err = mulDiv(shares, balance, s.treasury.TotalShares)
			if err != nil {
				return err
			}
		}

		if err := tx.Transfer(s.vaultToken, ownerToken, amount, s.authority); err != nil {
			return fmt.Errorf("withdraw transfer: %w", err)
		}

		pos.Shares -= shares
		s.treasury.TotalShares -= shares
		paid = amount
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.sink.Append(Withdrawn{User: owner, Amount: paid, Shares: shares, At: s.now()})
	s.logger.Info("withdraw",
		zap.String("owner", owner.String()),
		zap.Uint64("shares", shares),
		zap.Uint64("amount", paid))
	return paid, nil
}

// mulDiv computes floor(a*b/c) with a 128-bit intermediate.
func mulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrMathOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrMathOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

func addChecked(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}
