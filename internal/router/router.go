// Package router is the delegation/routing layer: both plain user swaps and
// treasury-delegated swaps funnel through the same aggregator-invocation path
// here, under different signing authorities.
package router

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/chain"
)

const (
	// MaxFeeRateBPS caps the user-swap fee at 10%.
	MaxFeeRateBPS  = 1000
	bpsDenominator = 10_000
)

var (
	ErrInvalidAggregatorProgram = errors.New("invalid aggregator program")
	ErrEmptyInstructionData     = errors.New("empty instruction data")
	ErrInvalidFeeRate           = errors.New("invalid fee rate")
	ErrDelegateAlreadyBound     = errors.New("delegate authority already bound")
	ErrUnauthorizedDelegation   = errors.New("delegated swap invoked outside the execution engine")
	ErrMathOverflow             = errors.New("math overflow")
)

// Stats is the router's running counters.
type Stats struct {
	Authority  solana.PublicKey
	FeeRateBPS uint16
	TotalSwaps uint64
}

// Router validates and dispatches swap instructions to the allow-listed
// aggregator program.
type Router struct {
	mu         sync.Mutex
	authority  solana.PublicKey
	aggregator chain.SwapProgram
	feeRateBPS uint16
	totalSwaps uint64
	delegate   *Delegation
	logger     *zap.Logger
}

// Config configures a Router.
type Config struct {
	Authority  solana.PublicKey
	Aggregator chain.SwapProgram
	FeeRateBPS uint16
	Logger     *zap.Logger
}

// New creates a Router. The fee rate must not exceed MaxFeeRateBPS.
func New(cfg Config) (*Router, error) {
	if cfg.FeeRateBPS > MaxFeeRateBPS {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidFeeRate, cfg.FeeRateBPS)
	}
	return &Router{
		authority:  cfg.Authority,
		aggregator: cfg.Aggregator,
		feeRateBPS: cfg.FeeRateBPS,
		logger:     cfg.Logger.Named("swap_router"),
	}, nil
}

// Delegation is the capability that authorizes treasury-delegated swaps. It
// is handed out exactly once, to the execution engine at wiring time; holding
// it is what distinguishes a nested engine call from an external caller.
type Delegation struct {
	router    *Router
	authority chain.Authority
}

// BindDelegate registers the treasury's program-derived authority and returns
// the one Delegation capability. A second call fails: the security boundary
// would be meaningless with two holders.
func (r *Router) BindDelegate(authority chain.Authority) (*Delegation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.delegate != nil {
		return nil, ErrDelegateAlreadyBound
	}
	d := &Delegation{router: r, authority: authority}
	r.delegate = d
	r.logger.Info("delegate authority bound",
		zap.String("authority", authority.Key().String()))
	return d, nil
}

// ExecuteUserSwap routes a swap signed by the caller's own authority.
func (r *Router) ExecuteUserSwap(tx *chain.Transaction, caller chain.Authority, blob chain.InstructionBlob) error {
	if err := r.validate(blob); err != nil {
		return err
	}
	if err := r.aggregator.Execute(tx, blob, caller); err != nil {
		return fmt.Errorf("aggregator swap: %w", err)
	}
	r.recordSwap()
	r.logger.Debug("user swap routed",
		zap.String("caller", caller.Key().String()),
		zap.Int("payload_bytes", len(blob.Data)))
	return nil
}

// ExecuteDelegatedSwap routes a swap under the treasury's derived authority.
// It is only callable with the Delegation capability minted by BindDelegate;
// any other invocation is a security-boundary violation, not a soft error.
func (r *Router) ExecuteDelegatedSwap(grant *Delegation, tx *chain.Transaction, blob chain.InstructionBlob) error {
	if grant == nil || grant.router != r {
		return ErrUnauthorizedDelegation
	}
	if err := r.validate(blob); err != nil {
		return err
	}
	if err := r.aggregator.Execute(tx, blob, grant.authority); err != nil {
		return fmt.Errorf("aggregator swap: %w", err)
	}
	r.recordSwap()
	r.logger.Debug("delegated swap routed",
		zap.String("authority", grant.authority.Key().String()),
		zap.Int("payload_bytes", len(blob.Data)))
	return nil
}

func (r *Router) validate(blob chain.InstructionBlob) error {
	if !blob.ProgramID.Equals(r.aggregator.ID()) {
		return fmt.Errorf("%w: %s", ErrInvalidAggregatorProgram, blob.ProgramID)
	}
	if err := blob.Validate(); err != nil {
		return ErrEmptyInstructionData
	}
	return nil
}

func (r *Router) recordSwap() {
	r.mu.Lock()
	r.totalSwaps++
	r.mu.Unlock()
}

// FeeFor returns the user-swap fee for a given input amount. Delegated swaps
// do not pay this fee; their split happens in the execution engine.
func (r *Router) FeeFor(amount uint64) (uint64, error) {
	return mulDivBPS(amount, uint64(r.feeRateBPS))
}

// NetAmount returns the amount left after the user-swap fee.
func (r *Router) NetAmount(amount uint64) (uint64, error) {
	fee, err := r.FeeFor(amount)
	if err != nil {
		return 0, err
	}
	return amount - fee, nil
}

// Stats returns a snapshot of the router counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Authority:  r.authority,
		FeeRateBPS: r.feeRateBPS,
		TotalSwaps: r.totalSwaps,
	}
}

func mulDivBPS(amount, bps uint64) (uint64, error) {
	product := amount * bps
	if bps != 0 && product/bps != amount {
		return 0, ErrMathOverflow
	}
	return product / bpsDenominator, nil
}
