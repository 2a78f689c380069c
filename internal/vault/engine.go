package vault

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/chain"
)

// ArbitrageResult reports the outcome of a successful arbitrage execution.
type ArbitrageResult struct {
	Profit         uint64
	ExecutorFee    uint64
	TreasuryProfit uint64
}

// ExecuteArbitrage performs the snapshot → delegated swap → revalidation →
// fee split sequence as one atomic unit. The swap instruction payload is
// treated as untrusted input; the engine never interprets it, only forwards
// it to the router under the treasury's derived authority. Any failure,
// including a profit below minProfit, reverts every balance the delegated
// swap touched. There are no retries here: a failed call returns control to
// the off-chain executor, which decides whether to re-scan.
func (s *Service) ExecuteArbitrage(executor, executorToken solana.PublicKey, blob chain.InstructionBlob, minProfit uint64) (ArbitrageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.treasury == nil {
		return ArbitrageResult{}, ErrNotInitialized
	}
	if minProfit == 0 {
		return ArbitrageResult{}, ErrInvalidMinProfit
	}

	var result ArbitrageResult
	err := s.world.Execute(func(tx *chain.Transaction) error {
		vaultMint, err := tx.Mint(s.vaultToken)
		if err != nil {
			return err
		}
		executorMint, err := tx.Mint(executorToken)
		if err != nil {
			return err
		}
		if !vaultMint.Equals(s.baseMint) || !executorMint.Equals(s.baseMint) {
			return ErrInvalidAssetMint
		}

		initialBalance, err := tx.Balance(s.vaultToken)
		if err != nil {
			return err
		}
		if initialBalance == 0 {
			return ErrZeroBalance
		}

		if err := s.router.ExecuteDelegatedSwap(s.delegation, tx, blob); err != nil {
			return fmt.Errorf("delegated swap: %w", err)
		}

		finalBalance, err := tx.Balance(s.vaultToken)
		if err != nil {
			return err
		}
		if finalBalance <= initialBalance {
			return ErrInsufficientProfit
		}
		profit := finalBalance - initialBalance
		if profit < minProfit {
			return ErrInsufficientProfit
		}

		executorFee, err := mulDiv(profit, s.executorFeeBPS, 10_000)
		if err != nil {
			return err
		}
		if err := tx.Transfer(s.vaultToken, executorToken, executorFee, s.authority); err != nil {
			return fmt.Errorf("executor fee transfer: %w", err)
		}

		// The remainder stays in custody, raising the value behind existing
		// shares. No shares are minted for profit.
		result = ArbitrageResult{
			Profit:         profit,
			ExecutorFee:    executorFee,
			TreasuryProfit: profit - executorFee,
		}
		return nil
	})
	if err != nil {
		return ArbitrageResult{}, err
	}

	s.sink.Append(ArbitrageExecuted{
		Executor:       executor,
		Profit:         result.Profit,
		ExecutorFee:    result.ExecutorFee,
		TreasuryProfit: result.TreasuryProfit,
		At:             s.now(),
	})
	s.logger.Info("arbitrage executed",
		zap.String("executor", executor.String()),
		zap.Uint64("profit", result.Profit),
		zap.Uint64("executor_fee", result.ExecutorFee),
		zap.Uint64("treasury_profit", result.TreasuryProfit))
	return result, nil
}

// ExecuteUserSwap routes a swap under the caller's own authority. It exists
// so non-treasury swaps share the router's validation path.
func (s *Service) ExecuteUserSwap(caller solana.PublicKey, blob chain.InstructionBlob) error {
	return s.world.Execute(func(tx *chain.Transaction) error {
		return s.router.ExecuteUserSwap(tx, chain.WalletAuthority(caller), blob)
	})
}
