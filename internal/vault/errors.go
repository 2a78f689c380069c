package vault

import "errors"

var (
	ErrAlreadyInitialized = errors.New("treasury already initialized")
	ErrNotInitialized     = errors.New("treasury not initialized")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientShares = errors.New("insufficient shares to withdraw")
	ErrMathOverflow       = errors.New("math overflow")
	ErrInvalidAssetMint   = errors.New("invalid asset mint")
	ErrZeroBalance        = errors.New("treasury balance is zero")
	ErrInvalidMinProfit   = errors.New("minimum profit must be greater than zero")
	ErrInsufficientProfit = errors.New("insufficient profit from arbitrage")
)
