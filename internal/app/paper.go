package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/atomx-labs/atomx/internal/chain"
	"github.com/atomx-labs/atomx/internal/detector"
)

// paperFill is the payload of a paper-traded swap instruction: the fill the
// aggregator is expected to produce. Only the paper aggregator ever decodes
// it; everything upstream treats the bytes as opaque.
type paperFill struct {
	Account string `json:"account"`
	Credit  uint64 `json:"credit"`
}

// paperAggregator stands in for the aggregator program when the daemon runs
// against the in-process world. It applies the planned fill to the target
// account under the transaction's atomicity.
type paperAggregator struct {
	id solana.PublicKey
}

func (p *paperAggregator) ID() solana.PublicKey { return p.id }

func (p *paperAggregator) Execute(tx *chain.Transaction, blob chain.InstructionBlob, _ chain.Authority) error {
	var fill paperFill
	if err := json.Unmarshal(blob.Data, &fill); err != nil {
		return fmt.Errorf("decode fill: %w", err)
	}
	account, err := solana.PublicKeyFromBase58(fill.Account)
	if err != nil {
		return fmt.Errorf("parse fill account: %w", err)
	}
	return tx.Credit(account, fill.Credit)
}

// paperPlanner converts a detected opportunity into a paper fill against the
// treasury's working account. The minimum-profit bound is set to half the
// expected profit, so executions where the edge has mostly evaporated fail
// with a profit shortfall instead of capturing dust.
type paperPlanner struct {
	aggregatorID solana.PublicKey
	vaultToken   solana.PublicKey
	solPriceUSD  float64
}

func (p *paperPlanner) Plan(_ context.Context, opp detector.Opportunity) (chain.InstructionBlob, uint64, error) {
	if p.solPriceUSD <= 0 {
		return chain.InstructionBlob{}, 0, fmt.Errorf("invalid sol price %f", p.solPriceUSD)
	}
	profitLamports := uint64(opp.ProfitUSD / p.solPriceUSD * float64(solana.LAMPORTS_PER_SOL))
	if profitLamports == 0 {
		return chain.InstructionBlob{}, 0, fmt.Errorf("opportunity too small to plan")
	}

	payload, err := json.Marshal(paperFill{Account: p.vaultToken.String(), Credit: profitLamports})
	if err != nil {
		return chain.InstructionBlob{}, 0, fmt.Errorf("encode fill: %w", err)
	}

	minProfit := profitLamports/2 + 1
	return chain.InstructionBlob{
		ProgramID: p.aggregatorID,
		Data:      payload,
	}, minProfit, nil
}
