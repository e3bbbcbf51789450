package tally

import (
	"context"
	"fmt"

	"github.com/calehh/safesnap/types"
)

// Scorer computes voting power per account at a snapshot block. It is
// implemented by the strategy runtime outside this service.
type Scorer interface {
	Score(ctx context.Context, strategy types.SpaceStrategy, accounts []string, snapshot uint64) (map[string]float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, strategy types.SpaceStrategy, accounts []string, snapshot uint64) (map[string]float64, error)

func (f ScorerFunc) Score(ctx context.Context, strategy types.SpaceStrategy, accounts []string, snapshot uint64) (map[string]float64, error) {
	return f(ctx, strategy, accounts, snapshot)
}

// VotingPower fills Vp and VpByStrategy of votes, one scorer call per
// strategy. Accounts missing from a strategy result have zero power for it.
func VotingPower(ctx context.Context, scorer Scorer, strategies []types.SpaceStrategy, snapshot uint64, votes []types.Vote) error {
	accounts := make([]string, len(votes))
	for i := range votes {
		accounts[i] = votes[i].Voter
		votes[i].VpByStrategy = make([]float64, len(strategies))
		votes[i].Vp = 0
	}
	for s, strategy := range strategies {
		scores, err := scorer.Score(ctx, strategy, accounts, snapshot)
		if err != nil {
			return fmt.Errorf("strategy %s at %d: %w", strategy.Name, snapshot, err)
		}
		for i := range votes {
			vp := scores[votes[i].Voter]
			votes[i].VpByStrategy[s] = vp
			votes[i].Vp += vp
		}
	}
	for i := range votes {
		votes[i].Balance = votes[i].Vp
	}
	return nil
}
