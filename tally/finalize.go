package tally

import (
	"fmt"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
)

type Tallier struct {
	logger log.Logger
}

func NewTallier(logger log.Logger) *Tallier {
	return &Tallier{logger: logger.With("module", "tally")}
}

// Tally recomputes the results of an open or closed proposal without marking
// them final.
func (t *Tallier) Tally(p *types.Proposal, votes []types.Vote) (types.Results, error) {
	if p.ScoresState == types.ScoresStateFinal {
		return types.Results{}, fmt.Errorf("proposal %s: %w", p.Id, types.ErrScoresFinal)
	}
	votes = Dedupe(votes)
	res, errs := ComputeResults(votes, p.Strategies, len(p.Choices), p.Type)
	for _, err := range errs {
		t.logger.Error("skip vote", "proposal", p.Id, "err", err)
	}
	return res, nil
}

// Finalize tallies a closed proposal and freezes its scores.
func (t *Tallier) Finalize(p *types.Proposal, votes []types.Vote, now int64) error {
	if p.ScoresState == types.ScoresStateFinal {
		return fmt.Errorf("proposal %s: %w", p.Id, types.ErrScoresFinal)
	}
	p.State = p.StateAt(now)
	if p.State != types.ProposalStateClosed {
		return fmt.Errorf("proposal %s is %s: %w", p.Id, p.State, types.ErrProposalNotClosed)
	}
	p.ScoresState = types.ScoresStateComputing
	res, err := t.Tally(p, votes)
	if err != nil {
		return err
	}
	p.Scores = res.Scores
	p.ScoresByStrategy = res.ScoresByStrategy
	p.ScoresTotal = res.ScoresTotal
	p.Votes = len(Dedupe(votes))
	p.ScoresState = types.ScoresStateFinal
	t.logger.Info("proposal scores final", "proposal", p.Id, "scores", res.Scores, "total", res.ScoresTotal)
	return nil
}

// Policy decides whether final results authorise execution.
type Policy struct {
	// ApproveChoice is the 0-based index of the choice that approves execution.
	ApproveChoice int
	// Quorum overrides the proposal quorum when positive.
	Quorum float64
}

func DefaultPolicy() Policy {
	return Policy{ApproveChoice: 0}
}

// Passed requires final scores, the approving choice strictly ahead of every
// other choice, and the approving score to meet the quorum.
func (pol Policy) Passed(p *types.Proposal) error {
	if p.ScoresState != types.ScoresStateFinal {
		return fmt.Errorf("proposal %s: %w", p.Id, types.ErrScoresNotFinal)
	}
	if pol.ApproveChoice < 0 || pol.ApproveChoice >= len(p.Scores) {
		return fmt.Errorf("proposal %s: approve choice %d out of range: %w", p.Id, pol.ApproveChoice, types.ErrProposalNotPassed)
	}
	approve := p.Scores[pol.ApproveChoice]
	for c, s := range p.Scores {
		if c != pol.ApproveChoice && s >= approve {
			return fmt.Errorf("proposal %s: choice %d scored %v against %v: %w", p.Id, c, s, approve, types.ErrProposalNotPassed)
		}
	}
	quorum := p.Quorum
	if pol.Quorum > 0 {
		quorum = pol.Quorum
	}
	if approve < quorum {
		return fmt.Errorf("proposal %s: %v below quorum %v: %w", p.Id, approve, quorum, types.ErrProposalNotPassed)
	}
	return nil
}
