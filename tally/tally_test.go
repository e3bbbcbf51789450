package tally

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strategies(n int) []types.SpaceStrategy {
	s := make([]types.SpaceStrategy, n)
	for i := range s {
		s[i] = types.SpaceStrategy{Name: "erc20-balance-of", Network: "1"}
	}
	return s
}

func vote(voter string, choice string, created int64, vp ...float64) types.Vote {
	total := 0.0
	for _, v := range vp {
		total += v
	}
	return types.Vote{
		Voter:        voter,
		Choice:       json.RawMessage(choice),
		Vp:           total,
		VpByStrategy: vp,
		Created:      created,
	}
}

func closedProposal() *types.Proposal {
	return &types.Proposal{
		Id:          "0xp1",
		Type:        "single-choice",
		Choices:     []string{"For", "Against"},
		Start:       100,
		End:         200,
		ScoresState: types.ScoresStatePending,
		Strategies:  strategies(1),
	}
}

func TestComputeResultsSingleChoice(t *testing.T) {
	votes := []types.Vote{
		vote("0xa", "1", 1, 10),
		vote("0xb", "2", 1, 5),
	}
	res, errs := ComputeResults(votes, strategies(1), 2, "single-choice")
	require.Empty(t, errs)
	assert.Equal(t, []float64{10, 5}, res.Scores)
	assert.Equal(t, 15.0, res.ScoresTotal)
	assert.Equal(t, [][]float64{{10, 5}}, res.ScoresByStrategy)
}

func TestComputeResultsSumsStrategies(t *testing.T) {
	votes := []types.Vote{
		vote("0xa", "1", 1, 3, 4),
		vote("0xb", "[1,2]", 1, 2, 2),
		vote("0xc", `{"1":1,"2":3}`, 1, 8, 0),
	}
	res, errs := ComputeResults(votes, strategies(2), 2, "approval")
	require.Empty(t, errs)
	assert.InDelta(t, 3+1+2, res.ScoresByStrategy[0][0], 1e-9)
	assert.InDelta(t, 1+6, res.ScoresByStrategy[0][1], 1e-9)
	assert.InDelta(t, 4+1, res.ScoresByStrategy[1][0], 1e-9)
	assert.InDelta(t, 1, res.ScoresByStrategy[1][1], 1e-9)

	for c := range res.Scores {
		sum := 0.0
		for s := range res.ScoresByStrategy {
			sum += res.ScoresByStrategy[s][c]
		}
		assert.InDelta(t, sum, res.Scores[c], 1e-9)
	}
	assert.InDelta(t, 3+4+2+2+8, res.ScoresTotal, 1e-9)
}

func TestComputeResultsSkipsMalformed(t *testing.T) {
	bad := vote("0xbad", "1", 1, 10)
	bad.Vp = 99
	votes := []types.Vote{
		vote("0xa", "1", 1, 10),
		bad,
		vote("0xc", "3", 1, 1),
		vote("0xd", "1", 1, 1, 1),
	}
	res, errs := ComputeResults(votes, strategies(1), 2, "single-choice")
	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, types.ErrMalformedVote)
	}
	assert.Equal(t, []float64{10, 0}, res.Scores)
}

func TestChoiceWeights(t *testing.T) {
	dist, err := ChoiceWeights(json.RawMessage("2"), 3, "single-choice")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, dist)

	dist, err = ChoiceWeights(json.RawMessage("[1,3]"), 3, "approval")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 0.5}, dist)

	dist, err = ChoiceWeights(json.RawMessage(`{"1":1,"2":1,"3":2}`), 3, "weighted")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.5}, dist)

	for _, raw := range []string{"0", "4", "[]", "[1,1]", `{"1":0}`, `{"x":1}`, `"yes"`} {
		_, err := ChoiceWeights(json.RawMessage(raw), 3, "approval")
		assert.Error(t, err, raw)
	}
}

func TestChoiceWeightsMergesEquivalentKeys(t *testing.T) {
	dist, err := ChoiceWeights(json.RawMessage(`{"1":1,"01":1,"2":2}`), 2, "weighted")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, dist, 1e-12)

	sum := 0.0
	for _, w := range dist {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestDedupeKeepsLatest(t *testing.T) {
	votes := []types.Vote{
		vote("0xb", "1", 5, 1),
		vote("0xa", "1", 1, 1),
		vote("0xa", "2", 3, 1),
		vote("0xa", "1", 2, 1),
	}
	out := Dedupe(votes)
	require.Len(t, out, 2)
	assert.Equal(t, "0xa", out[0].Voter)
	assert.Equal(t, json.RawMessage("2"), out[0].Choice)
	assert.Equal(t, "0xb", out[1].Voter)
}

func TestFinalize(t *testing.T) {
	tl := NewTallier(log.NewNopLogger())
	p := closedProposal()
	votes := []types.Vote{vote("0xa", "1", 1, 10), vote("0xb", "2", 1, 5)}

	err := tl.Finalize(p, votes, 150)
	require.ErrorIs(t, err, types.ErrProposalNotClosed)
	assert.Equal(t, types.ProposalStateActive, p.State)

	require.NoError(t, tl.Finalize(p, votes, 200))
	assert.Equal(t, types.ScoresStateFinal, p.ScoresState)
	assert.Equal(t, types.ProposalStateClosed, p.State)
	assert.Equal(t, []float64{10, 5}, p.Scores)
	assert.Equal(t, 15.0, p.ScoresTotal)
	assert.Equal(t, 2, p.Votes)

	err = tl.Finalize(p, votes, 300)
	require.ErrorIs(t, err, types.ErrScoresFinal)
	_, err = tl.Tally(p, votes)
	require.ErrorIs(t, err, types.ErrScoresFinal)
}

func TestPolicyPassed(t *testing.T) {
	p := closedProposal()
	p.Scores = []float64{10, 5}
	require.ErrorIs(t, DefaultPolicy().Passed(p), types.ErrScoresNotFinal)

	p.ScoresState = types.ScoresStateFinal
	require.NoError(t, DefaultPolicy().Passed(p))

	require.ErrorIs(t, Policy{ApproveChoice: 1}.Passed(p), types.ErrProposalNotPassed)
	require.ErrorIs(t, Policy{ApproveChoice: 2}.Passed(p), types.ErrProposalNotPassed)
	require.ErrorIs(t, Policy{Quorum: 11}.Passed(p), types.ErrProposalNotPassed)

	p.Quorum = 20
	require.ErrorIs(t, DefaultPolicy().Passed(p), types.ErrProposalNotPassed)
	require.NoError(t, Policy{Quorum: 10}.Passed(p))

	p.Quorum = 0
	p.Scores = []float64{5, 5}
	require.ErrorIs(t, DefaultPolicy().Passed(p), types.ErrProposalNotPassed)
}

func TestVotingPower(t *testing.T) {
	scorer := ScorerFunc(func(ctx context.Context, strategy types.SpaceStrategy, accounts []string, snapshot uint64) (map[string]float64, error) {
		assert.Equal(t, uint64(42), snapshot)
		if strategy.Name == "delegation" {
			return map[string]float64{"0xa": 1}, nil
		}
		return map[string]float64{"0xa": 2, "0xb": 3}, nil
	})
	strats := []types.SpaceStrategy{{Name: "erc20-balance-of"}, {Name: "delegation"}}
	votes := []types.Vote{{Voter: "0xa"}, {Voter: "0xb"}}
	require.NoError(t, VotingPower(context.Background(), scorer, strats, 42, votes))
	assert.Equal(t, []float64{2, 1}, votes[0].VpByStrategy)
	assert.Equal(t, 3.0, votes[0].Vp)
	assert.Equal(t, []float64{3, 0}, votes[1].VpByStrategy)
	assert.Equal(t, 3.0, votes[1].Vp)

	failing := ScorerFunc(func(ctx context.Context, strategy types.SpaceStrategy, accounts []string, snapshot uint64) (map[string]float64, error) {
		return nil, errors.New("rpc down")
	})
	require.Error(t, VotingPower(context.Background(), failing, strats, 42, votes))
}
