// Package tally turns votes into proposal results.
package tally

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/calehh/safesnap/types"
)

// vpTolerance bounds the relative drift allowed between vp and the sum of
// vp_by_strategy.
const vpTolerance = 1e-9

// ComputeResults tallies votes over strategies. Malformed votes are skipped
// and returned as errors wrapping types.ErrMalformedVote; the remaining votes
// are still counted.
func ComputeResults(votes []types.Vote, strategies []types.SpaceStrategy, nChoices int, proposalType string) (types.Results, []error) {
	res := types.Results{
		ScoresByStrategy: make([][]float64, len(strategies)),
		Scores:           make([]float64, nChoices),
	}
	for s := range strategies {
		res.ScoresByStrategy[s] = make([]float64, nChoices)
	}
	var errs []error
	for i := range votes {
		dist, err := checkVote(&votes[i], len(strategies), nChoices, proposalType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for s, vp := range votes[i].VpByStrategy {
			for c, w := range dist {
				res.ScoresByStrategy[s][c] += vp * w
			}
		}
	}
	for s := range res.ScoresByStrategy {
		for c, v := range res.ScoresByStrategy[s] {
			res.Scores[c] += v
		}
	}
	for _, v := range res.Scores {
		res.ScoresTotal += v
	}
	return res, errs
}

func checkVote(v *types.Vote, nStrategies, nChoices int, proposalType string) ([]float64, error) {
	if len(v.VpByStrategy) != nStrategies {
		return nil, fmt.Errorf("%w: voter %s has %d strategy scores, want %d", types.ErrMalformedVote, v.Voter, len(v.VpByStrategy), nStrategies)
	}
	sum := 0.0
	for _, vp := range v.VpByStrategy {
		if vp < 0 || math.IsNaN(vp) || math.IsInf(vp, 0) {
			return nil, fmt.Errorf("%w: voter %s has invalid strategy score %v", types.ErrMalformedVote, v.Voter, vp)
		}
		sum += vp
	}
	if math.Abs(sum-v.Vp) > vpTolerance*math.Max(1, math.Abs(v.Vp)) {
		return nil, fmt.Errorf("%w: voter %s vp %v does not match strategy sum %v", types.ErrMalformedVote, v.Voter, v.Vp, sum)
	}
	dist := v.Scores
	if len(dist) == 0 {
		var err error
		dist, err = ChoiceWeights(v.Choice, nChoices, proposalType)
		if err != nil {
			return nil, fmt.Errorf("%w: voter %s: %v", types.ErrMalformedVote, v.Voter, err)
		}
	}
	if len(dist) != nChoices {
		return nil, fmt.Errorf("%w: voter %s has %d choice scores, want %d", types.ErrMalformedVote, v.Voter, len(dist), nChoices)
	}
	for _, w := range dist {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: voter %s has invalid choice weight %v", types.ErrMalformedVote, v.Voter, w)
		}
	}
	return dist, nil
}

// ChoiceWeights converts a raw ballot into a per choice distribution.
// Choices are 1-based as they are on the wire. A single index is one-hot, a
// list splits the ballot equally, a map of index to weight is normalised.
func ChoiceWeights(raw json.RawMessage, nChoices int, proposalType string) ([]float64, error) {
	dist := make([]float64, nChoices)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty choice")
	}
	inRange := func(c int) error {
		if c < 1 || c > nChoices {
			return fmt.Errorf("choice %d out of range 1..%d", c, nChoices)
		}
		return nil
	}

	var single int
	if err := json.Unmarshal(raw, &single); err == nil {
		if err := inRange(single); err != nil {
			return nil, err
		}
		dist[single-1] = 1
		return dist, nil
	}

	var list []int
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, fmt.Errorf("empty %s choice", proposalType)
		}
		seen := make(map[int]bool, len(list))
		for _, c := range list {
			if err := inRange(c); err != nil {
				return nil, err
			}
			if seen[c] {
				return nil, fmt.Errorf("duplicate choice %d", c)
			}
			seen[c] = true
		}
		for _, c := range list {
			dist[c-1] = 1 / float64(len(list))
		}
		return dist, nil
	}

	var weighted map[string]float64
	if err := json.Unmarshal(raw, &weighted); err == nil {
		total := 0.0
		for k, w := range weighted {
			c, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("choice key %q", k)
			}
			if err := inRange(c); err != nil {
				return nil, err
			}
			if w < 0 {
				return nil, fmt.Errorf("negative weight for choice %d", c)
			}
			total += w
		}
		if total == 0 {
			return nil, fmt.Errorf("zero total weight")
		}
		for k, w := range weighted {
			// "1" and "01" name the same choice
			c, _ := strconv.Atoi(k)
			dist[c-1] += w / total
		}
		return dist, nil
	}
	return nil, fmt.Errorf("unsupported choice %s", string(raw))
}

// Dedupe keeps the latest vote of every voter. The result is ordered by voter.
func Dedupe(votes []types.Vote) []types.Vote {
	latest := make(map[string]types.Vote, len(votes))
	for _, v := range votes {
		if cur, ok := latest[v.Voter]; ok && cur.Created > v.Created {
			continue
		}
		latest[v.Voter] = v
	}
	out := make([]types.Vote, 0, len(latest))
	for _, v := range latest {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Voter < out[j].Voter })
	return out
}
