package types

import (
	"encoding/json"
	"fmt"
	"time"
)

type ProposalState string

const (
	ProposalStatePending ProposalState = "pending"
	ProposalStateActive  ProposalState = "active"
	ProposalStateClosed  ProposalState = "closed"
)

type ScoresState string

const (
	ScoresStatePending   ScoresState = "pending"
	ScoresStateComputing ScoresState = "computing"
	ScoresStateFinal     ScoresState = "final"
)

const SafeSnapPluginKey = "safeSnap"

type Proposal struct {
	Id               string                     `json:"id"`
	Title            string                     `json:"title"`
	Author           string                     `json:"author"`
	Network          string                     `json:"network"`
	Type             string                     `json:"type"`
	Choices          []string                   `json:"choices"`
	Snapshot         uint64                     `json:"snapshot"`
	Created          int64                      `json:"created"`
	Start            int64                      `json:"start"`
	End              int64                      `json:"end"`
	State            ProposalState              `json:"state"`
	Quorum           float64                    `json:"quorum"`
	Scores           []float64                  `json:"scores"`
	ScoresByStrategy [][]float64                `json:"scores_by_strategy"`
	ScoresTotal      float64                    `json:"scores_total"`
	ScoresState      ScoresState                `json:"scores_state"`
	Votes            int                        `json:"votes"`
	Space            string                     `json:"space"`
	Strategies       []SpaceStrategy            `json:"strategies"`
	Plugins          map[string]json.RawMessage `json:"plugins,omitempty"`
}

// NewProposal creates a proposal in space, copying the space strategies so
// that later edits of the space never change how the proposal is scored.
func NewProposal(id string, space *Space, choices []string, snapshot uint64, start, end int64) *Proposal {
	strategies := make([]SpaceStrategy, len(space.Strategies))
	for i, s := range space.Strategies {
		strategies[i] = s.Clone()
	}
	return &Proposal{
		Id:          id,
		Network:     space.Network,
		Type:        "single-choice",
		Choices:     append([]string(nil), choices...),
		Snapshot:    snapshot,
		Created:     time.Now().Unix(),
		Start:       start,
		End:         end,
		State:       ProposalStatePending,
		Quorum:      space.Voting.Quorum,
		ScoresState: ScoresStatePending,
		Space:       space.Id,
		Strategies:  strategies,
	}
}

// StateAt derives the lifecycle state of the proposal at unix time now.
func (p *Proposal) StateAt(now int64) ProposalState {
	switch {
	case now < p.Start:
		return ProposalStatePending
	case now < p.End:
		return ProposalStateActive
	default:
		return ProposalStateClosed
	}
}

// Results returns the stored tally of the proposal.
func (p *Proposal) Results() Results {
	return Results{
		ScoresByStrategy: p.ScoresByStrategy,
		Scores:           p.Scores,
		ScoresTotal:      p.ScoresTotal,
	}
}

// SafeSnapPlugin is the execution payload attached to a proposal.
type SafeSnapPlugin struct {
	Safes []SafeExecutionData `json:"safes"`
}

func (p *Proposal) SafeSnap() (*SafeSnapPlugin, error) {
	raw, ok := p.Plugins[SafeSnapPluginKey]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", p.Id, ErrNoExecutionPlugin)
	}
	var plugin SafeSnapPlugin
	if err := json.Unmarshal(raw, &plugin); err != nil {
		return nil, fmt.Errorf("proposal %s: decode %s plugin: %w", p.Id, SafeSnapPluginKey, err)
	}
	return &plugin, nil
}
