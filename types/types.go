package types

import (
	"encoding/json"
)

const ModuleName = "safesnap"

// Strategy identifies a published voting power algorithm. SpacesCount is
// maintained by the strategy registry, never by this service.
type Strategy struct {
	Id          string            `json:"id"`
	SpacesCount int               `json:"spacesCount"`
	Author      string            `json:"author"`
	Version     string            `json:"version"`
	About       string            `json:"about,omitempty"`
	Schema      json.RawMessage   `json:"schema,omitempty"`
	Examples    []StrategyExample `json:"examples,omitempty"`
}

type StrategyExample struct {
	Name      string          `json:"name"`
	Strategy  json.RawMessage `json:"strategy"`
	Network   string          `json:"network"`
	Addresses []string        `json:"addresses"`
	Snapshot  uint64          `json:"snapshot"`
}

// SpaceStrategy is a strategy instance bound to a network and parameters.
type SpaceStrategy struct {
	Name    string         `json:"name"`
	Network string         `json:"network"`
	Params  map[string]any `json:"params"`
}

func (s SpaceStrategy) Clone() SpaceStrategy {
	n := SpaceStrategy{Name: s.Name, Network: s.Network}
	if s.Params != nil {
		// params come from JSON so a round trip is a deep copy
		dat, err := json.Marshal(s.Params)
		if err == nil {
			_ = json.Unmarshal(dat, &n.Params)
		}
	}
	return n
}

type VotingSettings struct {
	Delay       int64   `json:"delay"`
	Period      int64   `json:"period"`
	Quorum      float64 `json:"quorum"`
	Type        string  `json:"type"`
	HideAbstain bool    `json:"hideAbstain"`
}

// Space holds the subset of space metadata the execution service reads.
// Parent and Children are space ids, resolved through whatever directory
// the caller owns.
type Space struct {
	Id         string                     `json:"id"`
	Name       string                     `json:"name"`
	Symbol     string                     `json:"symbol"`
	Network    string                     `json:"network"`
	Strategies []SpaceStrategy            `json:"strategies"`
	Admins     []string                   `json:"admins"`
	Members    []string                   `json:"members"`
	Parent     string                     `json:"parent,omitempty"`
	Children   []string                   `json:"children,omitempty"`
	Voting     VotingSettings             `json:"voting"`
	Plugins    map[string]json.RawMessage `json:"plugins,omitempty"`
}

// Vote is one voter's ballot. Scores is the distribution of the ballot over
// the proposal choices; when empty it is derived from Choice.
type Vote struct {
	Ipfs         string          `json:"ipfs,omitempty"`
	Voter        string          `json:"voter"`
	Choice       json.RawMessage `json:"choice"`
	Balance      float64         `json:"balance"`
	Scores       []float64       `json:"scores"`
	Vp           float64         `json:"vp"`
	VpByStrategy []float64       `json:"vp_by_strategy"`
	Created      int64           `json:"created"`
}

// Results is derived from votes and is never edited in place.
type Results struct {
	ScoresByStrategy [][]float64 `json:"scoresByStrategy"`
	Scores           []float64   `json:"scores"`
	ScoresTotal      float64     `json:"scoresTotal"`
}
