package main

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/config"
	"github.com/calehh/safesnap/crypto"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswer(t *testing.T) {
	a, err := parseAnswer("yes")
	require.NoError(t, err)
	assert.Equal(t, chain.AnswerYes, a)
	a, err = parseAnswer("no")
	require.NoError(t, err)
	assert.Equal(t, chain.AnswerNo, a)
	a, err = parseAnswer(chain.AnswerInvalid.Hex())
	require.NoError(t, err)
	assert.Equal(t, chain.AnswerInvalid, a)
	_, err = parseAnswer("maybe")
	assert.Error(t, err)
}

func TestInitWritesConfigAndKey(t *testing.T) {
	home := t.TempDir()
	initArgs = InitArgs{Home: home, ChainId: 100}
	require.NoError(t, initRun(initCmd, nil))

	cfg, err := config.Load(home)
	require.NoError(t, err)
	require.Len(t, cfg.Networks, 1)
	assert.Equal(t, "100", cfg.Networks[0].Name)
	assert.Equal(t, uint64(100), cfg.Networks[0].ChainId)

	key, err := crypto.LoadFileKey(cfg.KeyFile())
	require.NoError(t, err)

	require.Error(t, initRun(initCmd, nil))
	initArgs.Overwrite = true
	require.NoError(t, initRun(initCmd, nil))
	again, err := crypto.LoadFileKey(cfg.KeyFile())
	require.NoError(t, err)
	assert.Equal(t, key.Address(), again.Address())
}

func TestOpenMockNode(t *testing.T) {
	home := t.TempDir()
	initArgs = InitArgs{Home: home}
	require.NoError(t, initRun(initCmd, nil))

	n, err := openNode(context.Background(), home, true)
	require.NoError(t, err)
	defer n.close()

	ts, err := targets(n.cfg, nil)
	require.NoError(t, err)
	require.Contains(t, ts, "1")
	assert.Equal(t, uint64(1), ts["1"].ChainId)
	assert.Equal(t, int64(86400), ts["1"].Cooldown)

	_, err = n.app.Cancel(context.Background(), "missing")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestMockNodeResumesStoredQuestions(t *testing.T) {
	home := t.TempDir()
	initArgs = InitArgs{Home: home}
	require.NoError(t, initRun(initCmd, nil))
	ctx := context.Background()

	n, err := openNode(ctx, home, true)
	require.NoError(t, err)
	require.NoError(t, n.app.DB().Save(&types.RealityOracleProposal{
		ProposalId:   "0xproposal",
		Network:      "1",
		ChainId:      1,
		QuestionHash: common.HexToHash("0x51"),
		QuestionId:   common.HexToHash("0x51"),
		Status:       types.StatusQuestionOpen,
		Cooldown:     86400,
	}))
	n.close()

	n, err = openNode(ctx, home, true)
	require.NoError(t, err)
	rec, err := n.app.Step(ctx, "0xproposal")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQuestionOpen, rec.Status)
	rec, err = n.app.Bond(ctx, "0xproposal", chain.AnswerYes, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, types.StatusBonding, rec.Status)
	n.close()

	n, err = openNode(ctx, home, true)
	require.NoError(t, err)
	defer n.close()
	rec, err = n.app.Step(ctx, "0xproposal")
	require.NoError(t, err)
	assert.Equal(t, types.StatusBonding, rec.Status)
	assert.Equal(t, big.NewInt(5), rec.CurrentBond)
}

func TestReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"voter":"0xa","choice":1,"vp":1,"vp_by_strategy":[1]}]`), 0o644))
	var votes []types.Vote
	require.NoError(t, readJSON(path, &votes))
	require.Len(t, votes, 1)
	assert.Equal(t, "0xa", votes[0].Voter)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	assert.Error(t, readJSON(path, &votes))
}
