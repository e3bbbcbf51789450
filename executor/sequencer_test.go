package executor

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/state"
	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var module = common.HexToAddress("0x1000000000000000000000000000000000000001")

func testRetrier() *chain.Retrier {
	return chain.NewRetrier(chain.RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  200 * time.Millisecond,
	}, nil, log.NewNopLogger())
}

func approvedRecord(t *testing.T, db *state.StateDB, n int) (*types.RealityOracleProposal, []common.Hash) {
	txs := make([]types.SafeTransaction, n)
	for i := range txs {
		txs[i] = types.SafeTransaction{
			To:    common.BigToAddress(big.NewInt(int64(0xa0 + i))),
			Value: fmt.Sprint(i),
			Data:  []byte{byte(i)},
			Nonce: uint64(i),
		}
	}
	hasher := tx.NewHasher(big.NewInt(1), module)
	batch, err := hasher.NewBatch(txs)
	require.NoError(t, err)
	hashes, err := hasher.TxHashes(txs)
	require.NoError(t, err)
	rec := &types.RealityOracleProposal{
		ProposalId:        "0xproposal",
		Network:           "1",
		ChainId:           1,
		RealityModule:     module,
		BatchHash:         batch.Hash,
		Status:            types.StatusApproved,
		IsApproved:        true,
		ExecutionApproved: true,
		Transactions:      batch.Transactions,
		TxHashes:          []common.Hash{},
	}
	require.NoError(t, db.Save(rec))
	return rec, hashes
}

func newSequencer(t *testing.T) (*Sequencer, *state.StateDB, *chain.MockClient) {
	logger := log.NewNopLogger()
	db := state.NewMemStateDB(logger)
	t.Cleanup(func() { db.Close() })
	client := chain.NewMockClient()
	return NewSequencer(db, client, testRetrier(), logger), db, client
}

func broadcastIndexes(client *chain.MockClient) []int {
	var idx []int
	for _, b := range client.Broadcasts() {
		idx = append(idx, b.Index)
	}
	return idx
}

func TestDrainExecutesInOrder(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, hashes := approvedRecord(t, db, 3)

	rec, err := seq.Drain(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, rec.Status)
	assert.Equal(t, 3, rec.NextTxIndex)
	assert.Equal(t, hashes, rec.TxHashes)
	assert.Len(t, rec.BroadcastHashes, 3)
	assert.Equal(t, []int{0, 1, 2}, broadcastIndexes(client))
	for _, b := range client.Broadcasts() {
		assert.Equal(t, hashes, b.TxHashes)
	}

	stored, err := db.Load(rec.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, stored.Status)

	_, err = seq.ExecuteNext(context.Background(), stored)
	assert.ErrorIs(t, err, types.ErrExecutionComplete)
}

func TestExecuteNextIndexMonotonic(t *testing.T) {
	seq, db, _ := newSequencer(t)
	rec, _ := approvedRecord(t, db, 4)

	prev := rec.NextTxIndex
	for rec.Status != types.StatusExecuted {
		next, err := seq.ExecuteNext(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, prev+1, next.NextTxIndex)
		assert.LessOrEqual(t, next.NextTxIndex, len(next.Transactions))
		assert.Len(t, next.TxHashes, next.NextTxIndex)
		prev = next.NextTxIndex
		rec = next
	}
}

func TestExecuteNextSkipsRecordedHash(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, hashes := approvedRecord(t, db, 3)

	// broadcast recorded, index not yet advanced
	rec.TxHashes = []common.Hash{hashes[0]}
	rec.BroadcastHashes = []common.Hash{common.HexToHash("0x01")}
	require.NoError(t, db.Save(rec))

	rec, err := seq.ExecuteNext(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.NextTxIndex)
	assert.Empty(t, client.Broadcasts())
	assert.Equal(t, []common.Hash{hashes[0]}, rec.TxHashes)
}

func TestExecuteNextRecordsOnChainExecution(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, hashes := approvedRecord(t, db, 2)
	client.MarkExecuted(hashes[0])

	rec, err := seq.ExecuteNext(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.NextTxIndex)
	assert.Empty(t, client.Broadcasts())
	assert.Equal(t, []common.Hash{hashes[0]}, rec.TxHashes)
}

func TestRevertHaltsBatch(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, _ := approvedRecord(t, db, 3)
	client.FailBroadcast(1, fmt.Errorf("execution reverted: %w", types.ErrRevertedTransaction))

	rec, err := seq.Drain(context.Background(), rec)
	assert.ErrorIs(t, err, types.ErrRevertedTransaction)
	assert.Equal(t, types.StatusExecutionFailed, rec.Status)
	assert.Equal(t, 1, rec.NextTxIndex)
	assert.Len(t, rec.TxHashes, 1)
	assert.Equal(t, []int{0}, broadcastIndexes(client))

	stored, err := db.Load(rec.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecutionFailed, stored.Status)
	assert.Equal(t, 1, stored.NextTxIndex)

	_, err = seq.ExecuteNext(context.Background(), stored)
	assert.ErrorIs(t, err, types.ErrTerminal)
	assert.Equal(t, []int{0}, broadcastIndexes(client))
}

func TestTransientBroadcastRetried(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, _ := approvedRecord(t, db, 1)
	transient := fmt.Errorf("timeout: %w", types.ErrTransientNetwork)
	client.FailBroadcast(0, transient, transient)

	rec, err := seq.ExecuteNext(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, rec.Status)
	assert.Equal(t, []int{0}, broadcastIndexes(client))
}

func TestInsufficientGasLeavesState(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, _ := approvedRecord(t, db, 2)
	client.FailBroadcast(0, fmt.Errorf("insufficient funds: %w", types.ErrInsufficientGas))

	got, err := seq.ExecuteNext(context.Background(), rec)
	assert.ErrorIs(t, err, types.ErrInsufficientGas)
	assert.Equal(t, rec, got)

	stored, err := db.Load(rec.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, stored.Status)
	assert.Equal(t, 0, stored.NextTxIndex)
	assert.Empty(t, stored.TxHashes)

	got, err = seq.ExecuteNext(context.Background(), stored)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NextTxIndex)
}

func TestExecuteNextRequiresApproval(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, _ := approvedRecord(t, db, 1)

	gated := rec.Clone()
	gated.ExecutionApproved = false
	_, err := seq.ExecuteNext(context.Background(), gated)
	assert.ErrorIs(t, err, types.ErrNotApproved)

	open := rec.Clone()
	open.Status = types.StatusCooldownPending
	open.IsApproved = false
	_, err = seq.ExecuteNext(context.Background(), open)
	assert.ErrorIs(t, err, types.ErrNotApproved)
	assert.Empty(t, client.Broadcasts())
}

func TestExecuteNextRejectsEditedBatch(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, _ := approvedRecord(t, db, 2)
	rec.Transactions[1].Value = "999"

	_, err := seq.ExecuteNext(context.Background(), rec)
	assert.ErrorIs(t, err, types.ErrBatchHashMismatch)
	assert.Empty(t, client.Broadcasts())
}

func TestEmptyBatchCompletes(t *testing.T) {
	seq, db, _ := newSequencer(t)
	rec, _ := approvedRecord(t, db, 0)

	rec, err := seq.Drain(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, rec.Status)
}

func TestResumeAfterRestart(t *testing.T) {
	dir := t.TempDir()
	logger := log.NewNopLogger()
	client := chain.NewMockClient()

	db, err := state.NewStateDB(dir, state.BackendLevelDB, logger)
	require.NoError(t, err)
	rec, hashes := approvedRecord(t, db, 3)
	seq := NewSequencer(db, client, testRetrier(), logger)
	_, err = seq.ExecuteNext(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = state.NewStateDB(dir, state.BackendLevelDB, logger)
	require.NoError(t, err)
	defer db.Close()
	pending, err := db.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	rec = pending[0]
	assert.Equal(t, 1, rec.NextTxIndex)
	assert.Equal(t, []common.Hash{hashes[0]}, rec.TxHashes)

	seq = NewSequencer(db, client, testRetrier(), logger)
	rec, err = seq.ExecuteNext(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.NextTxIndex)
	assert.Equal(t, []int{0, 1}, broadcastIndexes(client))
}

func TestLostReceiptRecordedNotResent(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, hashes := approvedRecord(t, db, 2)
	client.LoseReceipts(0, 1)

	rec, err := seq.Drain(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, rec.Status)
	assert.Equal(t, hashes, rec.TxHashes)
	assert.Equal(t, []int{0, 1}, broadcastIndexes(client))
}

// staleChecker reports transactions as not executed for its first calls.
type staleChecker struct {
	*chain.MockClient
	stale int
}

func (c *staleChecker) IsExecuted(ctx context.Context, req *chain.BroadcastRequest) (bool, error) {
	if c.stale > 0 {
		c.stale--
		return false, nil
	}
	return c.MockClient.IsExecuted(ctx, req)
}

func TestRevertOnResendOfExecutedTx(t *testing.T) {
	logger := log.NewNopLogger()
	db := state.NewMemStateDB(logger)
	defer db.Close()
	client := &staleChecker{MockClient: chain.NewMockClient(), stale: 2}
	client.LoseReceipts(0, 1)
	seq := NewSequencer(db, client, testRetrier(), logger)
	rec, hashes := approvedRecord(t, db, 1)

	rec, err := seq.ExecuteNext(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, rec.Status)
	assert.Equal(t, hashes, rec.TxHashes)
	assert.Len(t, client.Broadcasts(), 1)

	stored, err := db.Load(rec.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, types.StatusExecuted, stored.Status)
	assert.Empty(t, stored.FailureReason)
}

func TestDuplicateTransactionsRejected(t *testing.T) {
	seq, db, client := newSequencer(t)
	dup := types.SafeTransaction{To: common.HexToAddress("0xa1"), Value: "1", Nonce: 0}
	rec := &types.RealityOracleProposal{
		ProposalId:        "0xdup",
		Network:           "1",
		ChainId:           1,
		RealityModule:     module,
		BatchHash:         common.HexToHash("0x01"),
		Status:            types.StatusApproved,
		IsApproved:        true,
		ExecutionApproved: true,
		Transactions:      []types.SafeTransaction{dup, dup},
	}
	require.NoError(t, db.Save(rec))

	_, err := seq.Drain(context.Background(), rec)
	require.ErrorIs(t, err, types.ErrDuplicateTx)
	assert.Empty(t, client.Broadcasts())
}

func TestExecuteNextRejectsForeignLog(t *testing.T) {
	seq, db, client := newSequencer(t)
	rec, hashes := approvedRecord(t, db, 2)
	rec.TxHashes = []common.Hash{hashes[1]}
	require.NoError(t, db.Save(rec))

	_, err := seq.ExecuteNext(context.Background(), rec)
	require.ErrorIs(t, err, types.ErrTxLogMismatch)
	assert.Empty(t, client.Broadcasts())
}
