package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/state"
	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
)

// Sequencer broadcasts the transactions of an approved batch one at a time,
// in order. Callers serialize calls per proposal id.
type Sequencer struct {
	logger  log.Logger
	db      *state.StateDB
	client  chain.ChainClient
	checker chain.ExecutionChecker
	retrier *chain.Retrier
}

func NewSequencer(db *state.StateDB, client chain.ChainClient, retrier *chain.Retrier, logger log.Logger) *Sequencer {
	s := &Sequencer{
		logger:  logger.With("module", "executor"),
		db:      db,
		client:  client,
		retrier: retrier,
	}
	if checker, ok := client.(chain.ExecutionChecker); ok {
		s.checker = checker
	}
	return s
}

func (s *Sequencer) check(rec *types.RealityOracleProposal) error {
	switch {
	case rec.Status == types.StatusExecuted:
		return fmt.Errorf("proposal %s: %w", rec.ProposalId, types.ErrExecutionComplete)
	case rec.Status.Terminal():
		return fmt.Errorf("proposal %s is %s: %w", rec.ProposalId, rec.Status, types.ErrTerminal)
	case rec.Status != types.StatusApproved || !rec.IsApproved:
		return fmt.Errorf("proposal %s is %s: %w", rec.ProposalId, rec.Status, types.ErrNotApproved)
	case !rec.ExecutionApproved:
		return fmt.Errorf("proposal %s module gate closed: %w", rec.ProposalId, types.ErrNotApproved)
	case rec.NextTxIndex > len(rec.Transactions):
		return fmt.Errorf("proposal %s index %d past %d transactions: %w", rec.ProposalId, rec.NextTxIndex, len(rec.Transactions), types.ErrExecutionComplete)
	}
	return nil
}

// ExecuteNext performs one step on an approved record: the transaction at
// NextTxIndex is broadcast unless its hash is already recorded, the hash is
// saved, and only then is the index advanced in a second save. The record
// becomes Executed when the index reaches the end of the batch.
func (s *Sequencer) ExecuteNext(ctx context.Context, rec *types.RealityOracleProposal) (*types.RealityOracleProposal, error) {
	if err := s.check(rec); err != nil {
		return rec, err
	}
	if rec.NextTxIndex == len(rec.Transactions) {
		return s.complete(rec)
	}

	hasher := tx.NewHasher(new(big.Int).SetUint64(rec.ChainId), rec.RealityModule)
	hashes, err := hasher.TxHashes(rec.Transactions)
	if err != nil {
		return rec, err
	}
	batch := rec.Batch()
	if err := hasher.Verify(&batch); err != nil {
		return rec, err
	}

	idx := rec.NextTxIndex
	h := hashes[idx]
	cur := rec
	logged, ok := rec.RecordedTxHash(idx)
	switch {
	case ok && logged == h && len(rec.TxHashes) == idx+1:
		s.logger.Info("transaction already broadcast, skip", "proposal", rec.ProposalId, "index", idx, "hash", h.Hex())
	case len(rec.TxHashes) == idx:
		next, err := s.broadcast(ctx, rec, hashes, idx)
		if err != nil {
			return next, err
		}
		cur = next
	default:
		return rec, fmt.Errorf("proposal %s: %d logged hashes at index %d: %w", rec.ProposalId, len(rec.TxHashes), idx, types.ErrTxLogMismatch)
	}

	next := cur.Clone()
	next.NextTxIndex++
	if next.NextTxIndex == len(next.Transactions) {
		next.Status = types.StatusExecuted
	}
	if err := s.db.Save(next); err != nil {
		s.logger.Error("save index fail", "proposal", rec.ProposalId, "index", idx, "err", err)
		return cur, err
	}
	s.logger.Info("transaction executed", "proposal", rec.ProposalId, "index", idx, "next", next.NextTxIndex, "status", next.Status)
	return next, nil
}

// broadcast sends transaction idx and durably records its hash. The index is
// left unchanged.
func (s *Sequencer) broadcast(ctx context.Context, rec *types.RealityOracleProposal, hashes []common.Hash, idx int) (*types.RealityOracleProposal, error) {
	req := &chain.BroadcastRequest{
		Network:       rec.Network,
		RealityModule: rec.RealityModule,
		ProposalId:    rec.ProposalId,
		TxHashes:      hashes,
		Index:         idx,
		Tx:            rec.Transactions[idx],
	}
	var (
		executed bool
		sent     common.Hash
	)
	// a send whose receipt was lost may have landed, so every attempt asks
	// the module first
	err := s.retrier.Do(ctx, "broadcast", func() error {
		if s.checker != nil {
			done, err := s.checker.IsExecuted(ctx, req)
			if err != nil {
				return err
			}
			if done {
				executed = true
				return nil
			}
		}
		h, err := s.client.Broadcast(ctx, req)
		if err != nil {
			return err
		}
		sent = h
		return nil
	})
	if errors.Is(err, types.ErrRevertedTransaction) && s.checker != nil {
		// a resend of an executed transaction reverts too
		var done bool
		cerr := s.retrier.Do(ctx, "isExecuted", func() (err error) {
			done, err = s.checker.IsExecuted(ctx, req)
			return
		})
		if cerr != nil {
			s.logger.Error("execution check after revert fail", "proposal", rec.ProposalId, "index", idx, "err", cerr)
			return rec, fmt.Errorf("proposal %s transaction %d: %w", rec.ProposalId, idx, cerr)
		}
		if done {
			executed, err = true, nil
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, types.ErrRevertedTransaction):
		return s.fail(rec, idx, err)
	default:
		s.logger.Error("broadcast fail", "proposal", rec.ProposalId, "index", idx, "err", err)
		return rec, fmt.Errorf("proposal %s transaction %d: %w", rec.ProposalId, idx, err)
	}
	if executed {
		s.logger.Info("transaction executed on chain, record only", "proposal", rec.ProposalId, "index", idx)
	}

	next := rec.Clone()
	next.TxHashes = append(next.TxHashes, hashes[idx])
	next.BroadcastHashes = append(next.BroadcastHashes, sent)
	if err := s.db.Save(next); err != nil {
		s.logger.Error("save broadcast fail", "proposal", rec.ProposalId, "index", idx, "err", err)
		return rec, err
	}
	s.logger.Info("transaction broadcast", "proposal", rec.ProposalId, "index", idx, "tx", sent.Hex())
	return next, nil
}

func (s *Sequencer) fail(rec *types.RealityOracleProposal, idx int, cause error) (*types.RealityOracleProposal, error) {
	next := rec.Clone()
	next.Status = types.StatusExecutionFailed
	next.FailureReason = fmt.Sprintf("transaction %d: %v", idx, cause)
	if err := s.db.Save(next); err != nil {
		s.logger.Error("save failure fail", "proposal", rec.ProposalId, "err", err)
		return rec, err
	}
	s.logger.Error("execution failed", "proposal", rec.ProposalId, "index", idx, "err", cause)
	return next, fmt.Errorf("proposal %s transaction %d: %w", rec.ProposalId, idx, cause)
}

func (s *Sequencer) complete(rec *types.RealityOracleProposal) (*types.RealityOracleProposal, error) {
	next := rec.Clone()
	next.Status = types.StatusExecuted
	if err := s.db.Save(next); err != nil {
		return rec, err
	}
	s.logger.Info("execution complete", "proposal", rec.ProposalId)
	return next, nil
}

// Drain runs ExecuteNext until the batch is executed or a step fails.
func (s *Sequencer) Drain(ctx context.Context, rec *types.RealityOracleProposal) (*types.RealityOracleProposal, error) {
	var err error
	for rec.Status != types.StatusExecuted {
		if err = ctx.Err(); err != nil {
			return rec, err
		}
		rec, err = s.ExecuteNext(ctx, rec)
		if err != nil {
			return rec, err
		}
	}
	return rec, nil
}
