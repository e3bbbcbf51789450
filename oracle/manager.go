package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/state"
	"github.com/calehh/safesnap/tally"
	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
)

// Target names where a batch is executed and how its question is bonded.
type Target struct {
	Network       string
	ChainId       uint64
	Dao           common.Address
	Oracle        common.Address
	RealityModule common.Address
	Cooldown      int64
	Expiration    int64
}

// Manager drives the oracle question of each proposal from submission to
// finalization. Callers serialize calls per proposal id.
type Manager struct {
	logger  log.Logger
	db      *state.StateDB
	client  chain.OracleClient
	retrier *chain.Retrier
	policy  tally.Policy
}

func NewManager(db *state.StateDB, client chain.OracleClient, retrier *chain.Retrier, policy tally.Policy, logger log.Logger) *Manager {
	return &Manager{
		logger:  logger.With("module", "oracle"),
		db:      db,
		client:  client,
		retrier: retrier,
		policy:  policy,
	}
}

func ref(rec *types.RealityOracleProposal) chain.QuestionRef {
	return chain.QuestionRef{
		Network:       rec.Network,
		Oracle:        rec.Oracle,
		RealityModule: rec.RealityModule,
		Id:            rec.QuestionId,
	}
}

// Submit opens the oracle question for a passed proposal and its batch.
// Submitting the same batch again returns the stored record; a different
// batch for the same proposal is refused.
func (m *Manager) Submit(ctx context.Context, p *types.Proposal, batch *types.SafeModuleTransactionBatch, target Target) (*types.RealityOracleProposal, error) {
	if err := m.policy.Passed(p); err != nil {
		return nil, err
	}
	hasher := tx.NewHasher(new(big.Int).SetUint64(target.ChainId), target.RealityModule)
	if err := hasher.Verify(batch); err != nil {
		return nil, err
	}

	rec, err := m.db.Load(p.Id)
	switch {
	case err == nil:
		if rec.BatchHash != batch.Hash {
			return nil, fmt.Errorf("proposal %s has batch %s, got %s: %w", p.Id, rec.BatchHash.Hex(), batch.Hash.Hex(), types.ErrBatchMismatch)
		}
		if rec.Status != types.StatusNotSubmitted {
			m.logger.Info("proposal already submitted", "proposal", p.Id, "status", rec.Status)
			return rec, nil
		}
	case errors.Is(err, types.ErrNotFound):
		rec = &types.RealityOracleProposal{
			ProposalId:    p.Id,
			Dao:           target.Dao,
			Oracle:        target.Oracle,
			RealityModule: target.RealityModule,
			Network:       target.Network,
			ChainId:       target.ChainId,
			BatchHash:     batch.Hash,
			QuestionHash:  tx.QuestionHash(p.Id, batch.Hash),
			Status:        types.StatusNotSubmitted,
			Cooldown:      target.Cooldown,
			Expiration:    target.Expiration,
			Transactions:  append([]types.SafeTransaction(nil), batch.Transactions...),
			TxHashes:      []common.Hash{},
			CurrentBond:   new(big.Int),
		}
		if err := m.db.Save(rec); err != nil {
			return nil, err
		}
		m.logger.Info("proposal registered", "proposal", p.Id, "batch", batch.Hash.Hex(), "txs", len(batch.Transactions))
	default:
		return nil, err
	}
	return m.ask(ctx, rec)
}

// ask opens the question of a NotSubmitted record. The transport call is
// idempotent so a record left NotSubmitted by a crash is simply asked again.
func (m *Manager) ask(ctx context.Context, rec *types.RealityOracleProposal) (*types.RealityOracleProposal, error) {
	hasher := tx.NewHasher(new(big.Int).SetUint64(rec.ChainId), rec.RealityModule)
	hashes, err := hasher.TxHashes(rec.Transactions)
	if err != nil {
		return rec, err
	}
	payload := &chain.QuestionPayload{
		Network:       rec.Network,
		Oracle:        rec.Oracle,
		RealityModule: rec.RealityModule,
		QuestionHash:  rec.QuestionHash,
		ProposalId:    rec.ProposalId,
		BatchHash:     rec.BatchHash,
		TxHashes:      hashes,
	}
	var id common.Hash
	err = m.retrier.Do(ctx, "askQuestion", func() (err error) {
		id, err = m.client.AskQuestion(ctx, payload)
		return
	})
	if err != nil {
		m.logger.Error("ask question fail", "proposal", rec.ProposalId, "err", err)
		return rec, fmt.Errorf("ask question %s: %w: %v", rec.ProposalId, types.ErrOracleUnreachable, err)
	}
	next := rec.Clone()
	next.QuestionId = id
	next.Status = types.StatusQuestionOpen
	if err := m.db.Save(next); err != nil {
		return rec, err
	}
	m.logger.Info("question open", "proposal", rec.ProposalId, "question", id.Hex())
	return next, nil
}

// ApplyBond records a bond on rec. Only strictly greater bonds are accepted;
// any accepted bond restarts the cooldown.
func (m *Manager) ApplyBond(rec *types.RealityOracleProposal, amount *big.Int, now int64) error {
	if rec.Status.Finalized() || rec.Status.Terminal() {
		return fmt.Errorf("proposal %s is %s: %w", rec.ProposalId, rec.Status, types.ErrTerminal)
	}
	if rec.Status == types.StatusNotSubmitted {
		return fmt.Errorf("proposal %s has no open question: %w", rec.ProposalId, types.ErrNotFound)
	}
	cur := rec.Bond()
	if amount == nil || amount.Cmp(cur) <= 0 {
		return fmt.Errorf("proposal %s bond %v not above %v: %w", rec.ProposalId, amount, cur, types.ErrStaleBond)
	}
	rec.CurrentBond = new(big.Int).Set(amount)
	rec.Status = types.StatusBonding
	rec.EndTime = now + rec.Cooldown
	return nil
}

// Bond places a bond on the question through the transport and records it.
func (m *Manager) Bond(ctx context.Context, rec *types.RealityOracleProposal, answer common.Hash, amount *big.Int, now int64) (*types.RealityOracleProposal, error) {
	next := rec.Clone()
	if err := m.ApplyBond(next, amount, now); err != nil {
		return rec, err
	}
	err := m.retrier.Do(ctx, "bond", func() error {
		return m.client.Bond(ctx, ref(rec), answer, amount)
	})
	if err != nil {
		m.logger.Error("bond fail", "proposal", rec.ProposalId, "amount", amount, "err", err)
		return rec, err
	}
	if err := m.db.Save(next); err != nil {
		return rec, err
	}
	m.logger.Info("bond placed", "proposal", rec.ProposalId, "amount", amount, "answer", answer.Hex())
	return next, nil
}

func (m *Manager) read(ctx context.Context, rec *types.RealityOracleProposal) (*chain.QuestionState, error) {
	var qs *chain.QuestionState
	err := m.retrier.Do(ctx, "readQuestion", func() (err error) {
		qs, err = m.client.ReadQuestion(ctx, ref(rec))
		return
	})
	if err != nil {
		return nil, fmt.Errorf("read question %s: %w: %v", rec.QuestionId.Hex(), types.ErrOracleUnreachable, err)
	}
	return qs, nil
}

// Observe polls the oracle and applies at most one transition to rec. A
// failed read never changes the record. The returned record is the stored
// one; on a fatal outcome it is returned together with the error.
func (m *Manager) Observe(ctx context.Context, rec *types.RealityOracleProposal, now int64) (*types.RealityOracleProposal, error) {
	switch rec.Status {
	case types.StatusNotSubmitted:
		return m.ask(ctx, rec)
	case types.StatusQuestionOpen, types.StatusBonding, types.StatusCooldownPending:
	default:
		return rec, nil
	}

	qs, err := m.read(ctx, rec)
	if err != nil {
		m.logger.Error("observe fail", "proposal", rec.ProposalId, "err", err)
		return rec, err
	}

	next := rec.Clone()
	if qs.CurrentBond != nil && qs.CurrentBond.Cmp(rec.Bond()) != 0 {
		if err := m.ApplyBond(next, qs.CurrentBond, now); err != nil {
			if !errors.Is(err, types.ErrStaleBond) {
				return rec, err
			}
			m.logger.Error("ignore bond", "proposal", rec.ProposalId, "err", err)
			next = rec.Clone()
		} else {
			m.logger.Info("bond observed", "proposal", rec.ProposalId, "bond", qs.CurrentBond, "endTime", next.EndTime)
			return m.save(rec, next)
		}
	}

	switch rec.Status {
	case types.StatusQuestionOpen:
		// answered without bond on a zero minimum bond oracle
		if !qs.IsFinalized {
			return rec, nil
		}
		next.Status = types.StatusBonding
		next.EndTime = now + rec.Cooldown
		return m.save(rec, next)
	case types.StatusBonding:
		if now < rec.EndTime {
			return rec, nil
		}
		next.Status = types.StatusCooldownPending
		m.logger.Info("cooldown elapsed", "proposal", rec.ProposalId, "endTime", next.EndTime)
		return m.save(rec, next)
	case types.StatusCooldownPending:
		if !qs.IsFinalized {
			m.logger.Debug("waiting for oracle finalization", "proposal", rec.ProposalId)
			return rec, nil
		}
		return m.finalize(ctx, rec, next, qs.Answer, now)
	}
	return rec, nil
}

func (m *Manager) finalize(ctx context.Context, rec, next *types.RealityOracleProposal, answer common.Hash, now int64) (*types.RealityOracleProposal, error) {
	next.FinalizedAt = now
	switch answer {
	case chain.AnswerYes:
		var approved bool
		err := m.retrier.Do(ctx, "executionApproved", func() (err error) {
			approved, err = m.client.ExecutionApproved(ctx, ref(rec))
			return
		})
		if err != nil {
			return rec, fmt.Errorf("execution gate %s: %w: %v", rec.ProposalId, types.ErrOracleUnreachable, err)
		}
		next.Status = types.StatusApproved
		next.IsApproved = true
		next.ExecutionApproved = approved
		// from here EndTime is the execution deadline, zero when the answer never expires
		next.EndTime = 0
		if rec.Expiration > 0 {
			next.EndTime = rec.EndTime + rec.Expiration
		}
		m.logger.Info("proposal approved", "proposal", rec.ProposalId, "executionApproved", approved, "deadline", next.EndTime)
		return m.save(rec, next)
	case chain.AnswerNo:
		next.Status = types.StatusRejected
		m.logger.Info("proposal rejected", "proposal", rec.ProposalId)
		return m.save(rec, next)
	default:
		next.Status = types.StatusRejected
		next.FailureReason = fmt.Sprintf("invalid oracle answer %s", answer.Hex())
		saved, err := m.save(rec, next)
		if err != nil {
			return saved, err
		}
		m.logger.Error("proposal rejected", "proposal", rec.ProposalId, "answer", answer.Hex(), "err", types.ErrInvalidOracleAnswer)
		return saved, fmt.Errorf("proposal %s answer %s: %w", rec.ProposalId, answer.Hex(), types.ErrInvalidOracleAnswer)
	}
}

// RefreshGate re-reads the module execution gate of an approved record that
// was finalized while the gate was closed. A gate still closed at the
// execution deadline fails the record: the answer has expired.
func (m *Manager) RefreshGate(ctx context.Context, rec *types.RealityOracleProposal, now int64) (*types.RealityOracleProposal, error) {
	if rec.Status != types.StatusApproved || rec.ExecutionApproved {
		return rec, nil
	}
	var approved bool
	err := m.retrier.Do(ctx, "executionApproved", func() (err error) {
		approved, err = m.client.ExecutionApproved(ctx, ref(rec))
		return
	})
	if err != nil {
		return rec, fmt.Errorf("execution gate %s: %w: %v", rec.ProposalId, types.ErrOracleUnreachable, err)
	}
	if !approved {
		if rec.EndTime == 0 || now < rec.EndTime {
			return rec, nil
		}
		next := rec.Clone()
		next.Status = types.StatusExecutionFailed
		next.FailureReason = "answer expired"
		saved, err := m.save(rec, next)
		if err != nil {
			return saved, err
		}
		m.logger.Error("execution gate closed past deadline", "proposal", rec.ProposalId, "deadline", rec.EndTime, "err", types.ErrAnswerExpired)
		return saved, fmt.Errorf("proposal %s deadline %d: %w", rec.ProposalId, rec.EndTime, types.ErrAnswerExpired)
	}
	next := rec.Clone()
	next.ExecutionApproved = true
	m.logger.Info("execution gate open", "proposal", rec.ProposalId)
	return m.save(rec, next)
}

// Cancel abandons a proposal before its question is asked.
func (m *Manager) Cancel(rec *types.RealityOracleProposal) (*types.RealityOracleProposal, error) {
	if rec.Status != types.StatusNotSubmitted {
		return rec, fmt.Errorf("proposal %s is %s: %w", rec.ProposalId, rec.Status, types.ErrCancelNotAllowed)
	}
	next := rec.Clone()
	next.Status = types.StatusCancelled
	next.FailureReason = "cancelled"
	if _, err := m.save(rec, next); err != nil {
		return rec, err
	}
	m.logger.Info("proposal cancelled", "proposal", rec.ProposalId)
	return next, nil
}

func (m *Manager) save(rec, next *types.RealityOracleProposal) (*types.RealityOracleProposal, error) {
	if err := m.db.Save(next); err != nil {
		m.logger.Error("save fail", "proposal", rec.ProposalId, "err", err)
		return rec, err
	}
	return next, nil
}
