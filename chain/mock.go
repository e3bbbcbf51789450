package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var _ OracleClient = &MockClient{}
var _ ChainClient = &MockClient{}
var _ ExecutionChecker = &MockClient{}

type mockQuestion struct {
	bond      *big.Int
	finalized bool
	answer    common.Hash
}

// MockClient is an in-memory oracle and chain used by tests and dry runs.
type MockClient struct {
	mu sync.Mutex

	questions map[common.Hash]*mockQuestion
	executed  map[common.Hash]bool
	gate      bool

	readFailures      int
	broadcastFailures map[int][]error
	lostReceipts      map[int]int
	gateDeadline      int64

	asked      int
	broadcasts []BroadcastRequest
}

func NewMockClient() *MockClient {
	return &MockClient{
		questions:         make(map[common.Hash]*mockQuestion),
		executed:          make(map[common.Hash]bool),
		gate:              true,
		broadcastFailures: make(map[int][]error),
		lostReceipts:      make(map[int]int),
	}
}

func (m *MockClient) ReadQuestion(ctx context.Context, ref QuestionRef) (*QuestionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readFailures > 0 {
		m.readFailures--
		return nil, fmt.Errorf("mock read: %w", types.ErrTransientNetwork)
	}
	q, ok := m.questions[ref.Id]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", ref.Id.Hex(), types.ErrNotFound)
	}
	return &QuestionState{
		CurrentBond: new(big.Int).Set(q.bond),
		IsFinalized: q.finalized,
		Answer:      q.answer,
	}, nil
}

func (m *MockClient) Bond(ctx context.Context, ref QuestionRef, answer common.Hash, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[ref.Id]
	if !ok {
		return fmt.Errorf("question %s: %w", ref.Id.Hex(), types.ErrNotFound)
	}
	if q.finalized || amount.Cmp(q.bond) <= 0 {
		return fmt.Errorf("bond %v on %s: %w", amount, ref.Id.Hex(), types.ErrRevertedTransaction)
	}
	q.bond = new(big.Int).Set(amount)
	q.answer = answer
	return nil
}

func (m *MockClient) AskQuestion(ctx context.Context, payload *QuestionPayload) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := payload.QuestionHash
	if _, ok := m.questions[id]; !ok {
		m.questions[id] = &mockQuestion{bond: new(big.Int)}
		m.asked++
	}
	return id, nil
}

func (m *MockClient) ExecutionApproved(ctx context.Context, ref QuestionRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gateDeadline > 0 && time.Now().Unix() >= m.gateDeadline {
		return false, nil
	}
	return m.gate, nil
}

func (m *MockClient) Broadcast(ctx context.Context, req *BroadcastRequest) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errs := m.broadcastFailures[req.Index]; len(errs) > 0 {
		m.broadcastFailures[req.Index] = errs[1:]
		return common.Hash{}, errs[0]
	}
	if req.Index < len(req.TxHashes) {
		h := req.TxHashes[req.Index]
		if m.executed[h] {
			return common.Hash{}, fmt.Errorf("execution reverted: transaction already executed: %w", types.ErrRevertedTransaction)
		}
		m.executed[h] = true
	}
	m.broadcasts = append(m.broadcasts, *req)
	if m.lostReceipts[req.Index] > 0 {
		m.lostReceipts[req.Index]--
		return common.Hash{}, fmt.Errorf("receipt wait timed out: %w", types.ErrTransientNetwork)
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], uint64(len(m.broadcasts)))
	return crypto.Keccak256Hash([]byte(req.ProposalId), seq[:]), nil
}

func (m *MockClient) IsExecuted(ctx context.Context, req *BroadcastRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Index >= len(req.TxHashes) {
		return false, nil
	}
	return m.executed[req.TxHashes[req.Index]], nil
}

// PlaceBond records an external bond, as a disputer would.
func (m *MockClient) PlaceBond(id common.Hash, answer common.Hash, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		q = &mockQuestion{bond: new(big.Int)}
		m.questions[id] = q
	}
	q.bond = new(big.Int).Set(amount)
	q.answer = answer
}

// Resolve finalizes a question with answer.
func (m *MockClient) Resolve(id common.Hash, answer common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		q = &mockQuestion{bond: new(big.Int)}
		m.questions[id] = q
	}
	q.finalized = true
	q.answer = answer
}

// Seed registers the questions and logged transactions of stored records, so
// a fresh mock resumes the state an earlier process left behind.
func (m *MockClient) Seed(recs []*types.RealityOracleProposal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		for _, h := range rec.TxHashes {
			m.executed[h] = true
		}
		if rec.QuestionId == (common.Hash{}) {
			continue
		}
		if _, ok := m.questions[rec.QuestionId]; ok {
			continue
		}
		q := &mockQuestion{bond: rec.Bond()}
		if rec.Status.Finalized() {
			q.finalized = true
			q.answer = AnswerNo
			if rec.IsApproved {
				q.answer = AnswerYes
			}
		}
		m.questions[rec.QuestionId] = q
	}
}

func (m *MockClient) SetExecutionGate(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = open
}

// ExpireGate closes the execution gate from unix time deadline on, as the
// module does once an approved answer expires.
func (m *MockClient) ExpireGate(deadline int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateDeadline = deadline
}

// LoseReceipts makes the next n broadcasts of index land on chain but fail
// transiently, as a receipt wait that times out.
func (m *MockClient) LoseReceipts(index int, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lostReceipts[index] += n
}

// FailReads makes the next n question reads fail transiently.
func (m *MockClient) FailReads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readFailures = n
}

// FailBroadcast queues errors returned by the next broadcasts of index.
func (m *MockClient) FailBroadcast(index int, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastFailures[index] = append(m.broadcastFailures[index], errs...)
}

// MarkExecuted marks a derived transaction hash as executed by the module.
func (m *MockClient) MarkExecuted(h common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed[h] = true
}

func (m *MockClient) Asked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asked
}

func (m *MockClient) Broadcasts() []BroadcastRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BroadcastRequest(nil), m.broadcasts...)
}
