package chain

import (
	"context"
	"math/big"

	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	AnswerNo      = common.Hash{}
	AnswerYes     = common.BigToHash(big.NewInt(1))
	AnswerInvalid = common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
)

// QuestionRef locates an oracle question on a network.
type QuestionRef struct {
	Network       string
	Oracle        common.Address
	RealityModule common.Address
	Id            common.Hash
}

type QuestionState struct {
	CurrentBond *big.Int
	IsFinalized bool
	Answer      common.Hash
}

type QuestionPayload struct {
	Network       string
	Oracle        common.Address
	RealityModule common.Address
	QuestionHash  common.Hash
	ProposalId    string
	BatchHash     common.Hash
	TxHashes      []common.Hash
}

// OracleClient is the transport to the truth oracle. AskQuestion must be
// idempotent for an identical payload.
type OracleClient interface {
	ReadQuestion(ctx context.Context, ref QuestionRef) (*QuestionState, error)
	Bond(ctx context.Context, ref QuestionRef, answer common.Hash, amount *big.Int) error
	AskQuestion(ctx context.Context, payload *QuestionPayload) (common.Hash, error)
	ExecutionApproved(ctx context.Context, ref QuestionRef) (bool, error)
}

// BroadcastRequest carries one transaction plus the proposal context the
// reality module needs to execute it.
type BroadcastRequest struct {
	Network       string
	RealityModule common.Address
	ProposalId    string
	TxHashes      []common.Hash
	Index         int
	Tx            types.SafeTransaction
}

// ChainClient broadcasts transactions. Errors wrap types.ErrRevertedTransaction,
// types.ErrInsufficientGas or types.ErrTransientNetwork.
type ChainClient interface {
	Broadcast(ctx context.Context, req *BroadcastRequest) (common.Hash, error)
}

// ExecutionChecker is implemented by transports that can tell whether the
// module already executed a transaction.
type ExecutionChecker interface {
	IsExecuted(ctx context.Context, req *BroadcastRequest) (bool, error)
}
