package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

// UnmarshalJSON accepts both the numeric and the quoted form ("0", "1").
func (o *Operation) UnmarshalJSON(dat []byte) error {
	s := string(dat)
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return fmt.Errorf("invalid operation %s: %w", string(dat), err)
	}
	if Operation(v) > OperationDelegateCall {
		return fmt.Errorf("invalid operation %d", v)
	}
	*o = Operation(v)
	return nil
}

type TxKind string

const (
	TxKindRaw                 TxKind = "raw"
	TxKindTransferFunds       TxKind = "transferFunds"
	TxKindTransferNFT         TxKind = "transferNFT"
	TxKindContractInteraction TxKind = "contractInteraction"
)

type SafeAsset struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name"`
	LogoUri string         `json:"logoUri,omitempty"`
}

type CollectableAsset struct {
	SafeAsset
	Id        string `json:"id"`
	TokenName string `json:"tokenName,omitempty"`
}

type TokenAsset struct {
	SafeAsset
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type TokenTransfer struct {
	Recipient common.Address `json:"recipient"`
	Amount    string         `json:"amount"`
	Token     TokenAsset     `json:"token"`
}

type CollectableTransfer struct {
	Recipient   common.Address   `json:"recipient"`
	Collectable CollectableAsset `json:"collectable"`
}

type ContractInteraction struct {
	Abi json.RawMessage `json:"abi"`
}

// SafeTransaction is one call executed by the safe. Kind selects which of the
// payload fields is set; the payload is display metadata and only the base
// fields are broadcast.
type SafeTransaction struct {
	To        common.Address `json:"to"`
	Value     string         `json:"value"`
	Data      hexutil.Bytes  `json:"data"`
	Operation Operation      `json:"operation"`
	Nonce     uint64         `json:"nonce"`

	Kind        TxKind               `json:"type,omitempty"`
	Transfer    *TokenTransfer       `json:"transfer,omitempty"`
	Collectable *CollectableTransfer `json:"collectable,omitempty"`
	Contract    *ContractInteraction `json:"contract,omitempty"`
}

// ValueWei parses Value as a decimal or 0x-prefixed amount of wei.
func (t *SafeTransaction) ValueWei() (*big.Int, error) {
	if t.Value == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(t.Value, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q", t.Value)
	}
	return v, nil
}

type SafeModuleTransactionBatch struct {
	Hash         common.Hash       `json:"hash"`
	Transactions []SafeTransaction `json:"transactions"`
}

// SafeExecutionData is the read-only execution descriptor handed to
// transports and UIs.
type SafeExecutionData struct {
	Hash          *common.Hash                 `json:"hash"`
	Txs           []SafeModuleTransactionBatch `json:"txs"`
	Network       string                       `json:"network"`
	RealityModule common.Address               `json:"realityModule"`
}

type Status string

const (
	StatusNotSubmitted    Status = "not_submitted"
	StatusQuestionOpen    Status = "question_open"
	StatusBonding         Status = "bonding"
	StatusCooldownPending Status = "cooldown_pending"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusExecuted        Status = "executed"
	StatusExecutionFailed Status = "execution_failed"
	StatusCancelled       Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExecuted, StatusExecutionFailed, StatusCancelled:
		return true
	}
	return false
}

// Finalized reports whether the oracle question has been resolved.
func (s Status) Finalized() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExecuted, StatusExecutionFailed:
		return true
	}
	return false
}

// RealityOracleProposal is the durable oracle and execution progress of one
// proposal. Every save replaces the whole document and bumps Version.
type RealityOracleProposal struct {
	Version           uint64            `json:"version"`
	ProposalId        string            `json:"proposalId"`
	Dao               common.Address    `json:"dao"`
	Oracle            common.Address    `json:"oracle"`
	RealityModule     common.Address    `json:"realityModule"`
	Network           string            `json:"network"`
	ChainId           uint64            `json:"chainId"`
	BatchHash         common.Hash       `json:"batchHash"`
	QuestionHash      common.Hash       `json:"questionHash"`
	QuestionId        common.Hash       `json:"questionId"`
	Status            Status            `json:"status"`
	Cooldown          int64             `json:"cooldown"`
	Expiration        int64             `json:"expiration"`
	ExecutionApproved bool              `json:"executionApproved"`
	FinalizedAt       int64             `json:"finalizedAt"`
	NextTxIndex       int               `json:"nextTxIndex"`
	Transactions      []SafeTransaction `json:"transactions"`
	TxHashes          []common.Hash     `json:"txHashes"`
	BroadcastHashes   []common.Hash     `json:"broadcastHashes"`
	CurrentBond       *big.Int          `json:"currentBond"`
	IsApproved        bool              `json:"isApproved"`
	EndTime           int64             `json:"endTime"`
	FailureReason     string            `json:"failureReason,omitempty"`
	CreatedAt         int64             `json:"createdAt"`
	UpdatedAt         int64             `json:"updatedAt"`
}

func (r *RealityOracleProposal) Clone() *RealityOracleProposal {
	n := *r
	n.Transactions = append([]SafeTransaction(nil), r.Transactions...)
	n.TxHashes = append([]common.Hash(nil), r.TxHashes...)
	n.BroadcastHashes = append([]common.Hash(nil), r.BroadcastHashes...)
	if r.CurrentBond != nil {
		n.CurrentBond = new(big.Int).Set(r.CurrentBond)
	}
	return &n
}

// RecordedTxHash returns the hash logged for transaction idx, if any.
func (r *RealityOracleProposal) RecordedTxHash(idx int) (common.Hash, bool) {
	if idx < 0 || idx >= len(r.TxHashes) {
		return common.Hash{}, false
	}
	return r.TxHashes[idx], true
}

// Bond returns the current bond, zero when none has been placed.
func (r *RealityOracleProposal) Bond() *big.Int {
	if r.CurrentBond == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.CurrentBond)
}

func (r *RealityOracleProposal) Batch() SafeModuleTransactionBatch {
	return SafeModuleTransactionBatch{
		Hash:         r.BatchHash,
		Transactions: append([]SafeTransaction(nil), r.Transactions...),
	}
}

// ExecutionData projects the record into its external descriptor.
func (r *RealityOracleProposal) ExecutionData() SafeExecutionData {
	var hash *common.Hash
	if r.BatchHash != (common.Hash{}) {
		h := r.BatchHash
		hash = &h
	}
	return SafeExecutionData{
		Hash:          hash,
		Txs:           []SafeModuleTransactionBatch{r.Batch()},
		Network:       r.Network,
		RealityModule: r.RealityModule,
	}
}
