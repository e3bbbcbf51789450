package tx

import (
	"fmt"
	"math/big"

	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	DomainSeparatorTypehash = crypto.Keccak256Hash([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
	TransactionTypehash     = crypto.Keccak256Hash([]byte("Transaction(address to,uint256 value,bytes data,uint8 operation,uint256 nonce)"))
)

var (
	bytes32Ty, _ = abi.NewType("bytes32", "", nil)
	uint256Ty, _ = abi.NewType("uint256", "", nil)
	uint8Ty, _   = abi.NewType("uint8", "", nil)
	addressTy, _ = abi.NewType("address", "", nil)

	domainArgs = abi.Arguments{{Type: bytes32Ty}, {Type: uint256Ty}, {Type: addressTy}}
	txArgs     = abi.Arguments{{Type: bytes32Ty}, {Type: addressTy}, {Type: uint256Ty}, {Type: bytes32Ty}, {Type: uint8Ty}, {Type: uint256Ty}}
)

// Hasher derives EIP-712 transaction hashes as the reality module computes
// them for a given chain and module address.
type Hasher struct {
	ChainId *big.Int
	Module  common.Address
}

func NewHasher(chainId *big.Int, module common.Address) *Hasher {
	return &Hasher{ChainId: new(big.Int).Set(chainId), Module: module}
}

func (h *Hasher) DomainSeparator() (common.Hash, error) {
	dat, err := domainArgs.Pack([32]byte(DomainSeparatorTypehash), h.ChainId, h.Module)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(dat), nil
}

func (h *Hasher) TxHash(t *types.SafeTransaction) (common.Hash, error) {
	value, err := t.ValueWei()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	ds, err := h.DomainSeparator()
	if err != nil {
		return common.Hash{}, err
	}
	dat, err := txArgs.Pack(
		[32]byte(TransactionTypehash),
		t.To,
		value,
		[32]byte(crypto.Keccak256Hash(t.Data)),
		uint8(t.Operation),
		new(big.Int).SetUint64(t.Nonce),
	)
	if err != nil {
		return common.Hash{}, err
	}
	inner := crypto.Keccak256Hash(dat)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, ds.Bytes(), inner.Bytes()), nil
}

func (h *Hasher) TxHashes(txs []types.SafeTransaction) ([]common.Hash, error) {
	hashes := make([]common.Hash, len(txs))
	for i := range txs {
		th, err := h.TxHash(&txs[i])
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		hashes[i] = th
	}
	return hashes, nil
}

// BatchHash is the content hash of an ordered transaction list. Lists with
// two transactions of the same module hash are refused: the module executes
// a hash once.
func (h *Hasher) BatchHash(txs []types.SafeTransaction) (common.Hash, error) {
	hashes, err := h.TxHashes(txs)
	if err != nil {
		return common.Hash{}, err
	}
	seen := make(map[common.Hash]int, len(hashes))
	for i, th := range hashes {
		if j, ok := seen[th]; ok {
			return common.Hash{}, fmt.Errorf("%w: transactions %d and %d hash to %s", types.ErrDuplicateTx, j, i, th.Hex())
		}
		seen[th] = i
	}
	buf := make([]byte, 0, len(hashes)*common.HashLength)
	for _, th := range hashes {
		buf = append(buf, th.Bytes()...)
	}
	return crypto.Keccak256Hash(buf), nil
}

// NewBatch hashes txs into an immutable batch. The batch owns a copy of txs.
func (h *Hasher) NewBatch(txs []types.SafeTransaction) (types.SafeModuleTransactionBatch, error) {
	own := append([]types.SafeTransaction(nil), txs...)
	hash, err := h.BatchHash(own)
	if err != nil {
		return types.SafeModuleTransactionBatch{}, err
	}
	return types.SafeModuleTransactionBatch{Hash: hash, Transactions: own}, nil
}

// Verify recomputes the batch hash and rejects edited batches.
func (h *Hasher) Verify(batch *types.SafeModuleTransactionBatch) error {
	hash, err := h.BatchHash(batch.Transactions)
	if err != nil {
		return err
	}
	if hash != batch.Hash {
		return fmt.Errorf("%w: have %s, computed %s", types.ErrBatchHashMismatch, batch.Hash.Hex(), hash.Hex())
	}
	return nil
}

// QuestionHash identifies the oracle question of a proposal batch.
func QuestionHash(proposalId string, batchHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte(proposalId), batchHash.Bytes())
}
