package tx

import (
	"math/big"
	"testing"

	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var module = common.HexToAddress("0x1000000000000000000000000000000000000001")

func sampleTxs() []types.SafeTransaction {
	return []types.SafeTransaction{
		{To: common.HexToAddress("0xa1"), Value: "1000", Nonce: 0},
		{To: common.HexToAddress("0xa2"), Value: "0", Data: []byte{0xde, 0xad, 0xbe, 0xef}, Nonce: 1},
	}
}

func TestUnmarshalTransactions(t *testing.T) {
	dat := []byte(`[
		{"to":"0x00000000000000000000000000000000000000a1","value":"1000","data":"0x","operation":"0","nonce":"0"},
		{"type":"transferFunds","to":"0x00000000000000000000000000000000000000a2","value":"0","data":"0x","operation":0,"nonce":1,
		 "recipient":"0x00000000000000000000000000000000000000b1","amount":"5","token":{"address":"0x00000000000000000000000000000000000000c1","symbol":"TKN","decimals":18}},
		{"type":"transferNFT","to":"0x00000000000000000000000000000000000000a3","value":"0","data":"0x","operation":"0","nonce":"0x2",
		 "recipient":"0x00000000000000000000000000000000000000b2","collectable":{"address":"0x00000000000000000000000000000000000000a3","id":"7"}},
		{"type":"contractInteraction","to":"0x00000000000000000000000000000000000000a4","value":"0","data":"0x12","operation":"1","nonce":3,"abi":[]}
	]`)
	txs, err := UnmarshalTransactions(dat)
	require.NoError(t, err)
	require.Len(t, txs, 4)

	assert.Equal(t, types.TxKindRaw, txs[0].Kind)
	assert.Equal(t, "1000", txs[0].Value)

	assert.Equal(t, types.TxKindTransferFunds, txs[1].Kind)
	require.NotNil(t, txs[1].Transfer)
	assert.Equal(t, "5", txs[1].Transfer.Amount)
	assert.Equal(t, "TKN", txs[1].Transfer.Token.Symbol)
	assert.Equal(t, uint64(1), txs[1].Nonce)

	assert.Equal(t, types.TxKindTransferNFT, txs[2].Kind)
	require.NotNil(t, txs[2].Collectable)
	assert.Equal(t, "7", txs[2].Collectable.Collectable.Id)
	assert.Equal(t, uint64(2), txs[2].Nonce)

	assert.Equal(t, types.TxKindContractInteraction, txs[3].Kind)
	require.NotNil(t, txs[3].Contract)
	assert.Equal(t, types.OperationDelegateCall, txs[3].Operation)
	assert.Equal(t, []byte{0x12}, []byte(txs[3].Data))
}

func TestUnmarshalTransactionErrors(t *testing.T) {
	_, err := UnmarshalTransaction([]byte(`{"type":"swap","to":"0x00000000000000000000000000000000000000a1"}`))
	require.ErrorIs(t, err, ErrUnsupportedTxType)

	_, err = UnmarshalTransaction([]byte(`{"to":"0x00000000000000000000000000000000000000a1","nonce":"x"}`))
	require.ErrorIs(t, err, ErrInvalidTx)

	_, err = UnmarshalTransaction([]byte(`{"to":"0x00000000000000000000000000000000000000a1","operation":2}`))
	require.ErrorIs(t, err, ErrInvalidTx)

	_, err = UnmarshalTransactions([]byte(`{}`))
	require.ErrorIs(t, err, ErrInvalidTx)
}

func TestTxHash(t *testing.T) {
	h := NewHasher(big.NewInt(1), module)
	txs := sampleTxs()

	a, err := h.TxHash(&txs[0])
	require.NoError(t, err)
	b, err := h.TxHash(&txs[0])
	require.NoError(t, err)
	assert.Equal(t, a, b)

	bumped := txs[0]
	bumped.Nonce = 9
	c, err := h.TxHash(&bumped)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	hex := txs[0]
	hex.Value = "0x3e8"
	d, err := h.TxHash(&hex)
	require.NoError(t, err)
	assert.Equal(t, a, d)

	other := NewHasher(big.NewInt(5), module)
	e, err := other.TxHash(&txs[0])
	require.NoError(t, err)
	assert.NotEqual(t, a, e)

	bad := txs[0]
	bad.Value = "-1"
	_, err = h.TxHash(&bad)
	require.ErrorIs(t, err, ErrInvalidTx)
}

func TestDomainSeparator(t *testing.T) {
	a, err := NewHasher(big.NewInt(1), module).DomainSeparator()
	require.NoError(t, err)
	b, err := NewHasher(big.NewInt(1), common.HexToAddress("0x02")).DomainSeparator()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBatchHash(t *testing.T) {
	h := NewHasher(big.NewInt(1), module)
	txs := sampleTxs()

	batch, err := h.NewBatch(txs)
	require.NoError(t, err)
	require.NoError(t, h.Verify(&batch))

	hashes, err := h.TxHashes(txs)
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash(hashes[0].Bytes(), hashes[1].Bytes()), batch.Hash)

	txs[0].Value = "1"
	assert.Equal(t, "1000", batch.Transactions[0].Value)

	reordered := []types.SafeTransaction{batch.Transactions[1], batch.Transactions[0]}
	rh, err := h.BatchHash(reordered)
	require.NoError(t, err)
	assert.NotEqual(t, batch.Hash, rh)

	batch.Transactions[1].Data = []byte{0x00}
	require.ErrorIs(t, h.Verify(&batch), types.ErrBatchHashMismatch)

	empty, err := h.BatchHash(nil)
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash(nil), empty)
}

func TestQuestionHash(t *testing.T) {
	batch := common.HexToHash("0xbeef")
	assert.Equal(t, QuestionHash("p1", batch), QuestionHash("p1", batch))
	assert.NotEqual(t, QuestionHash("p1", batch), QuestionHash("p2", batch))
	assert.NotEqual(t, QuestionHash("p1", batch), QuestionHash("p1", common.HexToHash("0xbef0")))
}

func TestBatchRejectsDuplicates(t *testing.T) {
	h := NewHasher(big.NewInt(1), module)
	txs := sampleTxs()
	txs = append(txs, txs[0])

	_, err := h.NewBatch(txs)
	require.ErrorIs(t, err, types.ErrDuplicateTx)

	batch := types.SafeModuleTransactionBatch{Hash: common.HexToHash("0x01"), Transactions: txs}
	require.ErrorIs(t, h.Verify(&batch), types.ErrDuplicateTx)

	txs[2].Nonce = 7
	_, err = h.NewBatch(txs)
	require.NoError(t, err)
}
