package handler

import (
	"encoding/json"
	"math/big"
	"testing"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	safe      = common.HexToAddress("0x3000000000000000000000000000000000000003")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	token     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestPrepareNativeTransfer(t *testing.T) {
	txs := []types.SafeTransaction{{
		Kind:     types.TxKindTransferFunds,
		Transfer: &types.TokenTransfer{Recipient: recipient, Amount: "1000"},
	}}
	require.NoError(t, NewHandlers(log.NewNopLogger()).Prepare(safe, txs))
	assert.Equal(t, recipient, txs[0].To)
	assert.Equal(t, "1000", txs[0].Value)
	assert.Empty(t, txs[0].Data)
}

func TestPrepareTokenTransfer(t *testing.T) {
	txs := []types.SafeTransaction{{
		Kind: types.TxKindTransferFunds,
		Transfer: &types.TokenTransfer{
			Recipient: recipient,
			Amount:    "5",
			Token:     types.TokenAsset{SafeAsset: types.SafeAsset{Address: token}},
		},
	}}
	require.NoError(t, NewHandlers(log.NewNopLogger()).Prepare(safe, txs))
	assert.Equal(t, token, txs[0].To)
	assert.Equal(t, "0", txs[0].Value)
	expect, err := erc20.Pack("transfer", recipient, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, expect, []byte(txs[0].Data))
}

func TestTransferCheckMismatch(t *testing.T) {
	h := NewTransferFundsTxHandler()
	stx := &types.SafeTransaction{
		To:       common.HexToAddress("0xdead"),
		Value:    "1000",
		Kind:     types.TxKindTransferFunds,
		Transfer: &types.TokenTransfer{Recipient: recipient, Amount: "1000"},
	}
	require.ErrorIs(t, h.Check(stx), tx.ErrUnmatchedTxType)

	stx.Transfer.Amount = "0"
	require.ErrorIs(t, h.Build(safe, stx), tx.ErrInvalidTx)

	stx.Transfer = nil
	require.ErrorIs(t, h.Build(safe, stx), tx.ErrMissingPayload)
}

func TestPrepareNFTTransfer(t *testing.T) {
	collection := common.HexToAddress("0x00000000000000000000000000000000000000a3")
	txs := []types.SafeTransaction{{
		Kind: types.TxKindTransferNFT,
		Collectable: &types.CollectableTransfer{
			Recipient:   recipient,
			Collectable: types.CollectableAsset{SafeAsset: types.SafeAsset{Address: collection}, Id: "7"},
		},
	}}
	require.NoError(t, NewHandlers(log.NewNopLogger()).Prepare(safe, txs))
	assert.Equal(t, collection, txs[0].To)
	expect, err := erc721.Pack("safeTransferFrom", safe, recipient, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, expect, []byte(txs[0].Data))

	txs[0].Collectable.Collectable.Id = "seven"
	require.ErrorIs(t, NewHandlers(log.NewNopLogger()).Prepare(safe, txs), tx.ErrInvalidTx)
}

func TestContractCheck(t *testing.T) {
	def := `[{"type":"function","name":"setOwner","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"}],"outputs":[]}]`
	parsed := mustABI(def)
	data, err := parsed.Pack("setOwner", recipient)
	require.NoError(t, err)

	h := NewContractTxHandler()
	stx := &types.SafeTransaction{
		To:       common.HexToAddress("0xa4"),
		Value:    "0",
		Data:     data,
		Kind:     types.TxKindContractInteraction,
		Contract: &types.ContractInteraction{Abi: json.RawMessage(def)},
	}
	require.NoError(t, h.Check(stx))

	stx.Data = data[:4]
	require.ErrorIs(t, h.Check(stx), tx.ErrInvalidTx)

	stx.Data = []byte{0x01, 0x02, 0x03, 0x04}
	require.ErrorIs(t, h.Check(stx), tx.ErrUnmatchedTxType)

	stx.Contract = nil
	require.ErrorIs(t, h.Check(stx), tx.ErrMissingPayload)
}

func TestPrepareRejects(t *testing.T) {
	hs := NewHandlers(log.NewNopLogger())
	require.NoError(t, hs.Prepare(safe, []types.SafeTransaction{{To: recipient, Value: "1"}}))
	require.ErrorIs(t, hs.Prepare(safe, []types.SafeTransaction{{Value: "1"}}), tx.ErrInvalidTx)
	require.ErrorIs(t, hs.Prepare(safe, []types.SafeTransaction{{To: recipient, Value: "abc"}}), tx.ErrInvalidTx)
	require.ErrorIs(t, hs.Prepare(safe, []types.SafeTransaction{{To: recipient, Kind: "swap"}}), tx.ErrUnsupportedTxType)
}
