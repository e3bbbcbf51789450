package tx

import (
	"encoding/json"
	"fmt"

	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// baseTx is the flat wire shape shared by every transaction kind.
type baseTx struct {
	Type      types.TxKind    `json:"type"`
	To        common.Address  `json:"to"`
	Value     string          `json:"value"`
	Data      hexutil.Bytes   `json:"data"`
	Operation types.Operation `json:"operation"`
	Nonce     flexUint        `json:"nonce"`
}

func parseTxKind(dat []byte) types.TxKind {
	var tx struct {
		Type types.TxKind `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return ""
	}
	if tx.Type == "" {
		return types.TxKindRaw
	}
	return tx.Type
}

func unmarshalTx[P any](dat []byte, set func(*types.SafeTransaction, *P)) (stx *types.SafeTransaction, err error) {
	var base baseTx
	err = json.Unmarshal(dat, &base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	stx = &types.SafeTransaction{
		To:        base.To,
		Value:     base.Value,
		Data:      base.Data,
		Operation: base.Operation,
		Nonce:     uint64(base.Nonce),
		Kind:      parseTxKind(dat),
	}
	if set == nil {
		return stx, nil
	}
	payload := new(P)
	err = json.Unmarshal(dat, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrInvalidTx, stx.Kind, err)
	}
	set(stx, payload)
	return stx, nil
}

// UnmarshalTransaction decodes one transaction in the flat form used by
// proposal plugins, where kind specific fields sit next to the base fields.
func UnmarshalTransaction(dat []byte) (stx *types.SafeTransaction, err error) {
	switch parseTxKind(dat) {
	case types.TxKindRaw:
		return unmarshalTx[struct{}](dat, nil)
	case types.TxKindTransferFunds:
		return unmarshalTx(dat, func(t *types.SafeTransaction, p *types.TokenTransfer) { t.Transfer = p })
	case types.TxKindTransferNFT:
		return unmarshalTx(dat, func(t *types.SafeTransaction, p *types.CollectableTransfer) { t.Collectable = p })
	case types.TxKindContractInteraction:
		return unmarshalTx(dat, func(t *types.SafeTransaction, p *types.ContractInteraction) { t.Contract = p })
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func UnmarshalTransactions(dat []byte) ([]types.SafeTransaction, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(dat, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	txs := make([]types.SafeTransaction, 0, len(raws))
	for i, raw := range raws {
		stx, err := UnmarshalTransaction(raw)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, *stx)
	}
	return txs, nil
}

func MarshalTransactions(txs []types.SafeTransaction) ([]byte, error) {
	return json.Marshal(txs)
}
