package handler

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
)

// TransferFundsTxHandler handles native and ERC20 transfers. A zero token
// address denotes the native asset.
type TransferFundsTxHandler struct {
	raw *RawTxHandler
}

func NewTransferFundsTxHandler() *TransferFundsTxHandler {
	return &TransferFundsTxHandler{raw: NewRawTxHandler()}
}

func (h *TransferFundsTxHandler) amount(p *types.TokenTransfer) (*big.Int, error) {
	v, ok := new(big.Int).SetString(p.Amount, 0)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount %q", tx.ErrInvalidTx, p.Amount)
	}
	return v, nil
}

func (h *TransferFundsTxHandler) Build(safe common.Address, stx *types.SafeTransaction) error {
	p := stx.Transfer
	if p == nil {
		return tx.ErrMissingPayload
	}
	amount, err := h.amount(p)
	if err != nil {
		return err
	}
	stx.Operation = types.OperationCall
	if p.Token.Address == (common.Address{}) {
		stx.To = p.Recipient
		stx.Value = amount.String()
		stx.Data = nil
		return nil
	}
	data, err := erc20.Pack("transfer", p.Recipient, amount)
	if err != nil {
		return err
	}
	stx.To = p.Token.Address
	stx.Value = "0"
	stx.Data = data
	return nil
}

func (h *TransferFundsTxHandler) Check(stx *types.SafeTransaction) error {
	if err := h.raw.Check(stx); err != nil {
		return err
	}
	p := stx.Transfer
	if p == nil {
		return tx.ErrMissingPayload
	}
	if p.Recipient == (common.Address{}) {
		return fmt.Errorf("%w: empty recipient", tx.ErrInvalidTx)
	}
	amount, err := h.amount(p)
	if err != nil {
		return err
	}
	if p.Token.Address == (common.Address{}) {
		if stx.To != p.Recipient || stx.Value != amount.String() || len(stx.Data) != 0 {
			return fmt.Errorf("%w: native transfer does not match payload", tx.ErrUnmatchedTxType)
		}
		return nil
	}
	expect, err := erc20.Pack("transfer", p.Recipient, amount)
	if err != nil {
		return err
	}
	if stx.To != p.Token.Address || !bytes.Equal(stx.Data, expect) {
		return fmt.Errorf("%w: token transfer does not match payload", tx.ErrUnmatchedTxType)
	}
	return nil
}
