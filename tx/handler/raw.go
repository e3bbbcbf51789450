package handler

import (
	"fmt"

	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
)

type RawTxHandler struct{}

func NewRawTxHandler() *RawTxHandler {
	return &RawTxHandler{}
}

func (h *RawTxHandler) Check(stx *types.SafeTransaction) error {
	if stx.To == (common.Address{}) {
		return fmt.Errorf("%w: empty target", tx.ErrInvalidTx)
	}
	if _, err := stx.ValueWei(); err != nil {
		return fmt.Errorf("%w: %v", tx.ErrInvalidTx, err)
	}
	if stx.Operation > types.OperationDelegateCall {
		return fmt.Errorf("%w: operation %d", tx.ErrInvalidTx, stx.Operation)
	}
	return nil
}

func (h *RawTxHandler) Build(safe common.Address, stx *types.SafeTransaction) error {
	return nil
}
