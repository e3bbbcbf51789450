package handler

import (
	"bytes"
	"fmt"

	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractTxHandler checks that custom calldata decodes against the ABI
// supplied with the transaction.
type ContractTxHandler struct {
	raw *RawTxHandler
}

func NewContractTxHandler() *ContractTxHandler {
	return &ContractTxHandler{raw: NewRawTxHandler()}
}

func (h *ContractTxHandler) Build(safe common.Address, stx *types.SafeTransaction) error {
	if stx.Contract == nil {
		return tx.ErrMissingPayload
	}
	return nil
}

func (h *ContractTxHandler) Check(stx *types.SafeTransaction) error {
	if err := h.raw.Check(stx); err != nil {
		return err
	}
	if stx.Contract == nil || len(stx.Contract.Abi) == 0 {
		return tx.ErrMissingPayload
	}
	parsed, err := abi.JSON(bytes.NewReader(stx.Contract.Abi))
	if err != nil {
		return fmt.Errorf("%w: abi: %v", tx.ErrInvalidTx, err)
	}
	if len(stx.Data) < 4 {
		return fmt.Errorf("%w: calldata shorter than a selector", tx.ErrInvalidTx)
	}
	method, err := parsed.MethodById(stx.Data[:4])
	if err != nil {
		return fmt.Errorf("%w: %v", tx.ErrUnmatchedTxType, err)
	}
	if _, err := method.Inputs.Unpack(stx.Data[4:]); err != nil {
		return fmt.Errorf("%w: %s arguments: %v", tx.ErrInvalidTx, method.Name, err)
	}
	return nil
}
