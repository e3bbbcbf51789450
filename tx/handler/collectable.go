package handler

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
)

type TransferNFTTxHandler struct {
	raw *RawTxHandler
}

func NewTransferNFTTxHandler() *TransferNFTTxHandler {
	return &TransferNFTTxHandler{raw: NewRawTxHandler()}
}

func (h *TransferNFTTxHandler) calldata(safe common.Address, p *types.CollectableTransfer) ([]byte, error) {
	id, ok := new(big.Int).SetString(p.Collectable.Id, 0)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id %q", tx.ErrInvalidTx, p.Collectable.Id)
	}
	return erc721.Pack("safeTransferFrom", safe, p.Recipient, id)
}

func (h *TransferNFTTxHandler) Build(safe common.Address, stx *types.SafeTransaction) error {
	p := stx.Collectable
	if p == nil {
		return tx.ErrMissingPayload
	}
	data, err := h.calldata(safe, p)
	if err != nil {
		return err
	}
	stx.To = p.Collectable.Address
	stx.Value = "0"
	stx.Data = data
	stx.Operation = types.OperationCall
	return nil
}

func (h *TransferNFTTxHandler) Check(stx *types.SafeTransaction) error {
	if err := h.raw.Check(stx); err != nil {
		return err
	}
	p := stx.Collectable
	if p == nil {
		return tx.ErrMissingPayload
	}
	if p.Recipient == (common.Address{}) || p.Collectable.Address == (common.Address{}) {
		return fmt.Errorf("%w: empty recipient or collection", tx.ErrInvalidTx)
	}
	if stx.To != p.Collectable.Address {
		return fmt.Errorf("%w: target is not the collection", tx.ErrUnmatchedTxType)
	}
	method, err := erc721.MethodById(stx.Data)
	if err != nil || !bytes.Equal(method.ID, erc721.Methods["safeTransferFrom"].ID) {
		return fmt.Errorf("%w: calldata is not safeTransferFrom", tx.ErrUnmatchedTxType)
	}
	return nil
}
