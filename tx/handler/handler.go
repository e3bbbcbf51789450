package handler

import (
	"fmt"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/tx"
	"github.com/calehh/safesnap/types"
	"github.com/ethereum/go-ethereum/common"
)

// TxHandler validates one transaction kind and derives its base call from
// the kind payload.
type TxHandler interface {
	Check(stx *types.SafeTransaction) error
	Build(safe common.Address, stx *types.SafeTransaction) error
}

type Handlers struct {
	logger log.Logger
	hdlrs  map[types.TxKind]TxHandler
}

func NewHandlers(logger log.Logger) *Handlers {
	logger = logger.With("module", "txHandler")
	return &Handlers{
		logger: logger,
		hdlrs: map[types.TxKind]TxHandler{
			types.TxKindRaw:                 NewRawTxHandler(),
			types.TxKindTransferFunds:       NewTransferFundsTxHandler(),
			types.TxKindTransferNFT:         NewTransferNFTTxHandler(),
			types.TxKindContractInteraction: NewContractTxHandler(),
		},
	}
}

func (h *Handlers) get(kind types.TxKind) (TxHandler, error) {
	if kind == "" {
		kind = types.TxKindRaw
	}
	hdlr, ok := h.hdlrs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tx.ErrUnsupportedTxType, kind)
	}
	return hdlr, nil
}

// Prepare builds and checks every transaction of a batch before it is hashed.
func (h *Handlers) Prepare(safe common.Address, txs []types.SafeTransaction) error {
	for i := range txs {
		hdlr, err := h.get(txs[i].Kind)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if err := hdlr.Build(safe, &txs[i]); err != nil {
			h.logger.Error("build transaction fail", "index", i, "kind", txs[i].Kind, "err", err)
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if err := hdlr.Check(&txs[i]); err != nil {
			h.logger.Error("check transaction fail", "index", i, "kind", txs[i].Kind, "err", err)
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}
