package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/calehh/safesnap/tx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type HashArgs struct {
	Transactions  string
	ChainId       uint64
	RealityModule string
	ProposalId    string
}

var hashArgs HashArgs

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Print the module transaction hashes and the batch hash of a transaction list",
	Args:  cobra.ExactArgs(0),
	RunE:  hashRun,
}

func init() {
	hashCmd.Flags().StringVarP(&hashArgs.Transactions, "txs", "t", "", "transactions json file")
	hashCmd.Flags().Uint64VarP(&hashArgs.ChainId, "chain-id", "c", 1, "chain id of the reality module")
	hashCmd.Flags().StringVarP(&hashArgs.RealityModule, "module", "m", "", "reality module address")
	hashCmd.Flags().StringVarP(&hashArgs.ProposalId, "proposal", "p", "", "also print the question hash for this proposal id")
	_ = hashCmd.MarkFlagRequired("txs")
	_ = hashCmd.MarkFlagRequired("module")
}

func hashRun(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(hashArgs.RealityModule) {
		return fmt.Errorf("invalid module address %q", hashArgs.RealityModule)
	}
	dat, err := os.ReadFile(hashArgs.Transactions)
	if err != nil {
		return err
	}
	txs, err := tx.UnmarshalTransactions(dat)
	if err != nil {
		return err
	}
	h := tx.NewHasher(new(big.Int).SetUint64(hashArgs.ChainId), common.HexToAddress(hashArgs.RealityModule))
	hashes, err := h.TxHashes(txs)
	if err != nil {
		return err
	}
	for i, th := range hashes {
		fmt.Printf("tx %d: %s\n", i, th.Hex())
	}
	batch, err := h.BatchHash(txs)
	if err != nil {
		return err
	}
	fmt.Printf("batch: %s\n", batch.Hex())
	if hashArgs.ProposalId != "" {
		fmt.Printf("question: %s\n", tx.QuestionHash(hashArgs.ProposalId, batch).Hex())
	}
	return nil
}
