package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/calehh/safesnap/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type BondArgs struct {
	Home   string
	Mock   bool
	Answer string
	Amount string
}

var bondArgs BondArgs

var bondCmd = &cobra.Command{
	Use:   "bond [proposal id]",
	Short: "Post a bonded answer on the oracle question of a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  bondRun,
}

func init() {
	homeFlag(bondCmd, &bondArgs.Home)
	mockFlag(bondCmd, &bondArgs.Mock)
	bondCmd.Flags().StringVarP(&bondArgs.Answer, "answer", "a", "yes", "yes, no or a 32 byte hex answer")
	bondCmd.Flags().StringVar(&bondArgs.Amount, "amount", "", "bond in wei")
	_ = bondCmd.MarkFlagRequired("amount")
}

func parseAnswer(s string) (common.Hash, error) {
	switch s {
	case "yes":
		return chain.AnswerYes, nil
	case "no":
		return chain.AnswerNo, nil
	}
	if len(s) != 66 {
		return common.Hash{}, fmt.Errorf("invalid answer %q", s)
	}
	return common.HexToHash(s), nil
}

func bondRun(cmd *cobra.Command, args []string) error {
	answer, err := parseAnswer(bondArgs.Answer)
	if err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(bondArgs.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("invalid amount %q", bondArgs.Amount)
	}

	ctx := context.Background()
	n, err := openNode(ctx, bondArgs.Home, bondArgs.Mock)
	if err != nil {
		return err
	}
	defer n.close()
	rec, err := n.app.Bond(ctx, args[0], answer, amount)
	if err != nil {
		return err
	}
	return printJSON(rec)
}
