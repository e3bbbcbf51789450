package main

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/api"
	"github.com/spf13/cobra"
)

type PendingArgs struct {
	Url string
}

var pendingArgs PendingArgs

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List proposals that have not reached a terminal state",
	Args:  cobra.ExactArgs(0),
	RunE:  pendingRun,
}

func init() {
	urlFlag(pendingCmd, &pendingArgs.Url)
}

func pendingRun(cmd *cobra.Command, args []string) error {
	cli := api.NewClient(pendingArgs.Url, log.NewNopLogger())
	res, err := cli.GetPending(context.Background())
	if err != nil {
		return err
	}
	for _, rec := range res.Records {
		fmt.Printf("%s\t%s\t%s\t%d/%d\n", rec.ProposalId, rec.Network, rec.Status, rec.NextTxIndex, len(rec.Transactions))
	}
	fmt.Printf("total: %d\n", res.Total)
	return nil
}
