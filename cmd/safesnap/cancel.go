package main

import (
	"context"

	"github.com/spf13/cobra"
)

type CancelArgs struct {
	Home string
}

var cancelArgs CancelArgs

var cancelCmd = &cobra.Command{
	Use:   "cancel [proposal id]",
	Short: "Cancel a proposal whose question was never asked",
	Args:  cobra.ExactArgs(1),
	RunE:  cancelRun,
}

func init() {
	homeFlag(cancelCmd, &cancelArgs.Home)
}

func cancelRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	n, err := openNode(ctx, cancelArgs.Home, true)
	if err != nil {
		return err
	}
	defer n.close()
	rec, err := n.app.Cancel(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(rec)
}
