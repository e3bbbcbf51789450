package main

import (
	"context"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/api"
	"github.com/spf13/cobra"
)

type StatusArgs struct {
	Url       string
	Execution bool
}

var statusArgs StatusArgs

var statusCmd = &cobra.Command{
	Use:   "status [proposal id]",
	Short: "Show the execution record of a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  statusRun,
}

func init() {
	urlFlag(statusCmd, &statusArgs.Url)
	statusCmd.Flags().BoolVarP(&statusArgs.Execution, "execution", "e", false, "print the safe execution data instead of the full record")
}

func statusRun(cmd *cobra.Command, args []string) error {
	cli := api.NewClient(statusArgs.Url, log.NewNopLogger())
	if statusArgs.Execution {
		data, err := cli.GetExecution(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(data)
	}
	rec, err := cli.GetRecord(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(rec)
}
