package main

import (
	"context"

	"github.com/calehh/safesnap/types"
	"github.com/spf13/cobra"
)

type SubmitArgs struct {
	Home     string
	Mock     bool
	Proposal string
	Votes    string
}

var submitArgs SubmitArgs

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Tally a closed proposal and open its oracle question",
	Long: `Reads a proposal and its votes, finalizes the scores and, when the proposal passed,
records its transaction batch and asks the reality oracle. The engine must not be running
on the same home directory.`,
	Args: cobra.ExactArgs(0),
	RunE: submitRun,
}

func init() {
	homeFlag(submitCmd, &submitArgs.Home)
	mockFlag(submitCmd, &submitArgs.Mock)
	submitCmd.Flags().StringVarP(&submitArgs.Proposal, "proposal", "p", "", "proposal json file")
	submitCmd.Flags().StringVarP(&submitArgs.Votes, "votes", "v", "", "votes json file")
	_ = submitCmd.MarkFlagRequired("proposal")
}

func submitRun(cmd *cobra.Command, args []string) error {
	var p types.Proposal
	if err := readJSON(submitArgs.Proposal, &p); err != nil {
		return err
	}
	var votes []types.Vote
	if submitArgs.Votes != "" {
		if err := readJSON(submitArgs.Votes, &votes); err != nil {
			return err
		}
	}

	ctx := context.Background()
	n, err := openNode(ctx, submitArgs.Home, submitArgs.Mock)
	if err != nil {
		return err
	}
	defer n.close()
	rec, err := n.app.Submit(ctx, &p, votes)
	if err != nil {
		return err
	}
	return printJSON(rec)
}
