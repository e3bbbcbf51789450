package main

import (
	"fmt"
	"os"
	"time"

	"github.com/calehh/safesnap/tally"
	"github.com/calehh/safesnap/types"
	"github.com/spf13/cobra"
)

type TallyArgs struct {
	Proposal      string
	Votes         string
	Finalize      bool
	ApproveChoice int
	Quorum        float64
}

var tallyArgs TallyArgs

var tallyCmd = &cobra.Command{
	Use:   "tally",
	Short: "Compute the results of a proposal from its votes",
	Args:  cobra.ExactArgs(0),
	RunE:  tallyRun,
}

func init() {
	tallyCmd.Flags().StringVarP(&tallyArgs.Proposal, "proposal", "p", "", "proposal json file")
	tallyCmd.Flags().StringVarP(&tallyArgs.Votes, "votes", "v", "", "votes json file")
	tallyCmd.Flags().BoolVarP(&tallyArgs.Finalize, "finalize", "f", false, "freeze the scores and check the execution policy")
	tallyCmd.Flags().IntVar(&tallyArgs.ApproveChoice, "approve-choice", 0, "0-based index of the approving choice")
	tallyCmd.Flags().Float64Var(&tallyArgs.Quorum, "quorum", 0, "quorum override")
	_ = tallyCmd.MarkFlagRequired("proposal")
	_ = tallyCmd.MarkFlagRequired("votes")
}

func tallyRun(cmd *cobra.Command, args []string) error {
	var p types.Proposal
	if err := readJSON(tallyArgs.Proposal, &p); err != nil {
		return err
	}
	var votes []types.Vote
	if err := readJSON(tallyArgs.Votes, &votes); err != nil {
		return err
	}
	logger, err := newLogger("error")
	if err != nil {
		return err
	}
	t := tally.NewTallier(logger)
	if !tallyArgs.Finalize {
		res, err := t.Tally(&p, votes)
		if err != nil {
			return err
		}
		return printJSON(res)
	}
	if err := t.Finalize(&p, votes, time.Now().Unix()); err != nil {
		return err
	}
	if err := printJSON(p.Results()); err != nil {
		return err
	}
	policy := tally.Policy{ApproveChoice: tallyArgs.ApproveChoice, Quorum: tallyArgs.Quorum}
	if err := policy.Passed(&p); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil
	}
	fmt.Fprintf(os.Stderr, "proposal %s passed\n", p.Id)
	return nil
}
