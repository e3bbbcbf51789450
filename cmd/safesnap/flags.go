package main

import (
	"github.com/calehh/safesnap/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "safesnap",
	Short:        "Oracle gated execution of governance proposals",
	SilenceUsage: true,
}

func homeFlag(cmd *cobra.Command, home *string) {
	cmd.Flags().StringVarP(home, "home", "d", config.DefaultHomeDir, "home directory")
}

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://"+config.DefaultAPIListen, "safesnap api url")
}

func mockFlag(cmd *cobra.Command, mock *bool) {
	cmd.Flags().BoolVar(mock, "mock", false, "use the in-memory oracle and chain, seeded from the local store, instead of the configured networks")
}
