package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/calehh/safesnap/config"
	"github.com/calehh/safesnap/crypto"
	"github.com/spf13/cobra"
)

type printInfo struct {
	Home     string `json:"home"`
	Config   string `json:"config"`
	Executor string `json:"executor"`
}

type InitArgs struct {
	Home      string
	Overwrite bool
	Url       string
	ChainId   uint64
}

var initArgs InitArgs

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration and generate the executor key",
	Args:  cobra.ExactArgs(0),
	RunE:  initRun,
}

func init() {
	homeFlag(initCmd, &initArgs.Home)
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, "overwrite", "o", false, "overwrite an existing config file")
	initCmd.Flags().StringVar(&initArgs.Url, "eth-url", "", "rpc url of the local network")
	initCmd.Flags().Uint64Var(&initArgs.ChainId, "chain-id", 0, "chain id of the local network")
}

func initRun(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig(initArgs.Home)
	network := config.LocalNetwork()
	if initArgs.Url != "" {
		network.Url = initArgs.Url
	}
	if initArgs.ChainId != 0 {
		network.ChainId = initArgs.ChainId
		network.Name = fmt.Sprintf("%d", initArgs.ChainId)
	}
	cfg.Networks = []config.NetworkConfig{network}

	if _, err := os.Stat(cfg.ConfigFile()); err == nil && !initArgs.Overwrite {
		return fmt.Errorf("%s already exists, use --overwrite", cfg.ConfigFile())
	}
	if err := config.WriteConfigFile(cfg.ConfigFile(), cfg); err != nil {
		return err
	}

	key, err := crypto.LoadFileKey(cfg.KeyFile())
	if errors.Is(err, os.ErrNotExist) {
		key, err = crypto.GenerateFileKey(cfg.KeyFile())
	}
	if err != nil {
		return err
	}
	return printJSON(printInfo{
		Home:     cfg.Home,
		Config:   cfg.ConfigFile(),
		Executor: key.Address().Hex(),
	})
}
