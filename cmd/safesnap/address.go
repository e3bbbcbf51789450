package main

import (
	"fmt"

	"github.com/calehh/safesnap/config"
	"github.com/calehh/safesnap/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

type AddressArgs struct {
	Home   string
	PubKey bool
}

var addressArgs AddressArgs

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the executor address",
	Args:  cobra.ExactArgs(0),
	RunE:  addressRun,
}

func init() {
	homeFlag(addressCmd, &addressArgs.Home)
	addressCmd.Flags().BoolVar(&addressArgs.PubKey, "pubkey", false, "also print the uncompressed public key")
}

func addressRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(addressArgs.Home)
	if err != nil {
		return err
	}
	key, err := crypto.LoadFileKey(cfg.KeyFile())
	if err != nil {
		return err
	}
	fmt.Println(key.Address().Hex())
	if addressArgs.PubKey {
		fmt.Println(hexutil.Encode(key.PublicKey()))
	}
	return nil
}
