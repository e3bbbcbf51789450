package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cosmossdk.io/log"
	"github.com/calehh/safesnap/app"
	"github.com/calehh/safesnap/archive"
	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/config"
	"github.com/calehh/safesnap/crypto"
	"github.com/calehh/safesnap/oracle"
	"github.com/calehh/safesnap/state"
	"github.com/calehh/safesnap/tally"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func newLogger(level string) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	return log.NewLogger(os.Stdout, log.LevelOption(lvl)), nil
}

type node struct {
	cfg    *config.Config
	logger log.Logger
	app    *app.App
	reg    *prometheus.Registry
	router *chain.Router
}

func (n *node) close() {
	n.app.Stop()
	if n.router != nil {
		n.router.Close()
	}
}

func targets(cfg *config.Config, router *chain.Router) (map[string]oracle.Target, error) {
	ts := make(map[string]oracle.Target, len(cfg.Networks))
	for _, n := range cfg.Networks {
		chainId := n.ChainId
		if router != nil {
			c, err := router.Client(n.Name)
			if err != nil {
				return nil, err
			}
			remote := c.ChainId().Uint64()
			if chainId != 0 && chainId != remote {
				return nil, fmt.Errorf("network %s: configured chain id %d, node reports %d", n.Name, chainId, remote)
			}
			chainId = remote
		}
		ts[n.Name] = oracle.Target{
			Network:       n.Name,
			ChainId:       chainId,
			Dao:           common.HexToAddress(n.Dao),
			Oracle:        common.HexToAddress(n.Oracle),
			RealityModule: common.HexToAddress(n.RealityModule),
			Cooldown:      n.Cooldown,
			Expiration:    n.Expiration,
		}
	}
	return ts, nil
}

func dial(ctx context.Context, cfg *config.Config, logger log.Logger) (*chain.Router, error) {
	key, err := crypto.LoadFileKey(cfg.KeyFile())
	if err != nil {
		return nil, err
	}
	router := chain.NewRouter()
	for _, n := range cfg.Networks {
		c, err := chain.DialEth(ctx, n.Name, n.Url, key.PrivateKey(), cfg.Executor.ConfirmTimeout, logger)
		if err != nil {
			router.Close()
			return nil, err
		}
		router.Add(n.Name, c)
	}
	logger.Info("executor", "address", key.Address().Hex())
	return router, nil
}

// openNode wires the store, archive and transports of home into an App.
func openNode(ctx context.Context, home string, mock bool) (*node, error) {
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var client app.Client
	var router *chain.Router
	if mock {
		client = chain.NewMockClient()
	} else {
		router, err = dial(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		client = router
	}
	closeRouter := func() {
		if router != nil {
			router.Close()
		}
	}
	ts, err := targets(cfg, router)
	if err != nil {
		closeRouter()
		return nil, err
	}

	db, err := state.NewStateDB(cfg.StateDir(), cfg.State.Backend, logger)
	if err != nil {
		closeRouter()
		return nil, err
	}
	if mc, ok := client.(*chain.MockClient); ok {
		recs, err := db.List()
		if err != nil {
			db.Close()
			return nil, err
		}
		mc.Seed(recs)
	}
	var arc *archive.Archive
	if cfg.Archive.Enable {
		arc, err = archive.Open(cfg.ArchivePath(), logger)
		if err != nil {
			db.Close()
			closeRouter()
			return nil, err
		}
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Oracle.RatePerSecond), cfg.Oracle.Burst)
	retrier := chain.NewRetrier(cfg.Retry, limiter, logger)
	reg := prometheus.NewRegistry()
	a := app.NewApp(app.Config{
		PollInterval:  cfg.Engine.PollInterval,
		SweepInterval: cfg.Engine.SweepInterval,
		Workers:       cfg.Engine.Workers,
		Policy:        tally.Policy{ApproveChoice: cfg.Engine.ApproveChoice, Quorum: cfg.Engine.Quorum},
		Targets:       ts,
	}, db, arc, client, retrier, reg, logger)
	return &node{cfg: cfg, logger: logger, app: a, reg: reg, router: router}, nil
}

func readJSON(path string, v any) error {
	dat, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(dat, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", out)
	return err
}
