package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/safesnap/chain"
	"github.com/calehh/safesnap/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	DefaultHomeDir   = "$HOME/.safesnap"
	ConfigFileName   = "config.toml"
	ExecutorKeyFile  = "executor_priv_key"
	DefaultLogLevel  = "info"
	DefaultAPIListen = "127.0.0.1:8080"
)

var ErrInvalidConfig = errors.New("invalid config")

type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type ArchiveConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

type EngineConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Workers       int           `mapstructure:"workers"`
	ApproveChoice int           `mapstructure:"approve_choice"`
	Quorum        float64       `mapstructure:"quorum"`
}

type OracleConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

type ExecutorConfig struct {
	KeyFile        string        `mapstructure:"key_file"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// NetworkConfig is one EVM network and the reality module deployed on it.
type NetworkConfig struct {
	Name          string `mapstructure:"name"`
	Url           string `mapstructure:"url"`
	ChainId       uint64 `mapstructure:"chain_id"`
	RealityModule string `mapstructure:"reality_module"`
	Oracle        string `mapstructure:"oracle"`
	Dao           string `mapstructure:"dao"`
	Cooldown      int64  `mapstructure:"cooldown"`
	Expiration    int64  `mapstructure:"expiration"`
}

type APIConfig struct {
	Enable        bool   `mapstructure:"enable"`
	ListenAddress string `mapstructure:"listen_address"`
	Metrics       bool   `mapstructure:"metrics"`
}

type Config struct {
	Home string `mapstructure:"-"`

	LogLevel string            `mapstructure:"log_level"`
	State    StateConfig       `mapstructure:"state"`
	Archive  ArchiveConfig     `mapstructure:"archive"`
	Engine   EngineConfig      `mapstructure:"engine"`
	Retry    chain.RetryConfig `mapstructure:"retry"`
	Oracle   OracleConfig      `mapstructure:"oracle"`
	Executor ExecutorConfig    `mapstructure:"executor"`
	API      APIConfig         `mapstructure:"api"`
	Networks []NetworkConfig   `mapstructure:"networks"`
}

func ExpandHome(home string) string {
	if len(home) == 0 {
		home = DefaultHomeDir
	}
	return os.ExpandEnv(home)
}

func DefaultConfig(home string) *Config {
	home = ExpandHome(home)
	return &Config{
		Home:     home,
		LogLevel: DefaultLogLevel,
		State: StateConfig{
			Backend: state.BackendLevelDB,
			Dir:     "data",
		},
		Archive: ArchiveConfig{
			Enable: true,
			Path:   "archive.db",
		},
		Engine: EngineConfig{
			PollInterval:  15 * time.Second,
			SweepInterval: time.Minute,
			Workers:       8,
		},
		Retry: chain.DefaultRetryConfig(),
		Oracle: OracleConfig{
			RatePerSecond: 5,
			Burst:         5,
		},
		Executor: ExecutorConfig{
			KeyFile:        filepath.Join("config", ExecutorKeyFile),
			ConfirmTimeout: 5 * time.Minute,
		},
		API: APIConfig{
			Enable:        true,
			ListenAddress: DefaultAPIListen,
			Metrics:       true,
		},
	}
}

// LocalNetwork is the network written by init when none is given.
func LocalNetwork() NetworkConfig {
	return NetworkConfig{
		Name:     "1",
		Url:      "http://127.0.0.1:8545",
		ChainId:  1,
		Cooldown: 86400,
	}
}

func (c *Config) ConfigDir() string {
	return filepath.Join(c.Home, "config")
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.ConfigDir(), ConfigFileName)
}

func (c *Config) rooted(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}

func (c *Config) StateDir() string {
	return c.rooted(c.State.Dir)
}

func (c *Config) ArchivePath() string {
	return c.rooted(c.Archive.Path)
}

func (c *Config) KeyFile() string {
	return c.rooted(c.Executor.KeyFile)
}

func (c *Config) Network(name string) (NetworkConfig, error) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, nil
		}
	}
	return NetworkConfig{}, fmt.Errorf("%w: network %q not configured", ErrInvalidConfig, name)
}

func (c *Config) ValidateBasic() error {
	switch c.State.Backend {
	case state.BackendLevelDB, state.BackendIAVL:
	default:
		return fmt.Errorf("%w: state backend %q", ErrInvalidConfig, c.State.Backend)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("%w: engine workers must be positive", ErrInvalidConfig)
	}
	if c.Engine.PollInterval <= 0 || c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("%w: engine intervals must be positive", ErrInvalidConfig)
	}
	if c.Engine.Quorum < 0 {
		return fmt.Errorf("%w: negative quorum", ErrInvalidConfig)
	}
	seen := make(map[string]bool)
	for _, n := range c.Networks {
		if n.Name == "" {
			return fmt.Errorf("%w: network without name", ErrInvalidConfig)
		}
		if seen[n.Name] {
			return fmt.Errorf("%w: network %q listed twice", ErrInvalidConfig, n.Name)
		}
		seen[n.Name] = true
		for field, addr := range map[string]string{"reality_module": n.RealityModule, "oracle": n.Oracle, "dao": n.Dao} {
			if addr != "" && !common.IsHexAddress(addr) {
				return fmt.Errorf("%w: network %q %s %q", ErrInvalidConfig, n.Name, field, addr)
			}
		}
		if n.Cooldown < 0 || n.Expiration < 0 {
			return fmt.Errorf("%w: network %q negative cooldown or expiration", ErrInvalidConfig, n.Name)
		}
	}
	return nil
}

// Load reads $home/config/config.toml over the defaults.
func Load(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile())
	v.SetEnvPrefix("SAFESNAP")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Home = ExpandHome(home)
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	return cfg, nil
}
