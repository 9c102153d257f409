package client

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/lox/faceworth/internal/contract"
	"github.com/lox/faceworth/internal/keeper"
	"github.com/lox/faceworth/internal/poll"
	"github.com/lox/faceworth/internal/tron"
	"github.com/lox/faceworth/internal/wallet"
)

// DefaultPrivateKeyEnv names the environment variable holding the local key.
const DefaultPrivateKeyEnv = "FACEWORTH_PRIVATE_KEY"

// Config represents the complete client configuration
type Config struct {
	Node     NodeSettings     `hcl:"node,block"`
	Contract ContractSettings `hcl:"contract,block"`
	Wallet   WalletSettings   `hcl:"wallet,block"`
	Keeper   KeeperSettings   `hcl:"keeper,block"`
	Poll     PollSettings     `hcl:"poll,block"`
	UI       UISettings       `hcl:"ui,block"`
}

// NodeSettings contains full node connection settings
type NodeSettings struct {
	URL      string `hcl:"url,optional"`
	EventURL string `hcl:"event_url,optional"`
	APIKey   string `hcl:"api_key,optional"`
	Timeout  string `hcl:"timeout,optional"`
}

// ContractSettings identifies the deployed FaceWorthPollFactory
type ContractSettings struct {
	Address       string `hcl:"address"`
	FeeLimit      int64  `hcl:"fee_limit,optional"`
	WatchInterval string `hcl:"watch_interval,optional"`
	ReplayFrom    string `hcl:"replay_from,optional"`
}

// WalletSettings controls wallet detection
type WalletSettings struct {
	BridgeURL         string `hcl:"bridge_url,optional"`
	PrivateKeyEnv     string `hcl:"private_key_env,optional"`
	DetectInterval    string `hcl:"detect_interval,optional"`
	DetectTries       int    `hcl:"detect_tries,optional"`
	FoundationAddress string `hcl:"foundation_address,optional"`
	FallbackURL       string `hcl:"fallback_url,optional"`
}

// KeeperSettings sizes the periodic loops
type KeeperSettings struct {
	RefreshInterval string `hcl:"refresh_interval,optional"`
	CheckInterval   string `hcl:"check_interval,optional"`
	QueueSize       int    `hcl:"queue_size,optional"`
	Workers         int    `hcl:"workers,optional"`
	// CheckFinished keeps sending checkBlockNumber for cancelled and ended polls
	CheckFinished bool `hcl:"check_finished,optional"`
}

// PollSettings holds defaults for new polls and votes
type PollSettings struct {
	BlocksBeforeReveal int    `hcl:"blocks_before_reveal,optional"`
	BlocksBeforeEnd    int    `hcl:"blocks_before_end,optional"`
	Salt               string `hcl:"salt,optional"`
}

// UISettings contains user interface settings
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
	Theme    string `hcl:"theme,optional"`
}

// DefaultConfig returns default client configuration. The contract address
// has no default.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeSettings{
			URL:     wallet.FallbackEndpoint,
			Timeout: "10s",
		},
		Contract: ContractSettings{
			FeeLimit:      contract.DefaultFeeLimit,
			WatchInterval: contract.DefaultWatchInterval.String(),
		},
		Wallet: WalletSettings{
			PrivateKeyEnv:     DefaultPrivateKeyEnv,
			DetectInterval:    wallet.DefaultDetectInterval.String(),
			DetectTries:       wallet.DefaultDetectTries,
			FoundationAddress: wallet.FoundationAddress,
			FallbackURL:       wallet.FallbackEndpoint,
		},
		Keeper: KeeperSettings{
			RefreshInterval: keeper.DefaultRefreshInterval.String(),
			CheckInterval:   keeper.DefaultCheckInterval.String(),
			QueueSize:       keeper.DefaultQueueSize,
			Workers:         keeper.DefaultWorkers,
		},
		Poll: PollSettings{
			BlocksBeforeReveal: poll.DefaultBlocksBeforeReveal,
			BlocksBeforeEnd:    poll.DefaultBlocksBeforeEnd,
			Salt:               poll.DefaultSalt,
		},
		UI: UISettings{
			LogLevel: "info",
			LogFile:  "faceworth.log",
			Theme:    "default",
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

// LoadEnv loads variables from dotenv files, ignoring files that don't exist.
// Variables already set in the environment win.
func LoadEnv(filenames ...string) error {
	for _, f := range filenames {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Node.URL == "" {
		c.Node.URL = defaults.Node.URL
	}
	if c.Node.Timeout == "" {
		c.Node.Timeout = defaults.Node.Timeout
	}

	if c.Contract.FeeLimit == 0 {
		c.Contract.FeeLimit = defaults.Contract.FeeLimit
	}
	if c.Contract.WatchInterval == "" {
		c.Contract.WatchInterval = defaults.Contract.WatchInterval
	}

	if c.Wallet.PrivateKeyEnv == "" {
		c.Wallet.PrivateKeyEnv = defaults.Wallet.PrivateKeyEnv
	}
	if c.Wallet.DetectInterval == "" {
		c.Wallet.DetectInterval = defaults.Wallet.DetectInterval
	}
	if c.Wallet.DetectTries == 0 {
		c.Wallet.DetectTries = defaults.Wallet.DetectTries
	}
	if c.Wallet.FoundationAddress == "" {
		c.Wallet.FoundationAddress = defaults.Wallet.FoundationAddress
	}
	if c.Wallet.FallbackURL == "" {
		c.Wallet.FallbackURL = defaults.Wallet.FallbackURL
	}

	if c.Keeper.RefreshInterval == "" {
		c.Keeper.RefreshInterval = defaults.Keeper.RefreshInterval
	}
	if c.Keeper.CheckInterval == "" {
		c.Keeper.CheckInterval = defaults.Keeper.CheckInterval
	}
	if c.Keeper.QueueSize == 0 {
		c.Keeper.QueueSize = defaults.Keeper.QueueSize
	}
	if c.Keeper.Workers == 0 {
		c.Keeper.Workers = defaults.Keeper.Workers
	}

	if c.Poll.BlocksBeforeReveal == 0 {
		c.Poll.BlocksBeforeReveal = defaults.Poll.BlocksBeforeReveal
	}
	if c.Poll.BlocksBeforeEnd == 0 {
		c.Poll.BlocksBeforeEnd = defaults.Poll.BlocksBeforeEnd
	}
	if c.Poll.Salt == "" {
		c.Poll.Salt = defaults.Poll.Salt
	}

	if c.UI.LogLevel == "" {
		c.UI.LogLevel = defaults.UI.LogLevel
	}
	if c.UI.LogFile == "" {
		c.UI.LogFile = defaults.UI.LogFile
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// Validate validates the client configuration
func (c *Config) Validate() error {
	if c.Node.URL == "" {
		return fmt.Errorf("node URL is required")
	}
	if c.Contract.Address == "" {
		return fmt.Errorf("contract address is required")
	}
	if _, err := tron.ParseAddress(c.Contract.Address); err != nil {
		return fmt.Errorf("contract address: %w", err)
	}
	if _, err := tron.ParseAddress(c.Wallet.FoundationAddress); err != nil {
		return fmt.Errorf("foundation address: %w", err)
	}
	if c.Contract.FeeLimit <= 0 {
		return fmt.Errorf("fee limit must be positive")
	}
	if c.Contract.ReplayFrom != "" {
		if _, err := time.Parse(time.RFC3339, c.Contract.ReplayFrom); err != nil {
			return fmt.Errorf("replay_from must be RFC3339: %w", err)
		}
	}

	durations := map[string]string{
		"node.timeout":            c.Node.Timeout,
		"contract.watch_interval": c.Contract.WatchInterval,
		"wallet.detect_interval":  c.Wallet.DetectInterval,
		"keeper.refresh_interval": c.Keeper.RefreshInterval,
		"keeper.check_interval":   c.Keeper.CheckInterval,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Wallet.DetectTries < 0 {
		return fmt.Errorf("detect tries cannot be negative")
	}
	if c.Keeper.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.Keeper.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Poll.BlocksBeforeReveal <= 0 || c.Poll.BlocksBeforeEnd <= 0 {
		return fmt.Errorf("poll block counts must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.UI.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}

	validThemes := map[string]bool{
		"default": true,
		"dark":    true,
		"light":   true,
	}
	if !validThemes[c.UI.Theme] {
		return fmt.Errorf("invalid theme: %s", c.UI.Theme)
	}

	return nil
}

// ContractAddress returns the parsed contract address. Call after Validate.
func (c *Config) ContractAddress() tron.Address {
	a, _ := tron.ParseAddress(c.Contract.Address)
	return a
}

// PrivateKey reads the local signing key from the configured variable.
func (c *Config) PrivateKey() string {
	return os.Getenv(c.Wallet.PrivateKeyEnv)
}

// BootstrapConfig converts the wallet settings. Call after Validate.
func (c *Config) BootstrapConfig() wallet.BootstrapConfig {
	interval, _ := time.ParseDuration(c.Wallet.DetectInterval)
	foundation, _ := tron.ParseAddress(c.Wallet.FoundationAddress)
	return wallet.BootstrapConfig{
		Interval:          interval,
		MaxTries:          c.Wallet.DetectTries,
		FoundationAddress: foundation,
		NodeEndpoint:      c.Node.URL,
		FallbackEndpoint:  c.Wallet.FallbackURL,
	}
}

// CheckerConfig converts the keeper settings. Call after Validate.
func (c *Config) CheckerConfig() keeper.CheckerConfig {
	interval, _ := time.ParseDuration(c.Keeper.CheckInterval)
	return keeper.CheckerConfig{
		Interval:     interval,
		QueueSize:    c.Keeper.QueueSize,
		Workers:      c.Keeper.Workers,
		SkipFinished: !c.Keeper.CheckFinished,
	}
}

// RefreshInterval returns the refresher period. Call after Validate.
func (c *Config) RefreshInterval() time.Duration {
	d, _ := time.ParseDuration(c.Keeper.RefreshInterval)
	return d
}

// WatchInterval returns the event polling period. Call after Validate.
func (c *Config) WatchInterval() time.Duration {
	d, _ := time.ParseDuration(c.Contract.WatchInterval)
	return d
}

// NodeTimeout returns the HTTP timeout for node requests. Call after Validate.
func (c *Config) NodeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Node.Timeout)
	return d
}

// ReplayFrom returns the configured replay time, or zero.
func (c *Config) ReplayFrom() time.Time {
	t, _ := time.Parse(time.RFC3339, c.Contract.ReplayFrom)
	return t
}
