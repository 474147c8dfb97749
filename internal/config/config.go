package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const infuraMainnet = "https://mainnet.infura.io/v3/"

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" {
		var v int64
		if err := value.Decode(&v); err != nil {
			return err
		}
		d.Duration = time.Duration(v) * time.Millisecond
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

type Config struct {
	ChainID uint64 `yaml:"chain_id"`

	RPC struct {
		HTTP           string   `yaml:"http"`
		RequestTimeout Duration `yaml:"request_timeout"`
		RetryMax       int      `yaml:"retry_max"`
		RetryBackoff   Duration `yaml:"retry_backoff"`
	} `yaml:"rpc"`

	Router struct {
		Address       string `yaml:"address"`
		ABIPath       string `yaml:"abi_path"`
		WrappedNative string `yaml:"wrapped_native"`
	} `yaml:"router"`

	Tx struct {
		DeadlineSeconds    uint64   `yaml:"deadline_seconds"`
		FeeIncrementGwei   float64  `yaml:"fee_increment_gwei"`
		RewardPercentile   float64  `yaml:"reward_percentile"`
		GasLimitMultiplier float64  `yaml:"gas_limit_multiplier"`
		ConfirmTimeout     Duration `yaml:"confirm_timeout"`
		PollInterval       Duration `yaml:"poll_interval"`
	} `yaml:"tx"`

	Swap struct {
		MinAmountOut string `yaml:"min_amount_out"`
	} `yaml:"swap"`

	Account struct {
		PrivateKeyEnv string `yaml:"private_key_env"`
		KeystorePath  string `yaml:"keystore_path"`
		PassphraseEnv string `yaml:"passphrase_env"`
	} `yaml:"account"`

	Nonce struct {
		Lock string `yaml:"lock"`
	} `yaml:"nonce"`

	Redis struct {
		Addr     string   `yaml:"addr"`
		Password string   `yaml:"password"`
		DB       int      `yaml:"db"`
		LockTTL  Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`

	API struct {
		Listen    string `yaml:"listen"`
		AuthToken string `yaml:"auth_token"`
	} `yaml:"api"`

	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads path (optional) and applies environment overrides. A .env file
// in the working directory is loaded first without overriding variables
// that are already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("RPC_URL"); v != "" {
		c.RPC.HTTP = v
	}
	if c.RPC.HTTP == "" {
		if id := strings.TrimSpace(getenv("INFURA_PROJECT_ID")); id != "" {
			c.RPC.HTTP = infuraMainnet + id
		}
	}
	if v := getenv("AMMSWAP_API_TOKEN"); v != "" {
		c.API.AuthToken = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

func (c *Config) applyDefaults() {
	if c.ChainID == 0 {
		c.ChainID = 1
	}
	if c.RPC.RequestTimeout.Duration == 0 {
		c.RPC.RequestTimeout = Duration{Duration: 15 * time.Second}
	}
	if c.RPC.RetryMax == 0 {
		c.RPC.RetryMax = 3
	}
	if c.RPC.RetryBackoff.Duration == 0 {
		c.RPC.RetryBackoff = Duration{Duration: 500 * time.Millisecond}
	}
	if c.Router.Address == "" {
		c.Router.Address = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
	}
	if c.Router.WrappedNative == "" {
		c.Router.WrappedNative = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	}
	if c.Tx.DeadlineSeconds == 0 {
		c.Tx.DeadlineSeconds = 10000
	}
	if c.Tx.FeeIncrementGwei == 0 {
		c.Tx.FeeIncrementGwei = 1
	}
	if c.Tx.RewardPercentile == 0 {
		c.Tx.RewardPercentile = 50
	}
	if c.Tx.GasLimitMultiplier == 0 {
		c.Tx.GasLimitMultiplier = 1.0
	}
	if c.Tx.ConfirmTimeout.Duration == 0 {
		c.Tx.ConfirmTimeout = Duration{Duration: 120 * time.Second}
	}
	if c.Tx.PollInterval.Duration == 0 {
		c.Tx.PollInterval = Duration{Duration: 2 * time.Second}
	}
	if c.Swap.MinAmountOut == "" {
		c.Swap.MinAmountOut = "0"
	}
	if c.Account.PrivateKeyEnv == "" {
		c.Account.PrivateKeyEnv = "PRIVATE_KEY"
	}
	if c.Account.PassphraseEnv == "" {
		c.Account.PassphraseEnv = "AMMSWAP_KEYSTORE_PASSPHRASE"
	}
	if c.Nonce.Lock == "" {
		c.Nonce.Lock = "memory"
	}
	if c.Redis.LockTTL.Duration == 0 {
		c.Redis.LockTTL = Duration{Duration: 3 * time.Minute}
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/swaps.jsonl"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.RPC.HTTP == "" {
		return fmt.Errorf("rpc.http is required (or set RPC_URL / INFURA_PROJECT_ID)")
	}
	if !common.IsHexAddress(c.Router.Address) {
		return fmt.Errorf("router.address %q is not an address", c.Router.Address)
	}
	if !common.IsHexAddress(c.Router.WrappedNative) {
		return fmt.Errorf("router.wrapped_native %q is not an address", c.Router.WrappedNative)
	}
	if c.Tx.FeeIncrementGwei <= 0 {
		return fmt.Errorf("tx.fee_increment_gwei must be > 0")
	}
	if c.Tx.RewardPercentile <= 0 || c.Tx.RewardPercentile > 100 {
		return fmt.Errorf("tx.reward_percentile must be in (0, 100]")
	}
	if c.Tx.GasLimitMultiplier < 1 {
		return fmt.Errorf("tx.gas_limit_multiplier must be >= 1")
	}
	if c.RPC.RetryMax < 0 {
		return fmt.Errorf("rpc.retry_max must be >= 0")
	}
	switch c.Nonce.Lock {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when nonce.lock is redis")
		}
	default:
		return fmt.Errorf("nonce.lock must be memory or redis, got %q", c.Nonce.Lock)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) RouterAddress() common.Address {
	return common.HexToAddress(c.Router.Address)
}

func (c *Config) WrappedNative() common.Address {
	return common.HexToAddress(c.Router.WrappedNative)
}

// PrivateKey returns the hex key from the configured environment variable.
func (c *Config) PrivateKey() (string, error) {
	v := strings.TrimSpace(os.Getenv(c.Account.PrivateKeyEnv))
	if v == "" {
		return "", fmt.Errorf("%s is not set", c.Account.PrivateKeyEnv)
	}
	return v, nil
}

// KeystorePassphrase returns the passphrase for account.keystore_path.
func (c *Config) KeystorePassphrase() (string, error) {
	v := os.Getenv(c.Account.PassphraseEnv)
	if v == "" {
		return "", fmt.Errorf("%s is not set", c.Account.PassphraseEnv)
	}
	return v, nil
}

func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("log.level must be debug, info, warn or error")
	}
	return lvl, nil
}
