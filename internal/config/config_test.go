package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("INFURA_PROJECT_ID", "")
	cfg, err := Load(writeConfig(t, "rpc:\n  http: http://127.0.0.1:8545\n"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), cfg.ChainID)
	assert.Equal(t, uint64(10000), cfg.Tx.DeadlineSeconds)
	assert.Equal(t, 1.0, cfg.Tx.FeeIncrementGwei)
	assert.Equal(t, 50.0, cfg.Tx.RewardPercentile)
	assert.Equal(t, 1.0, cfg.Tx.GasLimitMultiplier)
	assert.Equal(t, 120*time.Second, cfg.Tx.ConfirmTimeout.Duration)
	assert.Equal(t, 2*time.Second, cfg.Tx.PollInterval.Duration)
	assert.Equal(t, "0", cfg.Swap.MinAmountOut)
	assert.Equal(t, "PRIVATE_KEY", cfg.Account.PrivateKeyEnv)
	assert.Equal(t, "memory", cfg.Nonce.Lock)
	assert.Equal(t, "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", cfg.RouterAddress().Hex())
}

func TestDurationAcceptsStringsAndMillis(t *testing.T) {
	t.Setenv("RPC_URL", "")
	cfg, err := Load(writeConfig(t, `
rpc:
  http: http://127.0.0.1:8545
tx:
  confirm_timeout: 45s
  poll_interval: 250
`))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Tx.ConfirmTimeout.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Tx.PollInterval.Duration)
}

func TestInfuraProjectExpandsEndpoint(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("INFURA_PROJECT_ID", "abc123")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet.infura.io/v3/abc123", cfg.RPC.HTTP)
}

func TestRPCURLOverridesFile(t *testing.T) {
	t.Setenv("RPC_URL", "http://node:8545")
	t.Setenv("INFURA_PROJECT_ID", "abc123")
	cfg, err := Load(writeConfig(t, "rpc:\n  http: http://127.0.0.1:8545\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", cfg.RPC.HTTP)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing rpc":        "chain_id: 1\n",
		"negative increment": "rpc: {http: x}\ntx: {fee_increment_gwei: -1}\n",
		"bad percentile":     "rpc: {http: x}\ntx: {reward_percentile: 150}\n",
		"low multiplier":     "rpc: {http: x}\ntx: {gas_limit_multiplier: 0.5}\n",
		"redis without addr": "rpc: {http: x}\nnonce: {lock: redis}\n",
		"unknown lock":       "rpc: {http: x}\nnonce: {lock: etcd}\n",
		"bad router":         "rpc: {http: x}\nrouter: {address: nope}\n",
		"bad level":          "rpc: {http: x}\nlog: {level: loud}\n",
	}
	t.Setenv("RPC_URL", "")
	t.Setenv("INFURA_PROJECT_ID", "")
	t.Setenv("REDIS_ADDR", "")
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestPrivateKeyFromEnv(t *testing.T) {
	cfg := &Config{}
	cfg.Account.PrivateKeyEnv = "AMMSWAP_TEST_KEY"
	t.Setenv("AMMSWAP_TEST_KEY", "")
	_, err := cfg.PrivateKey()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMMSWAP_TEST_KEY")

	t.Setenv("AMMSWAP_TEST_KEY", " 0xabc \n")
	key, err := cfg.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, "0xabc", key)
}
