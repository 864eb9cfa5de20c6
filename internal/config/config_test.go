package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	config, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "50", config.EntryPriceFiat.String())
	assert.Equal(t, time.Hour, config.OracleMaxAge)
	assert.Equal(t, 30*time.Second, config.PayoutMaxElapsed)
	assert.Equal(t, "persistent.db", config.DBPath)
	assert.Equal(t, ":8080", config.HTTPAddr)
	assert.Equal(t, "info", config.Log.Level)
	assert.True(t, config.Log.Console)

	assert.Equal(t, DefaultNetwork, config.NetworkName)
	assert.True(t, config.Network.Mock)
	assert.Equal(t, uint8(8), config.Network.Decimals)
	assert.Equal(t, "100000000000000000", config.Network.FeeValue().String())
	assert.Equal(t, DefaultKeyHash, config.Network.KeyHashValue().Hex())
}

func TestFromEnv_Overrides(t *testing.T) {
	config, err := FromEnv(envOf(map[string]string{
		"RAFFLE_ENTRY_PRICE_FIAT": "12.5",
		"RAFFLE_ORACLE_MAX_AGE":   "15m",
		"RAFFLE_DB_PATH":          "/var/lib/raffle/raffle.db",
		"RAFFLE_LOG_CONSOLE":      "false",
		"RAFFLE_OPERATOR_TOKEN":   "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "12.5", config.EntryPriceFiat.String())
	assert.Equal(t, 15*time.Minute, config.OracleMaxAge)
	assert.Equal(t, "/var/lib/raffle/raffle.db", config.DBPath)
	assert.False(t, config.Log.Console)
	assert.Equal(t, "secret", config.OperatorToken)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"non-numeric price": {"RAFFLE_ENTRY_PRICE_FIAT": "fifty"},
		"zero price":        {"RAFFLE_ENTRY_PRICE_FIAT": "0"},
		"bad max age":       {"RAFFLE_ORACLE_MAX_AGE": "an hour"},
		"bad console flag":  {"RAFFLE_LOG_CONSOLE": "sometimes"},
		"unknown network":   {"RAFFLE_NETWORK": "mainnet"},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(values))
			assert.Error(t, err)
		})
	}
}

const networksFile = `
[development]
mock = true
decimals = 8
initial_value = 200000000000
fee = 100000000000000000
keyhash = "0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311"
raffle_address = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
auto_fulfill = "500ms"

[sepolia]
eth_usd_price_feed = "0x694AA1769357215DE4FAC081bf1f309aDC325306"
rpc_url = "https://rpc.sepolia.org"
coordinator_url = "http://coordinator.internal:9000"
callback_url = "http://raffle.internal:8080/randomness/callback"
raffle_address = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
fee = 250000000000000000
keyhash = "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"
`

func writeNetworks(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "networks.toml")
	require.NoError(t, os.WriteFile(path, []byte(networksFile), 0o600))
	return path
}

func TestLoadNetworks(t *testing.T) {
	networks, err := LoadNetworks(writeNetworks(t))
	require.NoError(t, err)
	require.Len(t, networks, 2)

	development := networks["development"]
	assert.True(t, development.Mock)
	assert.Equal(t, 500*time.Millisecond, development.AutoFulfill)
	assert.NoError(t, development.Validate())

	sepolia := networks["sepolia"]
	assert.False(t, sepolia.Mock)
	assert.Equal(t, "0x694AA1769357215DE4FAC081bf1f309aDC325306", sepolia.PriceFeedAddress().Hex())
	assert.Equal(t, "250000000000000000", sepolia.FeeValue().String())
	assert.NoError(t, sepolia.Validate())
}

func TestFromEnv_LiveNetworkNeedsCustodyKey(t *testing.T) {
	path := writeNetworks(t)

	_, err := FromEnv(envOf(map[string]string{
		"RAFFLE_NETWORK_FILE": path,
		"RAFFLE_NETWORK":      "sepolia",
	}))
	require.Error(t, err)

	config, err := FromEnv(envOf(map[string]string{
		"RAFFLE_NETWORK_FILE": path,
		"RAFFLE_NETWORK":      "sepolia",
		"RAFFLE_CUSTODY_KEY":  "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	}))
	require.NoError(t, err)
	assert.Equal(t, "sepolia", config.NetworkName)
	assert.Equal(t, "http://coordinator.internal:9000", config.Network.CoordinatorURL)
}

func TestNetwork_Validate(t *testing.T) {
	valid := DefaultNetworks()[DefaultNetwork]
	require.NoError(t, valid.Validate())

	badKeyHash := valid
	badKeyHash.KeyHash = "0x1234"
	assert.Error(t, badKeyHash.Validate())

	badAddress := valid
	badAddress.RaffleAddress = "raffle"
	assert.Error(t, badAddress.Validate())

	live := valid
	live.Mock = false
	assert.Error(t, live.Validate())
}
