package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"time"

	"raffle/internal/logger"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DefaultNetwork = "development"
	DefaultKeyHash = "0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311"

	// DefaultRaffleAddress is the consumer and custody account of the local network.
	DefaultRaffleAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

// Network describes the price feed and randomness coordinator of one
// deployment target.
type Network struct {
	PriceFeed      string        `toml:"eth_usd_price_feed"`
	RPCURL         string        `toml:"rpc_url"`
	CoordinatorURL string        `toml:"coordinator_url"`
	CallbackURL    string        `toml:"callback_url"`
	RaffleAddress  string        `toml:"raffle_address"`
	Fee            int64         `toml:"fee"`
	KeyHash        string        `toml:"keyhash"`
	Mock           bool          `toml:"mock"`
	Decimals       uint8         `toml:"decimals"`
	InitialValue   int64         `toml:"initial_value"`
	AutoFulfill    time.Duration `toml:"auto_fulfill"`
}

type Config struct {
	EntryPriceFiat   decimal.Decimal
	OracleMaxAge     time.Duration
	PayoutMaxElapsed time.Duration
	DBPath           string
	HTTPAddr         string
	OperatorToken    string
	CallbackToken    string
	CustodyKey       string
	Log              logger.Configuration

	NetworkName string
	Network     Network
}

// DefaultNetworks is used when no network file is configured.
func DefaultNetworks() map[string]Network {
	return map[string]Network{
		DefaultNetwork: {
			RaffleAddress: DefaultRaffleAddress,
			Fee:           100_000_000_000_000_000,
			KeyHash:       DefaultKeyHash,
			Mock:          true,
			Decimals:      8,
			InitialValue:  200_000_000_000,
			AutoFulfill:   2 * time.Second,
		},
	}
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key string, fallback string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return fallback
	}

	price, err := decimal.NewFromString(env("RAFFLE_ENTRY_PRICE_FIAT", "50"))
	if err != nil {
		return nil, fmt.Errorf("config: RAFFLE_ENTRY_PRICE_FIAT: %w", err)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("config: RAFFLE_ENTRY_PRICE_FIAT must be positive, got %s", price)
	}

	maxAge, err := time.ParseDuration(env("RAFFLE_ORACLE_MAX_AGE", "1h"))
	if err != nil {
		return nil, fmt.Errorf("config: RAFFLE_ORACLE_MAX_AGE: %w", err)
	}

	payoutMaxElapsed, err := time.ParseDuration(env("RAFFLE_PAYOUT_MAX_ELAPSED", "30s"))
	if err != nil {
		return nil, fmt.Errorf("config: RAFFLE_PAYOUT_MAX_ELAPSED: %w", err)
	}

	console, err := strconv.ParseBool(env("RAFFLE_LOG_CONSOLE", "true"))
	if err != nil {
		return nil, fmt.Errorf("config: RAFFLE_LOG_CONSOLE: %w", err)
	}

	networks := DefaultNetworks()
	if path := getenv("RAFFLE_NETWORK_FILE"); path != "" {
		networks, err = LoadNetworks(path)
		if err != nil {
			return nil, err
		}
	}

	name := env("RAFFLE_NETWORK", DefaultNetwork)
	network, ok := networks[name]
	if !ok {
		return nil, fmt.Errorf("config: network %q is not configured", name)
	}

	if err := network.Validate(); err != nil {
		return nil, fmt.Errorf("config: network %q: %w", name, err)
	}

	config := &Config{
		EntryPriceFiat:   price,
		OracleMaxAge:     maxAge,
		PayoutMaxElapsed: payoutMaxElapsed,
		DBPath:           env("RAFFLE_DB_PATH", "persistent.db"),
		HTTPAddr:         env("RAFFLE_HTTP_ADDR", ":8080"),
		OperatorToken:    getenv("RAFFLE_OPERATOR_TOKEN"),
		CallbackToken:    getenv("RAFFLE_CALLBACK_TOKEN"),
		CustodyKey:       getenv("RAFFLE_CUSTODY_KEY"),
		Log: logger.Configuration{
			LogFile:   getenv("RAFFLE_LOG_FILE"),
			ErrorFile: getenv("RAFFLE_ERROR_LOG_FILE"),
			Level:     env("RAFFLE_LOG_LEVEL", "info"),
			Console:   console,
		},
		NetworkName: name,
		Network:     network,
	}

	if !network.Mock && config.CustodyKey == "" {
		return nil, fmt.Errorf("config: network %q needs RAFFLE_CUSTODY_KEY", name)
	}

	return config, nil
}

// LoadNetworks decodes a TOML file with one table per network.
func LoadNetworks(path string) (map[string]Network, error) {
	var networks map[string]Network
	if _, err := toml.DecodeFile(path, &networks); err != nil {
		return nil, fmt.Errorf("config: network file %s: %w", path, err)
	}
	return networks, nil
}

func (n Network) Validate() error {
	if !common.IsHexAddress(n.RaffleAddress) {
		return fmt.Errorf("invalid raffle_address %q", n.RaffleAddress)
	}

	if n.Fee < 0 {
		return fmt.Errorf("negative fee %d", n.Fee)
	}

	key, err := hexutil.Decode(n.KeyHash)
	if err != nil || len(key) != common.HashLength {
		return fmt.Errorf("invalid keyhash %q", n.KeyHash)
	}

	if n.Mock {
		if n.InitialValue <= 0 {
			return fmt.Errorf("mock initial_value must be positive, got %d", n.InitialValue)
		}
		return nil
	}

	if !common.IsHexAddress(n.PriceFeed) {
		return fmt.Errorf("invalid eth_usd_price_feed %q", n.PriceFeed)
	}
	if n.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if n.CoordinatorURL == "" {
		return errors.New("coordinator_url is required")
	}
	return nil
}

func (n Network) Raffle() common.Address {
	return common.HexToAddress(n.RaffleAddress)
}

func (n Network) KeyHashValue() common.Hash {
	return common.HexToHash(n.KeyHash)
}

func (n Network) FeeValue() *big.Int {
	return big.NewInt(n.Fee)
}

func (n Network) PriceFeedAddress() common.Address {
	return common.HexToAddress(n.PriceFeed)
}
