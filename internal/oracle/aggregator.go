package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const aggregatorV3ABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

// ContractCaller is the read-only subset of an ethclient.Client.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// AggregatorClient reads an on-chain AggregatorV3 price feed.
type AggregatorClient struct {
	caller  ContractCaller
	address common.Address
	abi     abi.ABI
}

func NewAggregatorClient(caller ContractCaller, address common.Address) (*AggregatorClient, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABI))
	if err != nil {
		return nil, err
	}

	return &AggregatorClient{
		caller:  caller,
		address: address,
		abi:     parsed,
	}, nil
}

func (c *AggregatorClient) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, err
	}

	output, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("aggregator %s: %s: %w", c.address.Hex(), method, err)
	}

	return c.abi.Unpack(method, output)
}

func (c *AggregatorClient) Decimals(ctx context.Context) (uint8, error) {
	values, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}

	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("aggregator %s: unexpected decimals type %T", c.address.Hex(), values[0])
	}

	return decimals, nil
}

func (c *AggregatorClient) LatestRoundData(ctx context.Context) (RoundData, error) {
	values, err := c.call(ctx, "latestRoundData")
	if err != nil {
		return RoundData{}, err
	}

	if len(values) != 5 {
		return RoundData{}, fmt.Errorf("aggregator %s: unexpected latestRoundData arity %d", c.address.Hex(), len(values))
	}

	ints := make([]*big.Int, len(values))
	for i, value := range values {
		n, ok := value.(*big.Int)
		if !ok {
			return RoundData{}, fmt.Errorf("aggregator %s: unexpected latestRoundData field %d type %T", c.address.Hex(), i, value)
		}
		ints[i] = n
	}

	return RoundData{
		RoundID:         ints[0],
		Answer:          ints[1],
		StartedAt:       time.Unix(ints[2].Int64(), 0),
		UpdatedAt:       time.Unix(ints[3].Int64(), 0),
		AnsweredInRound: ints[4],
	}, nil
}
