package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/bluele/gcache"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultTimestampCacheSize bounds the block timestamp cache.
const DefaultTimestampCacheSize = 100000

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	tsCache gcache.Cache
	headers func(ctx context.Context, number *big.Int) (*types.Header, error)
}

// NewClient creates a new chain client from the RPC URL. A cacheSize of
// zero uses DefaultTimestampCacheSize.
func NewClient(ctx context.Context, rpcURL string, cacheSize int) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	ethClient := ethclient.NewClient(rpcClient)
	c := newClient(ethClient.HeaderByNumber, cacheSize)
	c.rpcClient = rpcClient
	c.ethClient = ethClient
	return c, nil
}

func newClient(headers func(context.Context, *big.Int) (*types.Header, error), cacheSize int) *Client {
	if cacheSize <= 0 {
		cacheSize = DefaultTimestampCacheSize
	}
	return &Client{
		tsCache: gcache.New(cacheSize).LRU().Build(),
		headers: headers,
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// BlockTimestamp returns the block timestamp, using an LRU cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	cached, err := c.tsCache.Get(number)
	if err == nil {
		return cached.(uint64), nil
	}
	if !errors.Is(err, gcache.KeyNotFoundError) {
		return 0, err
	}

	header, err := c.headers(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}
	if header == nil {
		return 0, fmt.Errorf("block %d: header not found", number)
	}
	if err := c.tsCache.Set(number, header.Time); err != nil {
		return 0, err
	}
	return header.Time, nil
}

// CachedTimestamps reports how many timestamps are cached.
func (c *Client) CachedTimestamps() int {
	return c.tsCache.Len(false)
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}
