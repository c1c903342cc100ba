package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/config"
	"omnitip-relay/pkg/errors"
	"omnitip-relay/pkg/logger"
)

type Client struct {
	ledgerCfg *config.LedgerConfig
	client    *ethclient.Client
}

// NewClient 创建账本 RPC 客户端
func NewClient(ledgerCfg *config.LedgerConfig) (*Client, error) {
	client, err := ethclient.Dial(ledgerCfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("连接RPC失败: %s", ledgerCfg.RPCURL), err)
	}

	return &Client{
		ledgerCfg: ledgerCfg,
		client:    client,
	}, nil
}

// Close 关闭区块链客户端连接
func (c *Client) Close() {
	c.client.Close()
}

// Eth 返回底层 ethclient，供合约绑定使用
func (c *Client) Eth() *ethclient.Client {
	return c.client
}

// ContractAddress 返回预言机合约地址
func (c *Client) ContractAddress() common.Address {
	return common.HexToAddress(c.ledgerCfg.ContractAddress)
}

// GetLatestBlockNumber 获取区块链最新区块号
func (c *Client) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrBlockFetch, "获取最新区块失败", err)
	}
	return header.Number.Int64(), nil
}

// GetConfirmBlockNumber 获取已确认的最新区块号
// 应用确认区块阈值后返回
func (c *Client) GetConfirmBlockNumber(ctx context.Context, confirmations int) (int64, error) {
	latest, err := c.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := latest - int64(confirmations)
	if confirmed < 0 {
		confirmed = 0
	}

	return confirmed, nil
}

// GetOracleLogs 获取指定区块范围内预言机合约的 NewTip / GoalScored 日志
// 注意：RPC节点通常限制每次请求的区块跨度
func (c *Client) GetOracleLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(startBlock),
		ToBlock:   big.NewInt(endBlock),
		Addresses: []common.Address{c.ContractAddress()},
		Topics: [][]common.Hash{{
			OracleABI.Events[eventNewTip].ID,
			OracleABI.Events[eventGoalScored].ID,
		}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrEventParse, "过滤预言机事件失败", err)
	}

	logger.WithFields(logrus.Fields{
		"chain_id":    c.ledgerCfg.ChainID,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
	}).Debug("获取预言机事件日志")

	return logs, nil
}

// GetBlockTimestamp 获取区块的时间戳
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error) {
	header, err := c.client.HeaderByNumber(ctx, big.NewInt(blockNumber))
	if err != nil {
		return time.Time{}, errors.New(errors.ErrBlockFetch,
			fmt.Sprintf("获取区块 %d 失败", blockNumber), err)
	}
	return time.Unix(int64(header.Time), 0), nil
}

// BalanceAt 查询账户最新余额（wei）
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errors.New(errors.ErrLedgerCallFailed, "查询余额失败", err)
	}
	return balance, nil
}

// SuggestGasPrice 获取节点建议的 gas 价格（wei）
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrLedgerCallFailed, "获取gas价格失败", err)
	}
	return price, nil
}

// HasCode 判断合约地址上是否已部署代码
func (c *Client) HasCode(ctx context.Context) (bool, error) {
	code, err := c.client.CodeAt(ctx, c.ContractAddress(), nil)
	if err != nil {
		return false, errors.New(errors.ErrLedgerCallFailed, "查询合约代码失败", err)
	}
	return len(code) > 0, nil
}
