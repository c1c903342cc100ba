package blockchain

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/config"
	"omnitip-relay/internal/models"
	"omnitip-relay/pkg/errors"
	"omnitip-relay/pkg/logger"
)

// contractBinding 合约调用的最小接口，*bind.BoundContract 满足该接口
type contractBinding interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// chainBackend 提交交易与等待回执所需的节点能力
type chainBackend interface {
	NonceSource
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxRef 已被账本确认打包的交易
type TxRef struct {
	Hash        string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Oracle 预言机合约客户端
// 写操作阻塞直到交易被打包确认；读操作失败时返回零值
type Oracle struct {
	contract contractBinding
	backend  chainBackend
	sides    [2]string

	callTimeout    time.Duration
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// NewOracle 创建预言机客户端
// 未配置合约地址或 client 为空时返回未配置状态的客户端，写操作返回 LEDGER_UNAVAILABLE
func NewOracle(ledgerCfg *config.LedgerConfig, sides [2]string, client *Client) *Oracle {
	o := &Oracle{
		sides:          sides,
		callTimeout:    seconds(ledgerCfg.CallTimeout, 30),
		confirmTimeout: seconds(ledgerCfg.ConfirmTimeout, 120),
		pollInterval:   time.Duration(ledgerCfg.ReceiptPollInterval) * time.Millisecond,
	}
	if o.pollInterval <= 0 {
		o.pollInterval = time.Second
	}

	if ledgerCfg.Configured() && client != nil {
		eth := client.Eth()
		o.contract = bind.NewBoundContract(client.ContractAddress(), OracleABI, eth, eth, eth)
		o.backend = eth
	}
	return o
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// Configured 是否已接入已部署的合约
func (o *Oracle) Configured() bool {
	return o != nil && o.contract != nil
}

// Sides 返回双方名称，顺序与合约一致
func (o *Oracle) Sides() [2]string {
	return o.sides
}

// SubmitTip 以运营者身份提交一次预测
func (o *Oracle) SubmitTip(ctx context.Context, signer *Signer, predictsSideA bool) (*TxRef, error) {
	if err := o.writable(signer); err != nil {
		return nil, err
	}
	return o.transact(ctx, signer, methodTip, predictsSideA)
}

// ScoreGoal 为指定一方记录进球
// side 必须与两个配置名称之一完全一致，校验先于任何网络调用
func (o *Oracle) ScoreGoal(ctx context.Context, signer *Signer, side string) (*TxRef, error) {
	if !o.validSide(side) {
		return nil, errors.New(errors.ErrInvalidSide,
			fmt.Sprintf("invalid side %q, expected %s or %s", side, o.sides[0], o.sides[1]), nil)
	}
	if err := o.writable(signer); err != nil {
		return nil, err
	}
	return o.transact(ctx, signer, methodScoreGoal, side)
}

// ReadScores 读取双方进球数，未配置或调用失败时返回 {0, 0}
func (o *Oracle) ReadScores(ctx context.Context) models.Scores {
	if !o.Configured() {
		return models.Scores{}
	}

	a, err := o.callUint(ctx, methodSideAGoals)
	if err != nil {
		o.logReadFailure(methodSideAGoals, err)
		return models.Scores{}
	}
	b, err := o.callUint(ctx, methodSideBGoals)
	if err != nil {
		o.logReadFailure(methodSideBGoals, err)
		return models.Scores{}
	}

	return models.Scores{ScoreA: a, ScoreB: b}
}

// ReadSentiment 读取链上预测统计，未配置或调用失败时返回零值
func (o *Oracle) ReadSentiment(ctx context.Context) models.Sentiment {
	if !o.Configured() {
		return models.Sentiment{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	var out []interface{}
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodSentiment); err != nil {
		o.logReadFailure(methodSentiment, err)
		return models.Sentiment{}
	}
	if len(out) != 3 {
		o.logReadFailure(methodSentiment, fmt.Errorf("unexpected output length %d", len(out)))
		return models.Sentiment{}
	}

	values := make([]uint64, 3)
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok || n == nil {
			o.logReadFailure(methodSentiment, fmt.Errorf("unexpected output type %T", v))
			return models.Sentiment{}
		}
		values[i] = n.Uint64()
	}

	return models.Sentiment{SideA: values[0], SideB: values[1], Total: values[2]}
}

// validSide 只接受与配置名称完全一致的一方
func (o *Oracle) validSide(side string) bool {
	for _, s := range o.sides {
		if s != "" && side == s {
			return true
		}
	}
	return false
}

func (o *Oracle) writable(signer *Signer) error {
	if !o.Configured() {
		return errors.New(errors.ErrLedgerUnavailable, "ledger contract is not configured", nil)
	}
	if signer == nil {
		return errors.New(errors.ErrLedgerUnavailable, "operator key is not configured", nil)
	}
	return nil
}

func (o *Oracle) transact(ctx context.Context, signer *Signer, method string, params ...interface{}) (*TxRef, error) {
	sendCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	tx, err := signer.Send(sendCtx, o.backend, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return o.contract.Transact(opts, method, params...)
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrLedgerCallFailed) {
			return nil, err
		}
		return nil, errors.New(errors.ErrLedgerCallFailed, fmt.Sprintf("%s transaction failed", method), err)
	}

	logger.WithFields(logrus.Fields{
		"method":  method,
		"tx_hash": tx.Hash().Hex(),
		"nonce":   tx.Nonce(),
	}).Info("交易已广播，等待确认")

	return o.waitMined(ctx, tx.Hash())
}

// waitMined 轮询交易回执直到打包或超时
// 回执暂不存在或节点暂时出错时继续轮询
func (o *Oracle) waitMined(ctx context.Context, hash common.Hash) (*TxRef, error) {
	ctx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := o.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, errors.New(errors.ErrLedgerCallFailed,
					fmt.Sprintf("transaction %s reverted", hash.Hex()), nil)
			}
			ref := &TxRef{Hash: hash.Hex()}
			if receipt.BlockNumber != nil {
				ref.BlockNumber = receipt.BlockNumber.Uint64()
			}
			return ref, nil
		}
		if !stderrors.Is(err, ethereum.NotFound) {
			logger.WithFields(logrus.Fields{
				"tx_hash": hash.Hex(),
			}).WithError(err).Debug("查询交易回执失败，继续等待")
		}

		select {
		case <-ctx.Done():
			return nil, errors.New(errors.ErrLedgerCallFailed,
				fmt.Sprintf("timed out waiting for transaction %s", hash.Hex()), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (o *Oracle) callUint(ctx context.Context, method string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	var out []interface{}
	if err := o.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected output length %d", len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok || n == nil {
		return 0, fmt.Errorf("unexpected output type %T", out[0])
	}
	return n.Uint64(), nil
}

func (o *Oracle) logReadFailure(method string, err error) {
	logger.WithFields(logrus.Fields{
		"method": method,
	}).WithError(err).Warn("读取账本失败，返回默认值")
}
