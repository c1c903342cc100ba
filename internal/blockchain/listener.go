package blockchain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/config"
	"omnitip-relay/internal/models"
	"omnitip-relay/pkg/logger"
)

// logSource 监听器所需的链上读取能力，*Client 满足该接口
type logSource interface {
	GetConfirmBlockNumber(ctx context.Context, confirmations int) (int64, error)
	GetOracleLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error)
	GetBlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error)
}

type blockCursor interface {
	GetLastProcessed(ctx context.Context, source string) (int64, error)
	MarkProcessed(ctx context.Context, source string, blockNumber int64) error
}

type eventStore interface {
	Create(ctx context.Context, event *models.LedgerEvent) (bool, error)
}

// EventListener 将预言机事件镜像到本地，仅追加，用于审计
// 比分与统计始终从账本读取，不依赖镜像数据
type EventListener struct {
	cfg          *config.ListenerConfig
	source       string
	client       logSource
	blockRepo    blockCursor
	eventRepo    eventStore
	stopChan     chan struct{}
	isProcessing int32
}

// NewEventListener source 为游标键，一般使用合约地址
func NewEventListener(cfg *config.ListenerConfig, source string, client logSource,
	blockRepo blockCursor, eventRepo eventStore) *EventListener {
	return &EventListener{
		cfg:       cfg,
		source:    source,
		client:    client,
		blockRepo: blockRepo,
		eventRepo: eventRepo,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动事件监听器，阻塞直到上下文取消或 Stop
func (l *EventListener) Start(ctx context.Context) {
	interval := time.Duration(l.cfg.PullInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProcessedBlock, err := l.blockRepo.GetLastProcessed(ctx, l.source)
	if err != nil {
		logger.Error("读取区块游标失败:", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("事件监听器已停止：上下文已取消")
			return
		case <-l.stopChan:
			logger.Info("事件监听器已停止：收到停止信号")
			return
		case <-ticker.C:
			// 检查是否正在处理
			if !atomic.CompareAndSwapInt32(&l.isProcessing, 0, 1) {
				logger.WithFields(logrus.Fields{
					"source": l.source,
				}).Warn("上一次处理尚未完成，跳过本次触发")
				continue
			}

			block, err := l.ProcessNewBlocks(ctx, lastProcessedBlock)
			if err != nil {
				logger.Error("处理区块失败:", err)
			} else if block > lastProcessedBlock {
				lastProcessedBlock = block
			}

			atomic.StoreInt32(&l.isProcessing, 0)
		}
	}
}

// Stop 停止事件监听器
func (l *EventListener) Stop() {
	close(l.stopChan)
}

// IsProcessing 返回是否正在处理
func (l *EventListener) IsProcessing() bool {
	return atomic.LoadInt32(&l.isProcessing) == 1
}

// ProcessNewBlocks 拉取 lastBlock 之后一批已确认区块的事件并落库
// 全部写入成功后才推进游标，返回新的游标位置
func (l *EventListener) ProcessNewBlocks(ctx context.Context, lastBlock int64) (int64, error) {
	confirmedBlock, err := l.client.GetConfirmBlockNumber(ctx, l.cfg.ConfirmationBlocks)
	if err != nil {
		return lastBlock, err
	}

	startBlock := lastBlock + 1
	if lastBlock == 0 && l.cfg.StartBlock > 0 {
		startBlock = l.cfg.StartBlock
	}
	if confirmedBlock < startBlock {
		return lastBlock, nil
	}

	batchSize := int64(l.cfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}

	maxBatchSize := int64(5000)
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	endBlock := confirmedBlock
	if endBlock-startBlock >= batchSize {
		endBlock = startBlock + batchSize - 1
	}

	logger.WithFields(logrus.Fields{
		"source":      l.source,
		"start_block": startBlock,
		"end_block":   endBlock,
		"batch_size":  batchSize,
	}).Debug("处理新区块")

	logs, err := l.client.GetOracleLogs(ctx, startBlock, endBlock)
	if err != nil {
		return lastBlock, err
	}

	blockTimes := make(map[uint64]time.Time)
	inserted := 0
	for _, log := range logs {
		if log.Removed {
			continue
		}

		event, err := ParseOracleLog(log)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"tx_hash":   log.TxHash.Hex(),
				"log_index": log.Index,
			}).WithError(err).Warn("解析日志失败，跳过")
			continue
		}

		if event.Timestamp.IsZero() {
			ts, ok := blockTimes[log.BlockNumber]
			if !ok {
				ts, err = l.client.GetBlockTimestamp(ctx, int64(log.BlockNumber))
				if err != nil {
					return lastBlock, err
				}
				blockTimes[log.BlockNumber] = ts
			}
			event.Timestamp = ts
		}

		created, err := l.eventRepo.Create(ctx, event)
		if err != nil {
			return lastBlock, err
		}
		if created {
			inserted++
		}
	}

	if err := l.blockRepo.MarkProcessed(ctx, l.source, endBlock); err != nil {
		logger.Error("标记区块已处理失败:", err)
		return lastBlock, err
	}

	if inserted > 0 {
		logger.WithFields(logrus.Fields{
			"source":    l.source,
			"end_block": endBlock,
			"events":    inserted,
		}).Info("已镜像预言机事件")
	}

	return endBlock, nil
}
