package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/blockchain"
	"omnitip-relay/internal/models"
	"omnitip-relay/internal/sentiment"
	"omnitip-relay/internal/wallet"
	"omnitip-relay/pkg/errors"
	"omnitip-relay/pkg/logger"
)

// TipLedger 账本的提交能力，未配置时返回 LEDGER_UNAVAILABLE
type TipLedger interface {
	SubmitTip(ctx context.Context, signer *blockchain.Signer, predictsSideA bool) (*blockchain.TxRef, error)
}

// TipStore 本地预测记录
type TipStore interface {
	Record(ctx context.Context, tip *models.Tip) (uint64, error)
}

// Notifier 接收已落库的预测，用于实时推送
type Notifier interface {
	TipRecorded(tip models.Tip)
}

// Deduplicator 按消息ID认领投递，重复投递返回 false
// 落库失败时释放认领，使重投可以再次处理
type Deduplicator interface {
	Claim(ctx context.Context, messageID string) (bool, error)
	Release(ctx context.Context, messageID string) error
}

// InboundMessage 已完成转写的入站消息
type InboundMessage struct {
	MessageID        string
	SenderIdentifier string
	Text             string
	Source           string
}

// Ack 入站消息的处理结果
type Ack struct {
	TraceID       string `json:"traceId"`
	TipID         uint64 `json:"tipId,omitempty"`
	Identity      string `json:"phone"`
	WalletAddress string `json:"wallet"`
	PredictsSideA bool   `json:"predictsSideA"`
	TxHash        string `json:"txHash,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

type IngestorOption func(*Ingestor)

func WithNotifier(n Notifier) IngestorOption {
	return func(i *Ingestor) { i.notifier = n }
}

func WithDeduplicator(d Deduplicator) IngestorOption {
	return func(i *Ingestor) { i.dedup = d }
}

func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) { i.now = now }
}

// Ingestor 入站预测处理流水线
// 接收 → 分类 → 派生身份 → 尝试上链（尽力而为） → 本地落库 → 确认
type Ingestor struct {
	ledger     TipLedger
	signer     *blockchain.Signer
	store      TipStore
	classifier *sentiment.Classifier
	salt       string
	notifier   Notifier
	dedup      Deduplicator
	now        func() time.Time
}

func NewIngestor(
	ledger TipLedger,
	signer *blockchain.Signer,
	store TipStore,
	classifier *sentiment.Classifier,
	salt string,
	opts ...IngestorOption,
) *Ingestor {
	i := &Ingestor{
		ledger:     ledger,
		signer:     signer,
		store:      store,
		classifier: classifier,
		salt:       salt,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest 处理一条入站消息
// 账本失败只记录日志，不影响落库；落库失败作为处理失败返回
// 每条文本非空的消息恰好落库一次，最多尝试一次上链
func (i *Ingestor) Ingest(ctx context.Context, msg InboundMessage) (*Ack, error) {
	traceID := uuid.NewString()

	if strings.TrimSpace(msg.Text) == "" {
		return nil, errors.New(errors.ErrEmptyMessage, "message has no classifiable text", nil)
	}

	predictsSideA := i.classifier.Classify(msg.Text)
	identity := wallet.Derive(msg.SenderIdentifier, i.salt)

	ack := &Ack{
		TraceID:       traceID,
		Identity:      wallet.Mask(msg.SenderIdentifier),
		WalletAddress: identity.Hex(),
		PredictsSideA: predictsSideA,
	}

	log := logger.WithFields(logrus.Fields{
		"trace_id":        traceID,
		"identity":        ack.Identity,
		"wallet":          ack.WalletAddress,
		"predicts_side_a": predictsSideA,
		"source":          msg.Source,
	})

	claimed := false
	if i.dedup != nil && msg.MessageID != "" {
		var err error
		claimed, err = i.dedup.Claim(ctx, msg.MessageID)
		if err != nil {
			claimed = false
			log.WithError(err).Warn("消息去重不可用，继续处理")
		} else if !claimed {
			log.WithField("message_id", msg.MessageID).Info("重复投递，已忽略")
			ack.Duplicate = true
			return ack, nil
		}
	}

	// 请求取消不应中断已开始的上链与落库
	work := context.WithoutCancel(ctx)

	ref, err := i.ledger.SubmitTip(work, i.signer, predictsSideA)
	switch {
	case err == nil:
		ack.TxHash = ref.Hash
		log = log.WithField("tx_hash", ref.Hash)
		log.Info("预测已上链")
	case errors.HasCode(err, errors.ErrLedgerUnavailable):
		log.Debug("账本未配置，跳过上链")
	default:
		log.WithError(err).Warn("预测上链失败，仅本地记录")
	}

	tip := &models.Tip{
		Identity:      ack.Identity,
		RawText:       msg.Text,
		PredictsSideA: predictsSideA,
		WalletAddress: ack.WalletAddress,
		Timestamp:     i.now().UnixMilli(),
		TxHash:        ack.TxHash,
		Source:        msg.Source,
	}

	id, err := i.store.Record(work, tip)
	if err != nil {
		log.WithError(err).Error("预测落库失败")
		if claimed {
			if relErr := i.dedup.Release(work, msg.MessageID); relErr != nil {
				log.WithError(relErr).Warn("释放消息认领失败，重投将被视为重复")
			}
		}
		if errors.HasCode(err, errors.ErrStorageFault) {
			return nil, err
		}
		return nil, errors.New(errors.ErrStorageFault, "failed to record tip", err)
	}
	tip.ID = id
	ack.TipID = id

	log.WithField("tip_id", id).Info("预测已记录")

	if i.notifier != nil {
		i.notifier.TipRecorded(*tip)
	}

	return ack, nil
}
