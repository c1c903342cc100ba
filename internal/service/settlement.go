package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/blockchain"
	"omnitip-relay/pkg/logger"
)

// GoalLedger 账本的进球记录能力
type GoalLedger interface {
	ScoreGoal(ctx context.Context, signer *blockchain.Signer, side string) (*blockchain.TxRef, error)
}

// SettlementService 运营者手动结算进球
type SettlementService struct {
	ledger GoalLedger
	signer *blockchain.Signer
}

func NewSettlementService(ledger GoalLedger, signer *blockchain.Signer) *SettlementService {
	return &SettlementService{
		ledger: ledger,
		signer: signer,
	}
}

// TriggerGoal 为指定一方记录进球，账本错误原样返回给运营者
func (s *SettlementService) TriggerGoal(ctx context.Context, side string) (*blockchain.TxRef, error) {
	ref, err := s.ledger.ScoreGoal(ctx, s.signer, side)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"side": side,
		}).WithError(err).Warn("进球提交失败")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"side":    side,
		"tx_hash": ref.Hash,
		"block":   ref.BlockNumber,
	}).Info("进球已上链")

	return ref, nil
}
