package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/config"
	"omnitip-relay/internal/models"
	"omnitip-relay/pkg/logger"
)

// SnapshotTaker 生成与清理情绪快照，*service.DashboardService 满足该接口
type SnapshotTaker interface {
	CaptureSnapshot(ctx context.Context, at time.Time) (*models.SentimentSnapshot, error)
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}

type SnapshotScheduler struct {
	cron      *cron.Cron
	taker     SnapshotTaker
	cronExpr  string
	retention time.Duration
	now       func() time.Time
}

func NewSnapshotScheduler(taker SnapshotTaker, cfg *config.SnapshotConfig) *SnapshotScheduler {
	return &SnapshotScheduler{
		cron:      cron.New(cron.WithSeconds()),
		taker:     taker,
		cronExpr:  cfg.Cron,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

func (s *SnapshotScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.RunOnce)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.WithFields(logrus.Fields{
		"cron": s.cronExpr,
	}).Info("Sentiment snapshot scheduler started")
	return nil
}

func (s *SnapshotScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Sentiment snapshot scheduler stopped")
}

// RunOnce 保存一次快照并清理过期快照，retention 为0时不清理
func (s *SnapshotScheduler) RunOnce() {
	ctx := context.Background()
	now := s.now()

	snap, err := s.taker.CaptureSnapshot(ctx, now)
	if err != nil {
		logger.Error("Failed to capture sentiment snapshot:", err)
		return
	}

	if s.retention <= 0 {
		return
	}

	removed, err := s.taker.PruneSnapshots(ctx, now.Add(-s.retention))
	if err != nil {
		logger.Error("Failed to prune sentiment snapshots:", err)
		return
	}

	if removed > 0 {
		logger.WithFields(logrus.Fields{
			"removed": removed,
			"total":   snap.Total,
		}).Info("Pruned expired sentiment snapshots")
	}
}
