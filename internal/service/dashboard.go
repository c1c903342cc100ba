package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/models"
	"omnitip-relay/internal/repository"
	"omnitip-relay/pkg/logger"
)

const (
	MaxRecentLimit    = 200
	DefaultTrendLimit = 48
)

// LedgerReader 账本的只读能力，失败时返回零值
type LedgerReader interface {
	ReadScores(ctx context.Context) models.Scores
	ReadSentiment(ctx context.Context) models.Sentiment
	Sides() [2]string
}

type Scoreboard struct {
	SideA  string `json:"sideA"`
	SideB  string `json:"sideB"`
	ScoreA uint64 `json:"scoreA"`
	ScoreB uint64 `json:"scoreB"`
}

type SentimentView struct {
	SideA        string           `json:"sideA"`
	SideB        string           `json:"sideB"`
	Ledger       models.Sentiment `json:"ledger"`
	Local        models.Sentiment `json:"local"`
	SideAPercent float64          `json:"sideAPercent"`
}

type TrendPoint struct {
	TakenAt      time.Time `json:"takenAt"`
	SideA        int64     `json:"countSideA"`
	SideB        int64     `json:"countSideB"`
	Total        int64     `json:"total"`
	SideAPercent float64   `json:"sideAPercent"`
}

// DashboardService 看板读取接口，预测来自本地，比分来自账本
type DashboardService struct {
	ledger    LedgerReader
	tips      *repository.TipRepository
	events    *repository.EventRepository
	snapshots *repository.SnapshotRepository
}

func NewDashboardService(
	ledger LedgerReader,
	tips *repository.TipRepository,
	events *repository.EventRepository,
	snapshots *repository.SnapshotRepository,
) *DashboardService {
	return &DashboardService{
		ledger:    ledger,
		tips:      tips,
		events:    events,
		snapshots: snapshots,
	}
}

// RecentTips limit 超过上限时截断
func (s *DashboardService) RecentTips(ctx context.Context, limit int) ([]models.Tip, error) {
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return s.tips.Recent(ctx, limit)
}

func (s *DashboardService) Scores(ctx context.Context) Scoreboard {
	sides := s.ledger.Sides()
	scores := s.ledger.ReadScores(ctx)
	return Scoreboard{
		SideA:  sides[0],
		SideB:  sides[1],
		ScoreA: scores.ScoreA,
		ScoreB: scores.ScoreB,
	}
}

// Sentiment 合并账本与本地统计，本地统计失败时只记录日志
func (s *DashboardService) Sentiment(ctx context.Context) SentimentView {
	sides := s.ledger.Sides()
	view := SentimentView{
		SideA:  sides[0],
		SideB:  sides[1],
		Ledger: s.ledger.ReadSentiment(ctx),
	}

	local, err := s.tips.AggregateSentiment(ctx)
	if err != nil {
		logger.WithError(err).Warn("本地预测统计失败")
	}
	view.Local = local

	snapshot := models.SentimentSnapshot{
		SideA: int64(local.SideA),
		SideB: int64(local.SideB),
		Total: int64(local.Total),
	}
	view.SideAPercent = snapshot.SideAPercent()

	return view
}

// Trend 返回按时间升序的情绪快照
func (s *DashboardService) Trend(ctx context.Context, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = DefaultTrendLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	snaps, err := s.snapshots.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(snaps))
	for _, snap := range snaps {
		points = append(points, TrendPoint{
			TakenAt:      snap.TakenAt,
			SideA:        snap.SideA,
			SideB:        snap.SideB,
			Total:        snap.Total,
			SideAPercent: snap.SideAPercent(),
		})
	}
	return points, nil
}

func (s *DashboardService) LedgerEvents(ctx context.Context, kind models.LedgerEventKind, limit int) ([]models.LedgerEvent, error) {
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return s.events.GetRecent(ctx, kind, limit)
}

// CaptureSnapshot 汇总本地预测并追加一条情绪快照
func (s *DashboardService) CaptureSnapshot(ctx context.Context, at time.Time) (*models.SentimentSnapshot, error) {
	local, err := s.tips.AggregateSentiment(ctx)
	if err != nil {
		return nil, err
	}

	snap := &models.SentimentSnapshot{
		SideA:   int64(local.SideA),
		SideB:   int64(local.SideB),
		Total:   int64(local.Total),
		TakenAt: at,
	}
	if err := s.snapshots.Create(ctx, snap); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"side_a": snap.SideA,
		"side_b": snap.SideB,
		"total":  snap.Total,
	}).Debug("情绪快照已保存")

	return snap, nil
}

// PruneSnapshots 删除早于 before 的快照
func (s *DashboardService) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	return s.snapshots.PruneBefore(ctx, before)
}
