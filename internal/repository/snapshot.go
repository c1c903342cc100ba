package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"omnitip-relay/internal/models"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Create(ctx context.Context, snap *models.SentimentSnapshot) error {
	return r.db.WithContext(ctx).Create(snap).Error
}

// Recent 返回最近的快照，按时间正序排列便于绘制趋势
func (r *SnapshotRepository) Recent(ctx context.Context, limit int) ([]models.SentimentSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	var snaps []models.SentimentSnapshot
	err := r.db.WithContext(ctx).
		Order("taken_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}

// PruneBefore 删除早于指定时间的快照
func (r *SnapshotRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("taken_at < ?", cutoff).
		Delete(&models.SentimentSnapshot{})
	return result.RowsAffected, result.Error
}
