package repository

import (
	"context"

	"gorm.io/gorm"

	"omnitip-relay/internal/models"
	"omnitip-relay/pkg/errors"
)

// DefaultRecentLimit 未指定 limit 时返回的预测条数
const DefaultRecentLimit = 50

type TipRepository struct {
	db *gorm.DB
}

func NewTipRepository(db *gorm.DB) *TipRepository {
	return &TipRepository{db: db}
}

// Record 追加一条tip并返回数据库分配的自增ID
// ID由数据库在事务内分配，并发写入不会重复
func (r *TipRepository) Record(ctx context.Context, tip *models.Tip) (uint64, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(tip).Error
	})
	if err != nil {
		return 0, errors.New(errors.ErrStorageFault, "failed to record tip", err)
	}
	return tip.ID, nil
}

// Recent 按时间倒序返回最近的tip，时间相同时按ID倒序
func (r *TipRepository) Recent(ctx context.Context, limit int) ([]models.Tip, error) {
	if limit <= 0 {
		return []models.Tip{}, nil
	}

	tips := make([]models.Tip, 0, limit)
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&tips).Error
	if err != nil {
		return nil, errors.New(errors.ErrStorageFault, "failed to query recent tips", err)
	}
	return tips, nil
}

// AggregateSentiment 统计全部tip的预测分布，不做缓存
func (r *TipRepository) AggregateSentiment(ctx context.Context) (models.Sentiment, error) {
	var row struct {
		SideA int64
		SideB int64
	}

	err := r.db.WithContext(ctx).
		Model(&models.Tip{}).
		Select("COALESCE(SUM(CASE WHEN predicts_side_a THEN 1 ELSE 0 END), 0) AS side_a, " +
			"COALESCE(SUM(CASE WHEN predicts_side_a THEN 0 ELSE 1 END), 0) AS side_b").
		Scan(&row).Error
	if err != nil {
		return models.Sentiment{}, errors.New(errors.ErrStorageFault, "failed to aggregate sentiment", err)
	}

	a, b := uint64(row.SideA), uint64(row.SideB)
	return models.Sentiment{SideA: a, SideB: b, Total: a + b}, nil
}

func (r *TipRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Tip{}).
		Count(&count).Error
	if err != nil {
		return 0, errors.New(errors.ErrStorageFault, "failed to count tips", err)
	}
	return count, nil
}
