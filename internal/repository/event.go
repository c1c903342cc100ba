package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"omnitip-relay/internal/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create 写入链上事件，(tx_hash, log_index) 已存在时忽略
// 返回是否实际插入了新记录
func (r *EventRepository) Create(ctx context.Context, event *models.LedgerEvent) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *EventRepository) ExistsByTxLog(ctx context.Context, txHash string, logIndex uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Where("tx_hash = ? AND log_index = ?", txHash, logIndex).
		Count(&count).Error
	return count > 0, err
}

func (r *EventRepository) GetRecent(ctx context.Context, kind models.LedgerEventKind, limit int) ([]models.LedgerEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	var events []models.LedgerEvent
	query := r.db.WithContext(ctx).
		Order("block_number DESC").
		Order("log_index DESC").
		Limit(limit)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	err := query.Find(&events).Error
	return events, err
}

func (r *EventRepository) CountByKind(ctx context.Context, kind models.LedgerEventKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Where("kind = ?", kind).
		Count(&count).Error
	return count, err
}
