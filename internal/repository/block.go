package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"omnitip-relay/internal/models"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// GetLastProcessed 返回监听源最后处理的区块号，没有记录时返回0
func (r *BlockRepository) GetLastProcessed(ctx context.Context, source string) (int64, error) {
	var block models.ProcessedBlock
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		First(&block).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return block.BlockNumber, err
}

// MarkProcessed 更新监听源的区块游标，游标只前进不后退
func (r *BlockRepository) MarkProcessed(ctx context.Context, source string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProcessedBlock
		err := tx.Where("source = ?", source).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.ProcessedBlock{
				Source:      source,
				BlockNumber: blockNumber,
			}).Error
		}
		if err != nil {
			return err
		}
		if blockNumber <= existing.BlockNumber {
			return nil
		}

		return tx.Model(&existing).Update("block_number", blockNumber).Error
	})
}
