package models

import (
	"time"
)

// ProcessedBlock 链监听游标，每个监听的合约一行
type ProcessedBlock struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Source      string    `gorm:"uniqueIndex;size:80;not null" json:"source"`
	BlockNumber int64     `gorm:"not null" json:"block_number"`
	ProcessedAt time.Time `gorm:"autoUpdateTime" json:"processed_at"`
}

func (ProcessedBlock) TableName() string {
	return "processed_blocks"
}
