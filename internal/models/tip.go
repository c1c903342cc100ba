package models

import (
	"time"
)

type Tip struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Identity      string    `gorm:"size:16;not null" json:"phone"`
	RawText       string    `gorm:"type:text;not null" json:"text"`
	PredictsSideA bool      `gorm:"not null;index" json:"predictsSideA"`
	WalletAddress string    `gorm:"size:42;not null;index" json:"wallet"`
	Timestamp     int64     `gorm:"not null;index:idx_tips_recent" json:"timestamp"`
	TxHash        string    `gorm:"size:66" json:"txHash,omitempty"`
	Source        string    `gorm:"size:16" json:"source,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"-"`
}

func (Tip) TableName() string {
	return "tips"
}
