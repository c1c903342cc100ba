package models

import (
	"time"
)

type SentimentSnapshot struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SideA   int64     `gorm:"not null" json:"sideA"`
	SideB   int64     `gorm:"not null" json:"sideB"`
	Total   int64     `gorm:"not null" json:"total"`
	TakenAt time.Time `gorm:"not null;index" json:"takenAt"`
}

func (SentimentSnapshot) TableName() string {
	return "sentiment_snapshots"
}

// SideAPercent A 方预测占比，尚无预测时为 50
func (s SentimentSnapshot) SideAPercent() float64 {
	if s.Total == 0 {
		return 50
	}
	return float64(s.SideA) * 100 / float64(s.Total)
}
