package models

import (
	"time"
)

type LedgerEventKind string

const (
	LedgerEventTip  LedgerEventKind = "tip"
	LedgerEventGoal LedgerEventKind = "goal"
)

// LedgerEvent 已确认的预言机链上日志镜像，只追加
type LedgerEvent struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind          LedgerEventKind `gorm:"size:8;not null;index" json:"kind"`
	TxHash        string          `gorm:"size:66;not null;uniqueIndex:uk_tx_log" json:"txHash"`
	LogIndex      uint            `gorm:"not null;uniqueIndex:uk_tx_log" json:"logIndex"`
	BlockNumber   int64           `gorm:"not null;index" json:"blockNumber"`
	Wallet        string          `gorm:"size:42" json:"wallet,omitempty"`
	PredictsSideA bool            `json:"predictsSideA"`
	Team          string          `gorm:"size:64" json:"team,omitempty"`
	NewScore      int64           `json:"newScore,omitempty"`
	Timestamp     time.Time       `gorm:"not null" json:"timestamp"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"-"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}
