package models

// Scores 账本上双方的进球数
type Scores struct {
	ScoreA uint64 `json:"scoreA"`
	ScoreB uint64 `json:"scoreB"`
}

// Sentiment 按预测方统计的预测数
// 本地聚合时 Total = SideA + SideB，账本读取时使用合约自身的总数
type Sentiment struct {
	SideA uint64 `json:"countSideA"`
	SideB uint64 `json:"countSideB"`
	Total uint64 `json:"total"`
}
