package blockchain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"omnitip-relay/internal/models"
)

// ParseOracleLog 将预言机日志解析为待落库的事件
// GoalScored 事件本身不带时间，Timestamp 由调用方按区块时间补齐
func ParseOracleLog(log types.Log) (*models.LedgerEvent, error) {
	if len(log.Topics) == 0 {
		return nil, ErrInvalidLogFormat
	}

	event := &models.LedgerEvent{
		TxHash:      log.TxHash.Hex(),
		LogIndex:    log.Index,
		BlockNumber: int64(log.BlockNumber),
	}

	switch log.Topics[0] {
	case OracleABI.Events[eventNewTip].ID:
		if len(log.Topics) < 2 {
			return nil, ErrInvalidLogFormat
		}
		values, err := OracleABI.Unpack(eventNewTip, log.Data)
		if err != nil || len(values) != 2 {
			return nil, ErrInvalidLogFormat
		}
		predictsSideA, ok := values[0].(bool)
		ts, ok2 := values[1].(*big.Int)
		if !ok || !ok2 {
			return nil, ErrInvalidLogFormat
		}

		event.Kind = models.LedgerEventTip
		event.Wallet = common.BytesToAddress(log.Topics[1].Bytes()).Hex()
		event.PredictsSideA = predictsSideA
		event.Timestamp = time.Unix(ts.Int64(), 0)

	case OracleABI.Events[eventGoalScored].ID:
		values, err := OracleABI.Unpack(eventGoalScored, log.Data)
		if err != nil || len(values) != 2 {
			return nil, ErrInvalidLogFormat
		}
		team, ok := values[0].(string)
		score, ok2 := values[1].(*big.Int)
		if !ok || !ok2 {
			return nil, ErrInvalidLogFormat
		}

		event.Kind = models.LedgerEventGoal
		event.Team = team
		event.NewScore = score.Int64()

	default:
		return nil, ErrUnknownEvent
	}

	return event, nil
}

var (
	ErrInvalidLogFormat = &InvalidLogFormatError{}
	ErrUnknownEvent     = &UnknownEventError{}
)

type InvalidLogFormatError struct{}

func (e *InvalidLogFormatError) Error() string {
	return "invalid log format: cannot decode oracle event"
}

type UnknownEventError struct{}

func (e *UnknownEventError) Error() string {
	return "unknown oracle event topic"
}
