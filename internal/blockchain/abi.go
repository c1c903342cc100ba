package blockchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// oracleABIJSON TipOracle 合约中本服务用到的方法与事件
const oracleABIJSON = `[
  {"type":"function","name":"tip","stateMutability":"nonpayable",
   "inputs":[{"name":"predictsEnglandNext","type":"bool"}],"outputs":[]},
  {"type":"function","name":"adminScoreGoal","stateMutability":"nonpayable",
   "inputs":[{"name":"team","type":"string"}],"outputs":[]},
  {"type":"function","name":"getSentimentBias","stateMutability":"view","inputs":[],
   "outputs":[{"name":"engTips","type":"uint256"},{"name":"argTips","type":"uint256"},{"name":"total","type":"uint256"}]},
  {"type":"function","name":"engGoals","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"argGoals","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"NewTip","anonymous":false,"inputs":[
    {"name":"wallet","type":"address","indexed":true},
    {"name":"predictsEnglandNext","type":"bool","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"GoalScored","anonymous":false,"inputs":[
    {"name":"team","type":"string","indexed":false},
    {"name":"newScore","type":"uint256","indexed":false}]}
]`

const (
	methodTip        = "tip"
	methodScoreGoal  = "adminScoreGoal"
	methodSentiment  = "getSentimentBias"
	methodSideAGoals = "engGoals"
	methodSideBGoals = "argGoals"
	eventNewTip      = "NewTip"
	eventGoalScored  = "GoalScored"
)

// OracleABI 解析后的合约 ABI
var OracleABI = mustParseABI(oracleABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("invalid oracle abi: " + err.Error())
	}
	return parsed
}
