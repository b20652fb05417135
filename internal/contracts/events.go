package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event 解码后的合约日志
type Event interface {
	EventName() string
}

// Reveal WinnerSelected 里的结构体，字段顺序与 ABI tuple 一致
type Reveal struct {
	Owner        common.Address
	Overlay      [32]byte
	Stake        *big.Int
	StakeDensity *big.Int
	Hash         [32]byte
	Depth        uint8
}

type WinnerSelected struct {
	Winner Reveal
}

type TruthSelected struct {
	Hash  common.Hash
	Depth uint8
}

type CountCommits struct {
	Count *big.Int
}

type CountReveals struct {
	Count *big.Int
}

type StakeUpdated struct {
	Overlay          common.Hash
	Amount           *big.Int
	Owner            common.Address
	LastUpdatedBlock *big.Int
}

type StakeSlashed struct {
	Overlay common.Hash
	Amount  *big.Int
}

// StakeFrozen Time 为冻结的区块数
type StakeFrozen struct {
	Overlay common.Hash
	Time    *big.Int
}

type Transfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

type Approval struct {
	Owner   common.Address
	Spender common.Address
	Value   *big.Int
}

func (WinnerSelected) EventName() string { return "WinnerSelected" }
func (TruthSelected) EventName() string  { return "TruthSelected" }
func (CountCommits) EventName() string   { return "CountCommits" }
func (CountReveals) EventName() string   { return "CountReveals" }
func (StakeUpdated) EventName() string   { return "StakeUpdated" }
func (StakeSlashed) EventName() string   { return "StakeSlashed" }
func (StakeFrozen) EventName() string    { return "StakeFrozen" }
func (Transfer) EventName() string       { return "Transfer" }
func (Approval) EventName() string       { return "Approval" }

// DecodeLog 按 topic0 识别日志，未知或格式不对返回 false
// 只看 topic，不校验发出日志的合约地址
func DecodeLog(log *types.Log) (Event, bool) {
	if log == nil || len(log.Topics) == 0 {
		return nil, false
	}

	switch log.Topics[0] {
	case TopicWinnerSelected:
		args, ok := unpack(Redistribution, "WinnerSelected", log.Data)
		if !ok {
			return nil, false
		}
		winner := *abi.ConvertType(args[0], new(Reveal)).(*Reveal)
		return WinnerSelected{Winner: winner}, true

	case TopicTruthSelected:
		args, ok := unpack(Redistribution, "TruthSelected", log.Data)
		if !ok {
			return nil, false
		}
		return TruthSelected{Hash: common.Hash(args[0].([32]byte)), Depth: args[1].(uint8)}, true

	case TopicCountCommits:
		args, ok := unpack(Redistribution, "CountCommits", log.Data)
		if !ok {
			return nil, false
		}
		return CountCommits{Count: args[0].(*big.Int)}, true

	case TopicCountReveals:
		args, ok := unpack(Redistribution, "CountReveals", log.Data)
		if !ok {
			return nil, false
		}
		return CountReveals{Count: args[0].(*big.Int)}, true

	case TopicStakeUpdated:
		if len(log.Topics) < 2 {
			return nil, false
		}
		args, ok := unpack(StakeRegistry, "StakeUpdated", log.Data)
		if !ok {
			return nil, false
		}
		return StakeUpdated{
			Overlay:          log.Topics[1],
			Amount:           args[0].(*big.Int),
			Owner:            args[1].(common.Address),
			LastUpdatedBlock: args[2].(*big.Int),
		}, true

	case TopicStakeSlashed:
		args, ok := unpack(StakeRegistry, "StakeSlashed", log.Data)
		if !ok {
			return nil, false
		}
		return StakeSlashed{Overlay: common.Hash(args[0].([32]byte)), Amount: args[1].(*big.Int)}, true

	case TopicStakeFrozen:
		args, ok := unpack(StakeRegistry, "StakeFrozen", log.Data)
		if !ok {
			return nil, false
		}
		return StakeFrozen{Overlay: common.Hash(args[0].([32]byte)), Time: args[1].(*big.Int)}, true

	case TopicTransfer:
		if len(log.Topics) < 3 {
			return nil, false
		}
		args, ok := unpack(Token, "Transfer", log.Data)
		if !ok {
			return nil, false
		}
		return Transfer{
			From:  common.BytesToAddress(log.Topics[1].Bytes()),
			To:    common.BytesToAddress(log.Topics[2].Bytes()),
			Value: args[0].(*big.Int),
		}, true

	case TopicApproval:
		if len(log.Topics) < 3 {
			return nil, false
		}
		args, ok := unpack(Token, "Approval", log.Data)
		if !ok {
			return nil, false
		}
		return Approval{
			Owner:   common.BytesToAddress(log.Topics[1].Bytes()),
			Spender: common.BytesToAddress(log.Topics[2].Bytes()),
			Value:   args[0].(*big.Int),
		}, true
	}
	return nil, false
}

// unpack 只解码非 indexed 参数
func unpack(contract abi.ABI, name string, data []byte) ([]interface{}, bool) {
	ev, ok := contract.Events[name]
	if !ok {
		return nil, false
	}
	args, err := ev.Inputs.Unpack(data)
	if err != nil || len(args) != len(ev.Inputs.NonIndexed()) {
		return nil, false
	}
	return args, true
}
