package contracts

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	//go:embed abi/redistribution.json
	redistributionJSON []byte
	//go:embed abi/stake_registry.json
	stakeRegistryJSON []byte
	//go:embed abi/token.json
	tokenJSON []byte
)

// 三个合约的 ABI，包加载时解析
var (
	Redistribution = mustParse("redistribution", redistributionJSON)
	StakeRegistry  = mustParse("stake registry", stakeRegistryJSON)
	Token          = mustParse("token", tokenJSON)
)

// 事件 topic0
var (
	TopicWinnerSelected = Redistribution.Events["WinnerSelected"].ID
	TopicTruthSelected  = Redistribution.Events["TruthSelected"].ID
	TopicCountCommits   = Redistribution.Events["CountCommits"].ID
	TopicCountReveals   = Redistribution.Events["CountReveals"].ID
	TopicStakeUpdated   = StakeRegistry.Events["StakeUpdated"].ID
	TopicStakeSlashed   = StakeRegistry.Events["StakeSlashed"].ID
	TopicStakeFrozen    = StakeRegistry.Events["StakeFrozen"].ID
	TopicTransfer       = Token.Events["Transfer"].ID
	TopicApproval       = Token.Events["Approval"].ID
)

func mustParse(name string, data []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %v", name, err))
	}
	return parsed
}

// StakeTopics 质押预加载用的 topic 过滤 (StakeUpdated 或 StakeSlashed)
func StakeTopics() [][]common.Hash {
	return [][]common.Hash{{TopicStakeUpdated, TopicStakeSlashed}}
}

// TokenTopics Transfer 或 Approval
func TokenTopics() [][]common.Hash {
	return [][]common.Hash{{TopicTransfer, TopicApproval}}
}
