package observer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"si-monitor/internal/game"
)

// DataSource 同步器需要的链上数据，EthSource 是基于 ethclient 的实现
type DataSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	// BlockByNumber 带完整交易列表
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	// HeaderTime 区块时间 (毫秒)
	HeaderTime(ctx context.Context, number uint64) (int64, error)
	Receipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	SubscribeLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)

	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Engine 游戏状态引擎中同步器用到的部分
type Engine interface {
	NewBlock(block game.BlockDetails, anchor *common.Hash) string
	Commit(overlay common.Hash, account common.Address, block game.BlockDetails)
	Reveal(ev game.RevealEvent)
	Claim(ev game.ClaimEvent)
	StakeUpdated(overlay common.Hash, account common.Address, amount *big.Int, block game.BlockDetails)
	StakeSlashed(overlay common.Hash, amount *big.Int, block game.BlockDetails)
	IsMyAccount(account common.Address) bool
	RoundString(block uint64) string
}

// Block 区块及其交易 (只保留需要的字段)
type Block struct {
	Number       uint64
	Hash         common.Hash
	Timestamp    int64    // 毫秒
	BaseFee      *big.Int // London 之前为空
	GasUsed      uint64
	GasLimit     uint64
	Transactions []Transaction
}

type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address // 合约创建时为空
	Input []byte
	Gas   uint64
	// 只有 EIP-1559 交易才有
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

type Receipt struct {
	Status            uint64 // 1 = Success, 0 = Fail
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Logs              []*types.Log
}

func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

func (b *Block) details() game.BlockDetails {
	return game.BlockDetails{Number: b.Number, Timestamp: b.Timestamp, BaseFee: b.BaseFee}
}
