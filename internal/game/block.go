package game

import "math/big"

// BlockDetails 每个事件都带上来源区块
type BlockDetails struct {
	Number    uint64
	Timestamp int64    // 毫秒
	BaseFee   *big.Int // 可能为空
}
