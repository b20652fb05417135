package observer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"si-monitor/internal/contracts"
	"si-monitor/internal/game"
)

// 每次 FilterLogs 查询的区块数，多数节点对单次范围有限制
const preloadWindow = 1000

// preloadStakes 在回放前处理 StakeRegistry 的历史日志，让回放开始时玩家已经存在
func (s *ChainSync) preloadStakes(ctx context.Context) error {
	from := s.opts.Chain.StakeDeployBlock
	tip, err := s.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get block number: %w", err)
	}
	if from > tip {
		return nil
	}

	s.log.Info("loading stake registry logs", zap.Uint64("from", from), zap.Uint64("to", tip))
	s.display.Message(fmt.Sprintf("Loading StakeRegistry logs from block %d", from), "sync")
	started := time.Now()

	// 1. 分段拉取日志
	var logs []types.Log
	for start := from; start <= tip; start += preloadWindow {
		end := start + preloadWindow - 1
		if end > tip {
			end = tip
		}
		batch, err := s.source.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{s.stakeRegistry},
			Topics:    contracts.StakeTopics(),
		})
		if err != nil {
			return fmt.Errorf("filter stake logs [%d, %d]: %w", start, end, err)
		}
		logs = append(logs, batch...)
	}
	s.log.Info("loaded stake registry logs", zap.Int("count", len(logs)), zap.Duration("elapsed", time.Since(started)))

	// 2. 检查交易状态后按顺序应用
	applied := 0
	statuses := make(map[common.Hash]bool)
	for i := range logs {
		l := &logs[i]
		ok, seen := statuses[l.TxHash]
		if !seen {
			r, err := s.source.Receipt(ctx, l.TxHash)
			if err != nil {
				s.log.Warn("stake log receipt", zap.String("tx", l.TxHash.Hex()), zap.Error(err))
				continue
			}
			ok = r.Succeeded()
			statuses[l.TxHash] = ok
			if !ok {
				s.failedTxs.Add(1)
			}
		}
		if !ok {
			continue
		}

		ts, err := s.blockTime(ctx, l.BlockNumber)
		if err != nil {
			s.log.Warn("stake log block time", zap.Uint64("block", l.BlockNumber), zap.Error(err))
			continue
		}
		block := game.BlockDetails{Number: l.BlockNumber, Timestamp: ts}

		decoded, _ := contracts.DecodeLog(l)
		switch e := decoded.(type) {
		case contracts.StakeUpdated:
			s.engine.StakeUpdated(e.Overlay, e.Owner, e.Amount, block)
			applied++
		case contracts.StakeSlashed:
			s.engine.StakeSlashed(e.Overlay, e.Amount, block)
			applied++
		}
	}

	s.display.Message(fmt.Sprintf("Processed %d StakeRegistry logs in %.3fs", applied, time.Since(started).Seconds()), "sync")
	return nil
}
