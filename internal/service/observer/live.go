package observer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"si-monitor/internal/contracts"
	"si-monitor/internal/game"
	"si-monitor/internal/gas"
	"si-monitor/pkg/errno"
	"si-monitor/pkg/format"
	"si-monitor/pkg/monitor"
)

// 订阅断开后重连的间隔
var resubscribeDelay = 3 * time.Second

// liveStake 实时收到的 StakeUpdated，交给 applier 串行处理
type liveStake struct {
	ev    contracts.StakeUpdated
	block uint64
}

// startLive 启动实时跟踪
// headLoop (生产者): 订阅新区块，按通知顺序拉取完整区块
// logLoop: 订阅质押和代币日志
// applyLoop (唯一消费者): 所有对引擎的写入都在这里，RUNNING 之前到达的先暂存
func (s *ChainSync) startLive(ctx context.Context) {
	blocks := make(chan *Block, s.opts.HeadBuffer)
	stakes := make(chan liveStake, s.opts.HeadBuffer)

	s.wg.Add(3)
	go s.headLoop(ctx, blocks)
	go s.logLoop(ctx, stakes)
	go s.applyLoop(ctx, blocks, stakes)
}

func (s *ChainSync) headLoop(ctx context.Context, blocks chan<- *Block) {
	defer s.wg.Done()
	// 退出时关闭 channel，通知 applier
	defer close(blocks)

	for {
		heads := make(chan *types.Header, s.opts.HeadBuffer)
		sub, err := s.source.SubscribeNewHead(ctx, heads)
		if err != nil {
			s.log.Error("subscribe new heads", zap.Error(err))
		} else {
			s.consumeHeads(ctx, sub, heads, blocks)
			sub.Unsubscribe()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
			s.log.Info("resubscribing to new heads")
		}
	}
}

func (s *ChainSync) consumeHeads(ctx context.Context, sub ethereum.Subscription, heads <-chan *types.Header, blocks chan<- *Block) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			s.log.Warn("new head subscription dropped", zap.Error(err))
			return
		case h := <-heads:
			if h == nil || h.Number == nil {
				continue
			}
			b, err := s.source.BlockByNumber(ctx, h.Number.Uint64())
			if err != nil {
				s.log.Error("fetch live block", zap.Uint64("block", h.Number.Uint64()), zap.Error(err))
				continue
			}
			// 处理不过来时这里会阻塞 (背压)
			select {
			case blocks <- b:
			case <-ctx.Done():
				return
			}
		}
	}
}

// applyLoop 收到 running 信号之前只输出旁路信息，区块和质押更新先暂存
// 信号到达后先补上暂存中回放没有覆盖的部分，再按实时顺序处理
func (s *ChainSync) applyLoop(ctx context.Context, blocks <-chan *Block, stakes <-chan liveStake) {
	defer s.wg.Done()

	running := s.running
	var held []*Block
	var heldStakes []liveStake
	for {
		select {
		case <-ctx.Done():
			return
		case <-running:
			running = nil
			s.drainHeld(ctx, held, heldStakes)
			held, heldStakes = nil, nil
		case b, ok := <-blocks:
			if !ok {
				return
			}
			if running != nil {
				s.applyLiveBlock(ctx, b, false)
				held = s.hold(held, b)
				s.display.Message(fmt.Sprintf("Block %d queued until sync completes", b.Number), "warmup")
				continue
			}
			s.applyLiveBlock(ctx, b, true)
		case st := <-stakes:
			if running != nil {
				heldStakes = append(heldStakes, st)
				s.display.Message(fmt.Sprintf("StakeUpdated at block %d queued until sync completes", st.block), "warmup")
				continue
			}
			s.applyLiveStake(ctx, st)
		}
	}
}

// hold 回放已经越过的区块直接丢掉
func (s *ChainSync) hold(held []*Block, b *Block) []*Block {
	last := s.LastBlock().Number
	kept := held[:0]
	for _, h := range held {
		if h.Number > last {
			kept = append(kept, h)
		}
	}
	if b.Number > last {
		kept = append(kept, b)
	}
	return kept
}

func (s *ChainSync) drainHeld(ctx context.Context, held []*Block, stakes []liveStake) {
	replayed := s.LastBlock().Number
	sort.Slice(held, func(i, j int) bool { return held[i].Number < held[j].Number })
	if len(held) > 0 {
		s.log.Info("applying blocks received during warmup",
			zap.Int("blocks", len(held)), zap.Uint64("after", replayed))
	}
	for _, b := range held {
		if ctx.Err() != nil {
			return
		}
		s.advance(ctx, b)
	}
	for _, st := range stakes {
		if st.block <= replayed {
			continue
		}
		s.applyLiveStake(ctx, st)
	}
}

// applyLiveBlock apply=false 时只更新旁路显示 (WARMUP)
func (s *ChainSync) applyLiveBlock(ctx context.Context, b *Block, apply bool) {
	started := time.Now()

	if s.opts.ShowGas {
		s.sampleGasPrice(ctx, b)
	}

	text := fmt.Sprintf("%s Block: %d Gas: %s%% %s Time: %s",
		s.engine.RoundString(b.Number), b.Number,
		gas.Utilization(b.GasUsed, b.GasLimit), format.GasPrice(orZero(b.BaseFee)),
		time.UnixMilli(b.Timestamp).UTC().Format(time.RFC3339))
	s.display.Message(text, "block")

	if apply {
		s.advance(ctx, b)
	}

	text += fmt.Sprintf(" %dms", time.Since(started).Milliseconds())
	s.display.Message(text, "block")
	s.setTip(b.Number, b.Timestamp)
}

// advance 把一个实时区块写入引擎并前移进度指针
func (s *ChainSync) advance(ctx context.Context, b *Block) {
	last := s.LastBlock()
	if b.Number <= last.Number {
		s.log.Debug("block already applied", zap.Uint64("block", b.Number), zap.Uint64("last", last.Number))
		return
	}
	if b.Number != last.Number+1 {
		monitor.BlockGaps.Inc()
		err := fmt.Errorf("%w: skipped from block %d to %d", errno.ErrBlockGap, last.Number, b.Number)
		s.log.Warn("live feed", zap.Error(err))
		s.display.Message(fmt.Sprintf("Skipped from block %d to %d", last.Number, b.Number), "gap")
	}
	anchor := s.roundAnchor(ctx)
	s.handleBlock(ctx, b, anchor, "live")
	s.setLastBlock(b.details())
}

func (s *ChainSync) sampleGasPrice(ctx context.Context, b *Block) {
	price, err := s.source.SuggestGasPrice(ctx)
	if err != nil {
		s.log.Warn("gas price", zap.Error(err))
		return
	}
	tip, err := s.source.SuggestGasTipCap(ctx)
	if err != nil {
		s.log.Debug("gas tip", zap.Error(err))
		tip = new(big.Int)
	}

	s.gasMu.Lock()
	s.gasPrice.NewSample(price)
	line := fmt.Sprintf("%s %d %s %s%% %s + %s",
		format.LocalTime(b.Timestamp), b.Number,
		s.gasPrice.LastPrice(), s.gasPrice.PercentString(10),
		format.GasPrice(price), format.GasPrice(tip))
	history := s.gasPrice.History()
	s.gasMu.Unlock()

	s.display.Message(fmt.Sprintf("%s getGasPrice %s", s.opts.Chain.Name, history), "gasprice")
	s.display.BlockLine(line, b.Timestamp)
}

func (s *ChainSync) applyLiveStake(ctx context.Context, st liveStake) {
	ts, err := s.blockTime(ctx, st.block)
	if err != nil {
		s.log.Warn("stake update block time", zap.Uint64("block", st.block), zap.Error(err))
	}
	s.engine.StakeUpdated(st.ev.Overlay, st.ev.Owner, st.ev.Amount, game.BlockDetails{Number: st.block, Timestamp: ts})
}

// logLoop 质押更新与 BZZ 转账/授权日志
func (s *ChainSync) logLoop(ctx context.Context, stakes chan<- liveStake) {
	defer s.wg.Done()

	q := ethereum.FilterQuery{
		Addresses: []common.Address{s.stakeRegistry, s.bzzToken},
		Topics:    [][]common.Hash{{contracts.TopicStakeUpdated, contracts.TopicTransfer, contracts.TopicApproval}},
	}
	for {
		logs := make(chan types.Log, s.opts.HeadBuffer)
		sub, err := s.source.SubscribeLogs(ctx, q, logs)
		if err != nil {
			s.log.Error("subscribe logs", zap.Error(err))
		} else {
			s.consumeLogs(ctx, sub, logs, stakes)
			sub.Unsubscribe()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
			s.log.Info("resubscribing to logs")
		}
	}
}

func (s *ChainSync) consumeLogs(ctx context.Context, sub ethereum.Subscription, logs <-chan types.Log, stakes chan<- liveStake) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			s.log.Warn("log subscription dropped", zap.Error(err))
			return
		case l := <-logs:
			s.handleLiveLog(ctx, l, stakes)
		}
	}
}

func (s *ChainSync) handleLiveLog(ctx context.Context, l types.Log, stakes chan<- liveStake) {
	if l.Removed {
		return
	}
	decoded, ok := contracts.DecodeLog(&l)
	if !ok {
		return
	}

	switch e := decoded.(type) {
	case contracts.StakeUpdated:
		if l.Address != s.stakeRegistry {
			return
		}
		s.display.Message(fmt.Sprintf("StakeUpdated event: %s, %s, %s, %s",
			e.Overlay.Hex(), e.Amount, e.Owner.Hex(), e.LastUpdatedBlock), "stake")
		select {
		case stakes <- liveStake{ev: e, block: l.BlockNumber}:
		case <-ctx.Done():
		}
	case contracts.Transfer:
		s.display.Message(fmt.Sprintf("%s from %s to %s",
			format.BZZ(e.Value), s.account(e.From), s.account(e.To)), "token")
	case contracts.Approval:
		s.display.Message(fmt.Sprintf("%s Approved from %s to %s",
			format.BZZ(e.Value), s.account(e.Owner), s.account(e.Spender)), "token")
	}
}

func (s *ChainSync) account(a common.Address) string {
	return format.Account(a.Hex(), s.accountNames)
}
