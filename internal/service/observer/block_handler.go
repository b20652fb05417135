package observer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"si-monitor/internal/contracts"
	"si-monitor/internal/game"
	"si-monitor/internal/gas"
	"si-monitor/pkg/errno"
	"si-monitor/pkg/format"
	"si-monitor/pkg/monitor"
)

// handleBlock 回放和实时共用的区块处理
func (s *ChainSync) handleBlock(ctx context.Context, b *Block, anchor *common.Hash, mode string) {
	started := time.Now()
	last := s.LastBlock()

	s.gasMu.Lock()
	s.baseGas.NewSample(orOne(b.BaseFee))
	history, percent := s.baseGas.History(), s.baseGas.Percent()
	price, percentText := s.baseGas.LastPrice(), s.baseGas.PercentString(10)
	s.gasMu.Unlock()

	s.display.FeeHistory(history, percent)
	if s.opts.ShowGas {
		delta := ""
		if last.Timestamp != 0 {
			delta = format.BlockDelta((b.Timestamp-last.Timestamp)/1000, s.opts.Chain.SecondsPerBlock)
		}
		s.display.BlockLine(fmt.Sprintf("%d %s %s %s%%", b.Number, delta, price, percentText), b.Timestamp)
	}

	details := b.details()
	line := s.engine.NewBlock(details, anchor)
	s.display.Status(line, b.Timestamp)

	s.processTransactions(ctx, b, details)
	// 交易处理后刷新一次
	s.display.Status(line, b.Timestamp)

	monitor.BlocksProcessed.WithLabelValues(mode).Inc()
	monitor.BlockDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

// processTransactions 并发获取回执，再严格按交易顺序应用
func (s *ChainSync) processTransactions(ctx context.Context, b *Block, details game.BlockDetails) {
	var txs []Transaction
	for _, tx := range b.Transactions {
		if tx.To != nil && *tx.To == s.redistribution {
			txs = append(txs, tx)
		}
	}
	if len(txs) == 0 {
		return
	}

	// 1. 并发获取回执 (限制并发数)
	receipts := make([]*Receipt, len(txs))
	var g errgroup.Group
	g.SetLimit(s.opts.ReceiptConcurrency)
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			r, err := s.source.Receipt(ctx, tx.Hash)
			if err != nil {
				return fmt.Errorf("receipt %s: %w", tx.Hash.Hex(), err)
			}
			receipts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("fetch receipts", zap.Uint64("block", b.Number), zap.Error(err))
	}

	// 2. 按顺序应用
	for i, tx := range txs {
		if receipts[i] == nil {
			s.display.Message(fmt.Sprintf("%d receipt unavailable %s", b.Number, tx.Hash.Hex()), "tx")
			continue
		}
		s.applyTransaction(tx, receipts[i], details)
	}
}

func (s *ChainSync) txPrefix(number uint64) string {
	return fmt.Sprintf("%s %d", s.engine.RoundString(number), number)
}

// applyTransaction 失败或无法解码的交易只输出一行，不修改状态
func (s *ChainSync) applyTransaction(tx Transaction, r *Receipt, details game.BlockDetails) {
	number := details.Number
	if !r.Succeeded() {
		s.failedTxs.Add(1)
		monitor.Transactions.WithLabelValues("unknown", "failed").Inc()
		line := fmt.Sprintf("%s Failed %s", s.txPrefix(number), tx.Hash.Hex())
		s.log.Warn("transaction", zap.String("tx", tx.Hash.Hex()), zap.Error(errno.ErrTxFailed))
		s.display.Transaction(line, details.Timestamp)
		return
	}

	call, err := contracts.DecodeCall(tx.Input)
	if err != nil {
		monitor.Transactions.WithLabelValues("unknown", "noparse").Inc()
		line := fmt.Sprintf("%s NoParse %s", s.txPrefix(number), tx.Hash.Hex())
		s.log.Warn("transaction", zap.String("tx", tx.Hash.Hex()), zap.Error(err))
		s.display.Transaction(line, details.Timestamp)
		return
	}

	status := "ok"
	switch c := call.(type) {
	case contracts.CommitCall:
		s.engine.Commit(c.Overlay, tx.From, details)
	case contracts.RevealCall:
		s.engine.Reveal(game.RevealEvent{
			Overlay: c.Overlay,
			Account: tx.From,
			Hash:    c.Hash,
			Depth:   c.Depth,
			Block:   details,
		})
	case contracts.ClaimCall:
		ev, err := s.buildClaim(tx, r, details)
		if err != nil {
			status = "skipped"
			s.log.Warn("claim", zap.String("tx", tx.Hash.Hex()), zap.Error(err))
			s.display.Message(fmt.Sprintf("%s claim skipped: %v", s.txPrefix(number), err), "claim")
			break
		}
		s.engine.Claim(ev)
	default:
		status = "unsupported"
		err := fmt.Errorf("%w: %s", errno.ErrUnsupportedTx, call.Name())
		s.log.Warn("transaction", zap.String("tx", tx.Hash.Hex()), zap.Error(err))
		s.display.Message(fmt.Sprintf("Unsupported Redistribution Tx %s", call.Name()), "tx")
	}
	monitor.Transactions.WithLabelValues(call.Name(), status).Inc()

	// 应用之后再输出，以便带上刚绑定的高亮账户
	s.display.Transaction(s.txLine(tx, r, call.Name(), number), details.Timestamp)
}

// txLine 形如 "1234(56) 187572 commit 1.5 gwei 84000/120000=70.00%"
func (s *ChainSync) txLine(tx Transaction, r *Receipt, name string, number uint64) string {
	line := s.txPrefix(number)
	if s.engine.IsMyAccount(tx.From) {
		line += " *" + name
	} else {
		line += " " + name
	}
	if r.EffectiveGasPrice != nil {
		line += " " + format.GasPrice(r.EffectiveGasPrice)
	}
	line += fmt.Sprintf(" %d/%d", r.GasUsed, tx.Gas)
	if tx.Gas > 0 {
		line += "=" + gas.Utilization(r.GasUsed, tx.Gas) + "%"
	}
	if tx.GasFeeCap != nil && tx.GasTipCap != nil {
		base := new(big.Int).Sub(tx.GasFeeCap, tx.GasTipCap)
		line += fmt.Sprintf(" %s %s %s", format.GasPrice(base), format.GasPrice(tx.GasFeeCap), format.GasPrice(tx.GasTipCap))
	}
	return line
}

// buildClaim 汇总 claim 回执中的日志: 赢家、冻结、罚没、以及 postage 合约转给发起人的奖励
func (s *ChainSync) buildClaim(tx Transaction, r *Receipt, details game.BlockDetails) (game.ClaimEvent, error) {
	ev := game.ClaimEvent{
		Account: tx.From,
		Amount:  new(big.Int),
		Block:   details,
	}
	found := false
	for _, l := range r.Logs {
		decoded, ok := contracts.DecodeLog(l)
		if !ok {
			continue
		}
		switch e := decoded.(type) {
		case contracts.WinnerSelected:
			found = true
			ev.Winner = game.Winner{
				Owner:        e.Winner.Owner,
				Overlay:      common.Hash(e.Winner.Overlay),
				Stake:        e.Winner.Stake,
				StakeDensity: e.Winner.StakeDensity,
				Hash:         common.Hash(e.Winner.Hash),
				Depth:        e.Winner.Depth,
			}
		case contracts.StakeSlashed:
			ev.Slashes = append(ev.Slashes, game.StakeSlash{Overlay: e.Overlay, Amount: e.Amount})
		case contracts.StakeFrozen:
			ev.Freezes = append(ev.Freezes, game.StakeFreeze{Overlay: e.Overlay, NumBlocks: e.Time.Uint64()})
		case contracts.Transfer:
			if e.From == s.postageStamp && e.To == tx.From {
				ev.Amount.Add(ev.Amount, e.Value)
			}
		}
	}
	if !found {
		return game.ClaimEvent{}, fmt.Errorf("%w: tx %s", errno.ErrMissingWinner, tx.Hash.Hex())
	}
	return ev, nil
}
