package observer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthSource 基于 ethclient 的 DataSource，订阅需要 ws/ipc 连接
type EthSource struct {
	client *ethclient.Client
	signer types.Signer
}

func DialEthSource(ctx context.Context, rpcURL string) (*EthSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	return &EthSource{
		client: client,
		signer: types.LatestSignerForChainID(chainID),
	}, nil
}

func (s *EthSource) Close() {
	s.client.Close()
}

func (s *EthSource) ChainID(ctx context.Context) (*big.Int, error) {
	return s.client.ChainID(ctx)
}

func (s *EthSource) BlockNumber(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

func (s *EthSource) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	b, err := s.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", number, err)
	}

	block := &Block{
		Number:    b.NumberU64(),
		Hash:      b.Hash(),
		Timestamp: int64(b.Time()) * 1000,
		BaseFee:   b.BaseFee(),
		GasUsed:   b.GasUsed(),
		GasLimit:  b.GasLimit(),
	}
	for _, tx := range b.Transactions() {
		from, err := types.Sender(s.signer, tx)
		if err != nil {
			// 无法恢复发送方的交易 (例如不认识的交易类型) 跳过
			continue
		}
		t := Transaction{
			Hash:  tx.Hash(),
			From:  from,
			To:    tx.To(),
			Input: tx.Data(),
			Gas:   tx.Gas(),
		}
		if tx.Type() == types.DynamicFeeTxType {
			t.GasFeeCap = tx.GasFeeCap()
			t.GasTipCap = tx.GasTipCap()
		}
		block.Transactions = append(block.Transactions, t)
	}
	return block, nil
}

func (s *EthSource) HeaderTime(ctx context.Context, number uint64) (int64, error) {
	h, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("get header %d: %w", number, err)
	}
	return int64(h.Time) * 1000, nil
}

func (s *EthSource) Receipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	r, err := s.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("get receipt %s: %w", txHash.Hex(), err)
	}
	out := &Receipt{
		Status:            r.Status,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
		Logs:              r.Logs,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out, nil
}

func (s *EthSource) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return s.client.FilterLogs(ctx, q)
}

func (s *EthSource) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return s.client.SubscribeNewHead(ctx, ch)
}

func (s *EthSource) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return s.client.SubscribeFilterLogs(ctx, q, ch)
}

func (s *EthSource) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return s.client.SuggestGasPrice(ctx)
}

func (s *EthSource) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return s.client.SuggestGasTipCap(ctx)
}

func (s *EthSource) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return s.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}
