package observer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"si-monitor/internal/contracts"
	"si-monitor/internal/display"
	"si-monitor/internal/game"
	"si-monitor/pkg/config"
)

var (
	redistributionAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	stakeRegistryAddr  = common.HexToAddress("0x1000000000000000000000000000000000000002")
	bzzTokenAddr       = common.HexToAddress("0x1000000000000000000000000000000000000003")
	postageStampAddr   = common.HexToAddress("0x1000000000000000000000000000000000000004")

	accountA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	accountB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	overlayA = common.HexToHash("0xa000000000000000000000000000000000000000000000000000000000000001")
	overlayB = common.HexToHash("0xb000000000000000000000000000000000000000000000000000000000000002")
	hashH1   = common.HexToHash("0x1100000000000000000000000000000000000000000000000000000000000000")
)

// 5 * 10^16 = 5 BZZ
var fiveBZZ = new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil))

func testChain() config.ChainConfig {
	return config.ChainConfig{
		Name:              "test",
		SecondsPerBlock:   5,
		BlocksPerRound:    8,
		CommitPhaseBlocks: 2,
		RevealPhaseBlocks: 2,
		Contracts: config.ContractsConfig{
			Redistribution: redistributionAddr.Hex(),
			StakeRegistry:  stakeRegistryAddr.Hex(),
			BzzToken:       bzzTokenAddr.Hex(),
			PostageStamp:   postageStampAddr.Hex(),
		},
	}
}

type fakeSub struct {
	errc chan error
}

func newFakeSub() *fakeSub { return &fakeSub{errc: make(chan error, 1)} }

func (s *fakeSub) Err() <-chan error { return s.errc }
func (s *fakeSub) Unsubscribe()      {}

// fakeSource 内存中的链
type fakeSource struct {
	mu       sync.Mutex
	chainID  int64
	tips     []uint64 // 依次返回，最后一个值保持不变
	blocks   map[uint64]*Block
	receipts map[common.Hash]*Receipt
	logs     []types.Log
	views    map[string][]byte
	heads    chan<- *types.Header
	logSink  chan<- types.Log
	fetched  []uint64
	filters  int
	txSeq    int64
}

func newFakeSource(tips ...uint64) *fakeSource {
	return &fakeSource{
		chainID:  5,
		tips:     tips,
		blocks:   make(map[uint64]*Block),
		receipts: make(map[common.Hash]*Receipt),
		views:    make(map[string][]byte),
	}
}

func (f *fakeSource) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeSource) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tips[0]
	if len(f.tips) > 1 {
		f.tips = f.tips[1:]
	}
	return t, nil
}

func (f *fakeSource) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, number)
	if b, ok := f.blocks[number]; ok {
		return b, nil
	}
	return &Block{Number: number, Timestamp: int64(number) * 5000, BaseFee: big.NewInt(1_000_000_000), GasLimit: 30_000_000}, nil
}

func (f *fakeSource) HeaderTime(ctx context.Context, number uint64) (int64, error) {
	return int64(number) * 5000, nil
}

func (f *fakeSource) Receipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (f *fakeSource) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters++
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= q.FromBlock.Uint64() && l.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSource) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads = ch
	return newFakeSub(), nil
}

func (f *fakeSource) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logSink = ch
	return newFakeSub(), nil
}

func (f *fakeSource) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeSource) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(100_000_000), nil
}

func (f *fakeSource) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.views[common.Bytes2Hex(data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

// --- 构造数据

func (f *fakeSource) setView(t *testing.T, method string, value interface{}) {
	t.Helper()
	m := contracts.Redistribution.Methods[method]
	out, err := m.Outputs.Pack(value)
	require.NoError(t, err)
	f.views[common.Bytes2Hex(m.ID)] = out
}

// addTx 把一笔发往 Redistribution 的交易放进区块并登记回执
func (f *fakeSource) addTx(number uint64, from common.Address, input []byte, status uint64, logs ...*types.Log) Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txSeq++
	to := redistributionAddr
	tx := Transaction{
		Hash:  common.BigToHash(big.NewInt(f.txSeq)),
		From:  from,
		To:    &to,
		Input: input,
		Gas:   100_000,
	}
	b, ok := f.blocks[number]
	if !ok {
		b = &Block{Number: number, Timestamp: int64(number) * 5000, BaseFee: big.NewInt(1_000_000_000), GasLimit: 30_000_000}
		f.blocks[number] = b
	}
	b.Transactions = append(b.Transactions, tx)
	f.receipts[tx.Hash] = &Receipt{
		Status:            status,
		BlockNumber:       number,
		GasUsed:           50_000,
		EffectiveGasPrice: big.NewInt(1_500_000_000),
		Logs:              logs,
	}
	return tx
}

func (f *fakeSource) pushHead(t *testing.T, number uint64) {
	t.Helper()
	var ch chan<- *types.Header
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		ch = f.heads
		return ch != nil
	}, time.Second, 5*time.Millisecond)
	ch <- &types.Header{Number: new(big.Int).SetUint64(number)}
}

func (f *fakeSource) pushLog(t *testing.T, l types.Log) {
	t.Helper()
	var ch chan<- types.Log
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		ch = f.logSink
		return ch != nil
	}, time.Second, 5*time.Millisecond)
	ch <- l
}

func (f *fakeSource) fetchedBlocks() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.fetched...)
}

func mustPack(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := contracts.Redistribution.Pack(method, args...)
	require.NoError(t, err)
	return data
}

func winnerLog(t *testing.T, owner common.Address, overlay, hash common.Hash, depth uint8) *types.Log {
	t.Helper()
	data, err := contracts.Redistribution.Events["WinnerSelected"].Inputs.NonIndexed().Pack(contracts.Reveal{
		Owner:        owner,
		Overlay:      overlay,
		Stake:        big.NewInt(1),
		StakeDensity: big.NewInt(1),
		Hash:         hash,
		Depth:        depth,
	})
	require.NoError(t, err)
	return &types.Log{Address: redistributionAddr, Topics: []common.Hash{contracts.TopicWinnerSelected}, Data: data}
}

func transferLog(t *testing.T, from, to common.Address, value *big.Int) *types.Log {
	t.Helper()
	data, err := contracts.Token.Events["Transfer"].Inputs.NonIndexed().Pack(value)
	require.NoError(t, err)
	return &types.Log{
		Address: bzzTokenAddr,
		Topics:  []common.Hash{contracts.TopicTransfer, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    data,
	}
}

func frozenLog(t *testing.T, overlay common.Hash, blocks int64) *types.Log {
	t.Helper()
	data, err := contracts.StakeRegistry.Events["StakeFrozen"].Inputs.Pack([32]byte(overlay), big.NewInt(blocks))
	require.NoError(t, err)
	return &types.Log{Address: stakeRegistryAddr, Topics: []common.Hash{contracts.TopicStakeFrozen}, Data: data}
}

func stakeUpdatedLog(t *testing.T, overlay common.Hash, amount *big.Int, owner common.Address, block uint64, tx common.Hash) types.Log {
	t.Helper()
	data, err := contracts.StakeRegistry.Events["StakeUpdated"].Inputs.NonIndexed().Pack(amount, owner, new(big.Int).SetUint64(block))
	require.NoError(t, err)
	return types.Log{
		Address:     stakeRegistryAddr,
		Topics:      []common.Hash{contracts.TopicStakeUpdated, overlay},
		Data:        data,
		BlockNumber: block,
		TxHash:      tx,
	}
}

func newTestSync(src DataSource, mutate func(*Options)) (*ChainSync, *game.Game, *display.Recorder) {
	chain := testChain()
	rec := display.NewRecorder(0)
	g := game.New(game.Params{
		BlocksPerRound:    chain.BlocksPerRound,
		CommitPhaseBlocks: chain.CommitPhaseBlocks,
		RevealPhaseBlocks: chain.RevealPhaseBlocks,
	}, rec, nil)
	opts := Options{ChainID: 5, Chain: chain, ReceiptConcurrency: 2}
	if mutate != nil {
		mutate(&opts)
	}
	return NewChainSync(src, g, rec, opts), g, rec
}

// hookedSource 在读取指定区块或第一次 view 调用时执行一次回调，用于模拟回放期间到达的实时事件
type hookedSource struct {
	*fakeSource
	hookMu  sync.Mutex
	onBlock map[uint64]func()
	onCall  func()
}

func newHookedSource(f *fakeSource) *hookedSource {
	return &hookedSource{fakeSource: f, onBlock: make(map[uint64]func())}
}

func (h *hookedSource) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	h.hookMu.Lock()
	fn := h.onBlock[number]
	delete(h.onBlock, number)
	h.hookMu.Unlock()
	if fn != nil {
		fn()
	}
	return h.fakeSource.BlockByNumber(ctx, number)
}

func (h *hookedSource) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	h.hookMu.Lock()
	fn := h.onCall
	h.onCall = nil
	h.hookMu.Unlock()
	if fn != nil {
		fn()
	}
	return h.fakeSource.CallContract(ctx, to, data)
}
