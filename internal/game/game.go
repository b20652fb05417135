package game

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/btree"
	"go.uber.org/zap"

	"si-monitor/internal/event"
	"si-monitor/pkg/errno"
	"si-monitor/pkg/format"
	"si-monitor/pkg/logger"
	"si-monitor/pkg/monitor"
)

// MaxNeighborhoodDepth 超过这个深度的邻域判断没有意义
const MaxNeighborhoodDepth = 28

// Params 轮次参数，来自链配置
type Params struct {
	BlocksPerRound    uint64
	CommitPhaseBlocks uint64 // 0 = BlocksPerRound/4
	RevealPhaseBlocks uint64 // 0 = BlocksPerRound/4
}

func (p Params) normalize() Params {
	if p.BlocksPerRound == 0 {
		p.BlocksPerRound = 152
	}
	if p.CommitPhaseBlocks == 0 {
		p.CommitPhaseBlocks = p.BlocksPerRound / 4
	}
	if p.RevealPhaseBlocks == 0 {
		p.RevealPhaseBlocks = p.BlocksPerRound / 4
	}
	return p
}

// Winner 来自 WinnerSelected 日志
type Winner struct {
	Owner        common.Address
	Overlay      common.Hash
	Stake        *big.Int
	StakeDensity *big.Int
	Hash         common.Hash
	Depth        uint8
}

type StakeFreeze struct {
	Overlay   common.Hash
	NumBlocks uint64
}

type StakeSlash struct {
	Overlay common.Hash
	Amount  *big.Int
}

type RevealEvent struct {
	Overlay      common.Hash
	Account      common.Address
	Hash         common.Hash
	Depth        uint8
	Stake        *big.Int // 可选
	StakeDensity *big.Int // 可选
	Block        BlockDetails
}

type ClaimEvent struct {
	Winner  Winner
	Account common.Address // 发起 claim 的账户
	Amount  *big.Int
	Block   BlockDetails
	Freezes []StakeFreeze
	Slashes []StakeSlash
}

// Game 游戏状态引擎
// 所有修改入口串行执行 (单写者)，读取走 RLock
type Game struct {
	mu        sync.RWMutex
	params    Params
	display   Display
	publisher Publisher
	log       *zap.Logger

	players *btree.BTreeG[*Player]
	order   []*Player // 创建顺序
	rounds  *btree.BTreeG[*Round]

	currentRound uint64
	started      bool
	lastBlock    BlockDetails
	runningDepth uint8

	myOverlays []common.Hash
	myAccounts []common.Address
}

func New(params Params, display Display, publisher Publisher) *Game {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Game{
		params:    params.normalize(),
		display:   display,
		publisher: publisher,
		log:       logger.Named("game"),
		players: btree.NewG(16, func(a, b *Player) bool {
			return bytes.Compare(a.overlay[:], b.overlay[:]) < 0
		}),
		rounds: btree.NewG(16, func(a, b *Round) bool {
			return a.id < b.id
		}),
	}
}

func (g *Game) Params() Params { return g.params }

// --- 静态计算

func (g *Game) RoundOf(block uint64) uint64 {
	return block / g.params.BlocksPerRound
}

// roundString 形如 "1234(56)"
func (g *Game) roundString(block uint64) string {
	return fmt.Sprintf("%d(%d)", g.RoundOf(block), block%g.params.BlocksPerRound)
}

func (g *Game) RoundString(block uint64) string {
	return g.roundString(block)
}

func (g *Game) PhaseOf(block uint64) Phase {
	offset := block % g.params.BlocksPerRound
	switch {
	case offset < g.params.CommitPhaseBlocks:
		return PhaseCommit
	case offset < g.params.CommitPhaseBlocks+g.params.RevealPhaseBlocks:
		return PhaseReveal
	default:
		return PhaseClaim
	}
}

// --- 内部辅助 (调用方已持锁)

func (g *Game) message(text, tag string) {
	g.display.Message(text, tag)
}

func (g *Game) lookupPlayer(overlay common.Hash) *Player {
	p, _ := g.players.Get(&Player{overlay: overlay})
	return p
}

func (g *Game) lookupRound(id uint64) *Round {
	r, _ := g.rounds.Get(&Round{id: id})
	return r
}

func (g *Game) isMyOverlay(overlay common.Hash) bool {
	for _, o := range g.myOverlays {
		if o == overlay {
			return true
		}
	}
	return false
}

func (g *Game) isMyAccount(account common.Address) bool {
	for _, a := range g.myAccounts {
		if a == account {
			return true
		}
	}
	return false
}

func (g *Game) bindAccount(p *Player, account common.Address) {
	if p.account != (common.Address{}) || account == (common.Address{}) {
		return
	}
	p.account = account
	// 高亮 overlay 的账户也一并高亮
	if g.isMyOverlay(p.overlay) && !g.isMyAccount(account) {
		g.myAccounts = append(g.myAccounts, account)
	}
}

// assignLines 高亮的排在前面，组内按创建顺序
func (g *Game) assignLines() {
	line := 0
	for _, p := range g.order {
		if g.isMyOverlay(p.overlay) {
			p.setLine(line)
			line++
		}
	}
	for _, p := range g.order {
		if !g.isMyOverlay(p.overlay) {
			p.setLine(line)
			line++
		}
	}
}

func (g *Game) getOrCreatePlayer(overlay common.Hash, account common.Address, block *BlockDetails) *Player {
	if p := g.lookupPlayer(overlay); p != nil {
		g.bindAccount(p, account)
		return p
	}

	p := newPlayer(g, overlay, common.Address{}, block, len(g.order))
	g.players.ReplaceOrInsert(p)
	g.order = append(g.order, p)
	g.bindAccount(p, account)
	p.render(true)
	g.assignLines()
	monitor.Players.Set(float64(len(g.order)))
	return p
}

// getOrCreateRound 新的一轮开始时没有人在玩
func (g *Game) getOrCreateRound(id uint64, block BlockDetails) *Round {
	if r := g.lookupRound(id); r != nil {
		return r
	}
	for _, p := range g.order {
		p.notPlaying()
	}
	r := newRound(g, id, block)
	g.rounds.ReplaceOrInsert(r)
	monitor.Rounds.Set(float64(g.rounds.Len()))
	return r
}

// finalizeRound 指针离开某轮时调用
func (g *Game) finalizeRound(id uint64) {
	r := g.lookupRound(id)
	if r == nil {
		g.log.Warn("previous round not found", zap.Uint64("round", id))
		return
	}
	for _, o := range r.players {
		if p := g.lookupPlayer(o); p != nil {
			p.notPlaying()
		}
	}
	if r.claim == nil {
		r.lastBlock = g.lastBlock
		r.unclaimed = true
	}
	r.render()

	g.publisher.Publish(event.RoundClosedEvent{
		Round:     r.id,
		Commits:   r.commits,
		Reveals:   r.reveals,
		Claimed:   r.claim != nil,
		Unclaimed: r.unclaimed,
		LastBlock: r.lastBlock.Number,
		Timestamp: r.lastBlock.Timestamp,
	})
}

func (g *Game) anchorString(anchor common.Hash) string {
	depth := int(g.runningDepth)
	if depth == 0 {
		depth = 16
	}
	s := format.Anchor(anchor.Hex(), depth)
	if len(g.myOverlays) > 0 && g.isMyNeighborhood(anchor, depth) {
		s += "*"
	}
	return s
}

// --- 事件入口

// NewBlock 推进轮次指针并返回当前轮/阶段的状态行
func (g *Game) NewBlock(block BlockDetails, anchor *common.Hash) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	bpr := g.params.BlocksPerRound
	roundNo := g.RoundOf(block.Number)
	switch {
	case !g.started:
		g.started = true
		g.currentRound = roundNo
	case roundNo > g.currentRound:
		g.finalizeRound(g.currentRound)
		g.currentRound = roundNo
	}
	monitor.CurrentRound.Set(float64(g.currentRound))

	round := g.getOrCreateRound(roundNo, block)
	g.lastBlock = block

	offset := block.Number % bpr
	leftInRound := bpr - offset - 1
	commitEnd := g.params.CommitPhaseBlocks
	revealEnd := commitEnd + g.params.RevealPhaseBlocks

	var (
		phase           Phase
		length, elapsed uint64
	)
	switch {
	case offset < commitEnd:
		phase, length, elapsed = PhaseCommit, commitEnd, offset+1
		round.setAnchor(anchor)
	case offset < revealEnd:
		phase, length, elapsed = PhaseReveal, g.params.RevealPhaseBlocks, offset-commitEnd+1
		round.setAnchor(anchor)
	default:
		phase, length, elapsed = PhaseClaim, bpr-revealEnd, offset-revealEnd+1
	}
	remaining := length - elapsed
	percent := elapsed * 100 / length

	line := g.roundString(block.Number)
	if leftInRound > 0 {
		line += fmt.Sprintf("+%d", leftInRound)
	}
	if round.anchor != nil {
		line += " " + g.anchorString(*round.anchor)
	}
	if phase == PhaseClaim && anchor != nil {
		if round.anchor == nil {
			line += " next"
		}
		line += "->" + g.anchorString(*anchor)
	}
	line += fmt.Sprintf(" %d%% of %s", percent, phase)
	if remaining != leftInRound {
		line += fmt.Sprintf(" +%d blocks", remaining)
	}
	return line
}

func (g *Game) Commit(overlay common.Hash, account common.Address, block BlockDetails) {
	g.mu.Lock()
	defer g.mu.Unlock()

	round := g.getOrCreateRound(g.RoundOf(block.Number), block)
	round.lastBlock = block

	p := g.getOrCreatePlayer(overlay, account, &block)
	p.commit(block)

	round.commits++
	round.players = append(round.players, overlay)

	g.log.Debug("commit",
		zap.String("round", g.roundString(block.Number)),
		zap.String("overlay", overlay.Hex()))
	round.render()
}

// Reveal 深度冲突时记录日志并丢弃整条 reveal
func (g *Game) Reveal(ev RevealEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	roundNo := g.RoundOf(ev.Block.Number)
	round := g.getOrCreateRound(roundNo, ev.Block)

	if err := round.addHash(ev.Hash, ev.Depth, g.isMyOverlay(ev.Overlay)); err != nil {
		monitor.DepthConflicts.Inc()
		g.log.Warn("reveal dropped",
			zap.String("round", g.roundString(ev.Block.Number)),
			zap.String("overlay", ev.Overlay.Hex()),
			zap.Error(err))
		g.message(fmt.Sprintf("%s reveal %s dropped: %v", g.roundString(ev.Block.Number), format.Overlay(ev.Overlay.Hex()), err), "reveal")
		return
	}
	round.lastBlock = ev.Block

	p := g.getOrCreatePlayer(ev.Overlay, ev.Account, &ev.Block)
	p.reveal(ev.Block, roundNo, ev.Hash, ev.Depth, ev.Stake, ev.StakeDensity)

	round.reveals++
	if !round.hasPlayer(ev.Overlay) {
		round.players = append(round.players, ev.Overlay)
	}
	g.runningDepth = ev.Depth

	g.log.Debug("reveal",
		zap.String("round", g.roundString(ev.Block.Number)),
		zap.String("overlay", ev.Overlay.Hex()),
		zap.Uint8("depth", ev.Depth),
		zap.String("hash", ev.Hash.Hex()))
	round.render()
}

// Claim 结算一轮: 奖励、冻结、罚没；重复的 claim 被忽略
func (g *Game) Claim(ev ClaimEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	block := ev.Block
	round := g.getOrCreateRound(g.RoundOf(block.Number), block)
	if round.claim != nil {
		err := fmt.Errorf("%w: round %d", errno.ErrDuplicateClaim, round.id)
		g.log.Warn("claim ignored", zap.String("overlay", ev.Winner.Overlay.Hex()), zap.Error(err))
		g.message(err.Error(), "claim")
		return
	}
	round.lastBlock = block

	amount := ev.Amount
	if amount == nil {
		amount = new(big.Int)
	}

	winner := g.getOrCreatePlayer(ev.Winner.Overlay, ev.Account, &block)
	winner.claim(block, amount)

	// 冻结/罚没只作用于已知玩家
	for _, f := range ev.Freezes {
		if p := g.lookupPlayer(f.Overlay); p != nil {
			p.freeze(block, block.Number+f.NumBlocks)
		}
	}
	for _, s := range ev.Slashes {
		if p := g.lookupPlayer(s.Overlay); p != nil {
			p.slash(block, s.Amount)
		}
	}

	round.claim = &Claim{
		Overlay: ev.Winner.Overlay,
		Account: ev.Account,
		Truth:   ev.Winner.Hash,
		Depth:   ev.Winner.Depth,
		Amount:  new(big.Int).Set(amount),
		Block:   block.Number,
	}
	round.freezes = len(ev.Freezes)
	round.slashes = len(ev.Slashes)

	bzz, _ := format.ToBZZ(amount).Float64()
	monitor.Claims.Inc()
	monitor.ClaimAmountBZZ.Add(bzz)

	g.publisher.Publish(event.ClaimRecordedEvent{
		Round:     round.id,
		Overlay:   ev.Winner.Overlay.Hex(),
		Account:   ev.Account.Hex(),
		Truth:     ev.Winner.Hash.Hex(),
		Depth:     ev.Winner.Depth,
		Amount:    format.ToBZZ(amount).String(),
		Freezes:   round.freezes,
		Slashes:   round.slashes,
		Block:     block.Number,
		Timestamp: block.Timestamp,
	})

	g.log.Info("claim",
		zap.String("round", g.roundString(block.Number)),
		zap.String("overlay", ev.Winner.Overlay.Hex()),
		zap.Uint8("depth", ev.Winner.Depth),
		zap.String("amount", format.BZZ(amount)))
	round.render()
}

func (g *Game) StakeUpdated(overlay common.Hash, account common.Address, amount *big.Int, block BlockDetails) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if amount == nil {
		amount = new(big.Int)
	}
	p := g.getOrCreatePlayer(overlay, account, &block)
	p.updateStake(block, amount)
	g.publishStake(p, "update", amount, block)
}

func (g *Game) StakeSlashed(overlay common.Hash, amount *big.Int, block BlockDetails) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if amount == nil {
		amount = new(big.Int)
	}
	p := g.getOrCreatePlayer(overlay, common.Address{}, &block)
	p.slash(block, amount)
	g.publishStake(p, "slash", amount, block)
}

func (g *Game) publishStake(p *Player, kind string, amount *big.Int, block BlockDetails) {
	ev := event.StakeChangedEvent{
		Overlay:   p.overlay.Hex(),
		Kind:      kind,
		Amount:    format.ToBZZ(amount).String(),
		Stake:     format.ToBZZ(p.stake).String(),
		Block:     block.Number,
		Timestamp: block.Timestamp,
	}
	if p.account != (common.Address{}) {
		ev.Account = p.account.Hex()
	}
	g.publisher.Publish(ev)
}

// --- 高亮

func (g *Game) HighlightOverlay(overlay common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isMyOverlay(overlay) {
		return
	}
	g.myOverlays = append(g.myOverlays, overlay)
	if p := g.lookupPlayer(overlay); p != nil {
		if p.account != (common.Address{}) && !g.isMyAccount(p.account) {
			g.myAccounts = append(g.myAccounts, p.account)
		}
		g.assignLines()
		return
	}
	g.getOrCreatePlayer(overlay, common.Address{}, nil)
}

func (g *Game) HighlightAccount(account common.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isMyAccount(account) {
		g.myAccounts = append(g.myAccounts, account)
	}
}

func (g *Game) IsMyOverlay(overlay common.Hash) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isMyOverlay(overlay)
}

func (g *Game) IsMyAccount(account common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isMyAccount(account)
}

// IsMyNeighborhood 比较 selected 与高亮 overlay 的前 depth 位
func (g *Game) IsMyNeighborhood(selected common.Hash, depth int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isMyNeighborhood(selected, depth)
}

func (g *Game) isMyNeighborhood(selected common.Hash, depth int) bool {
	if depth <= 0 {
		return true
	}
	if depth > MaxNeighborhoodDepth {
		return false
	}
	for _, o := range g.myOverlays {
		if samePrefix(selected, o, depth) {
			return true
		}
	}
	return false
}

func samePrefix(a, b common.Hash, bits int) bool {
	full := bits / 8
	if !bytes.Equal(a[:full], b[:full]) {
		return false
	}
	rest := bits % 8
	if rest == 0 {
		return true
	}
	mask := byte(0xff << (8 - rest))
	return a[full]&mask == b[full]&mask
}

// --- 查询

func (g *Game) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players.Len()
}

func (g *Game) NumRounds() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rounds.Len()
}

func (g *Game) CurrentRound() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentRound
}

func (g *Game) Player(overlay common.Hash) (PlayerView, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p := g.lookupPlayer(overlay)
	if p == nil {
		return PlayerView{}, fmt.Errorf("%w: %s", errno.ErrPlayerNotFound, overlay.Hex())
	}
	return p.view(), nil
}

// Players 按 overlay 排序
func (g *Game) Players() []PlayerView {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]PlayerView, 0, g.players.Len())
	g.players.Ascend(func(p *Player) bool {
		out = append(out, p.view())
		return true
	})
	return out
}

func (g *Game) Round(id uint64) (RoundView, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r := g.lookupRound(id)
	if r == nil {
		return RoundView{}, fmt.Errorf("%w: %d", errno.ErrRoundNotFound, id)
	}
	return r.view(), nil
}

// Rounds 最新的在前，limit <= 0 表示全部
func (g *Game) Rounds(limit int) []RoundView {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []RoundView
	g.rounds.Descend(func(r *Round) bool {
		out = append(out, r.view())
		return limit <= 0 || len(out) < limit
	})
	return out
}

func (g *Game) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Snapshot{
		CurrentRound: g.currentRound,
		Started:      g.started,
		LastBlock:    g.lastBlock.Number,
		RunningDepth: g.runningDepth,
		Players:      g.players.Len(),
		Rounds:       g.rounds.Len(),
		MyOverlays:   []string{},
		MyAccounts:   []string{},
	}
	for _, o := range g.myOverlays {
		s.MyOverlays = append(s.MyOverlays, o.Hex())
	}
	for _, a := range g.myAccounts {
		s.MyAccounts = append(s.MyAccounts, a.Hex())
	}
	return s
}

// IsNotFound 查询接口用于区分 404
func IsNotFound(err error) bool {
	return errors.Is(err, errno.ErrPlayerNotFound) || errors.Is(err, errno.ErrRoundNotFound)
}
