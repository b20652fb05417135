package game

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"si-monitor/pkg/format"
)

type playerReveal struct {
	hash         common.Hash
	depth        uint8
	stakeDensity *big.Int
}

// Player 以 overlay 为键的参与者状态，只在 Game 的锁内修改
type Player struct {
	g *Game

	overlay common.Hash
	account common.Address

	amount  *big.Int // 累计领取
	lastWin *big.Int

	stake          *big.Int // nil 表示未知
	stakeSlashed   *big.Int
	slashUncharged *big.Int // 罚没超出已知质押的部分
	stakeChanges   int

	line       int
	playing    bool
	lastBlock  *BlockDetails
	lastAction string

	playCount   int
	winCount    int
	frozenUntil uint64 // 0 = 未冻结
	freezeCount int
	slashCount  int

	reveals map[uint64]playerReveal
}

func newPlayer(g *Game, overlay common.Hash, account common.Address, block *BlockDetails, line int) *Player {
	p := &Player{
		g:       g,
		overlay: overlay,
		account: account,
		amount:  new(big.Int),
		line:    line,
		reveals: make(map[uint64]playerReveal),
	}
	if block != nil {
		b := *block
		p.lastBlock = &b
	}
	return p
}

func (p *Player) Overlay() common.Hash    { return p.overlay }
func (p *Player) Account() common.Address { return p.account }

func (p *Player) overlayString() string {
	s := format.Overlay(p.overlay.Hex())
	if p.g.isMyOverlay(p.overlay) {
		s = "*" + s
	}
	return s
}

func (p *Player) touch(block BlockDetails, action string) {
	b := block
	p.lastBlock = &b
	p.lastAction = action
}

// Format 玩家列表中的一行
func (p *Player) Format() string {
	var sb strings.Builder
	o := p.overlayString()
	if p.playing {
		o = "[" + o + "]"
	}
	sb.WriteString(o)
	if p.playCount > 0 {
		fmt.Fprintf(&sb, " %d/%d", p.winCount, p.playCount)
	}
	if p.freezeCount > 0 {
		fmt.Fprintf(&sb, " F%d", p.freezeCount)
	}
	if p.slashCount > 0 {
		fmt.Fprintf(&sb, " S%d", p.slashCount)
	}
	if p.amount.Sign() > 0 {
		sb.WriteString(" " + format.BZZ(p.amount))
		if p.lastWin != nil && p.lastWin.Sign() != 0 {
			sb.WriteString(" (" + format.ShortBZZ(p.lastWin, true, true) + ")")
		}
	}
	if p.frozenUntil > 0 {
		fmt.Fprintf(&sb, " ~%d", p.frozenUntil)
	}
	if p.stake != nil {
		sb.WriteString(" " + format.Stake(p.stake))
		if p.stakeChanges > 1 {
			fmt.Fprintf(&sb, "(%d)", p.stakeChanges)
		}
	}
	if p.stakeSlashed != nil && p.stakeSlashed.Sign() > 0 {
		sb.WriteString(" -" + format.Stake(p.stakeSlashed))
	}
	return sb.String()
}

// FormatRound 当前轮参与者面板中的一行
func (p *Player) FormatRound(round uint64) string {
	var ts int64
	t := p.overlayString()
	if p.lastBlock != nil {
		ts = p.lastBlock.Timestamp
		t = p.g.roundString(p.lastBlock.Number) + " " + t
	}
	if p.lastAction != "" {
		t += " " + p.lastAction
	}
	if r, ok := p.reveals[round]; ok {
		t += fmt.Sprintf(" ^%d %s", r.depth, format.ShortID(r.hash.Hex(), 6))
		if r.stakeDensity != nil {
			t += " eff " + format.Stake(r.stakeDensity)
			if p.stake != nil {
				t += fmt.Sprintf("<=%s*2^%d", format.Stake(p.stake), r.depth)
			}
		} else if p.stake != nil {
			t += " " + format.Stake(p.stake)
		}
	} else if p.stake != nil {
		t += " " + format.Stake(p.stake)
	}
	return format.LocalTime(ts) + " " + t
}

func (p *Player) render(isNew bool) {
	var ts int64
	if p.lastBlock != nil {
		ts = p.lastBlock.Timestamp
	}
	p.g.display.PlayerLine(p.line, p.Format(), ts, isNew)
}

func (p *Player) setLine(line int) {
	p.line = line
	p.render(false)
}

func (p *Player) notPlaying() {
	// 状态没变就不重绘
	if p.playing {
		p.playing = false
		p.render(false)
	}
}

func (p *Player) commit(block BlockDetails) {
	p.touch(block, "commit")
	p.playing = true
	p.playCount++

	// 冻结到期后解冻
	if p.frozenUntil > 0 && block.Number >= p.frozenUntil {
		p.frozenUntil = 0
	}
	p.render(false)
}

func (p *Player) reveal(block BlockDetails, round uint64, hash common.Hash, depth uint8, stake, stakeDensity *big.Int) {
	p.touch(block, "reveal")
	p.playing = true
	p.reveals[round] = playerReveal{hash: hash, depth: depth, stakeDensity: copyInt(stakeDensity)}
	if stake != nil {
		p.stake = copyInt(stake)
	}
	p.render(false)
}

func (p *Player) claim(block BlockDetails, amount *big.Int) {
	p.touch(block, "claim")
	p.playing = true
	if amount != nil {
		p.amount.Add(p.amount, amount)
		p.lastWin = copyInt(amount)
	}
	p.winCount++
	p.render(false)
}

func (p *Player) freeze(block BlockDetails, until uint64) {
	p.touch(block, "freeze")
	p.frozenUntil = until
	p.freezeCount++

	elapsed := until - block.Number
	p.g.message(fmt.Sprintf("%s Frozen for %d blocks or %.2f rounds @%d",
		p.overlayString(), elapsed, float64(elapsed)/float64(p.g.params.BlocksPerRound), block.Number), "")
	p.render(false)
}

func (p *Player) updateStake(block BlockDetails, amount *big.Int) {
	p.touch(block, "stake")
	p.stake = copyInt(amount)
	p.stakeChanges++

	p.g.message(fmt.Sprintf("%s Stake Updated %s (%d) @%d",
		p.overlayString(), format.BZZ(p.stake), p.stakeChanges, block.Number), "")
	p.render(false)
}

// slash 质押不足时只扣到 0，差额记入 slashUncharged
func (p *Player) slash(block BlockDetails, amount *big.Int) {
	p.touch(block, "slash")
	if p.stakeSlashed == nil {
		p.stakeSlashed = new(big.Int)
	}
	if p.slashUncharged == nil {
		p.slashUncharged = new(big.Int)
	}

	switch {
	case p.stake == nil:
		p.stake = new(big.Int)
		p.slashUncharged.Add(p.slashUncharged, amount)
	case p.stake.Cmp(amount) >= 0:
		p.stake = new(big.Int).Sub(p.stake, amount)
		p.stakeSlashed.Add(p.stakeSlashed, amount)
	default:
		deficit := new(big.Int).Sub(amount, p.stake)
		p.stakeSlashed.Add(p.stakeSlashed, p.stake)
		p.slashUncharged.Add(p.slashUncharged, deficit)
		p.stake = new(big.Int)
	}
	p.slashCount++
	p.stakeChanges++

	p.g.message(fmt.Sprintf("%s Slashed %s now %s (%d) -%s @%d",
		p.overlayString(), format.BZZ(amount), format.BZZ(p.stake), p.stakeChanges,
		format.BZZ(p.stakeSlashed), block.Number), "")
	p.render(false)
}

func (p *Player) view() PlayerView {
	v := PlayerView{
		Overlay:     p.overlay.Hex(),
		Line:        p.line,
		Playing:     p.playing,
		LastAction:  p.lastAction,
		PlayCount:   p.playCount,
		WinCount:    p.winCount,
		FrozenUntil: p.frozenUntil,
		FreezeCount: p.freezeCount,
		SlashCount:  p.slashCount,
		StakeCount:  p.stakeChanges,
		Amount:      format.ToBZZ(p.amount).String(),
		Highlighted: p.g.isMyOverlay(p.overlay),
	}
	if p.account != (common.Address{}) {
		v.Account = p.account.Hex()
	}
	if p.stake != nil {
		v.Stake = format.ToBZZ(p.stake).String()
	}
	if p.stakeSlashed != nil {
		v.Slashed = format.ToBZZ(p.stakeSlashed).String()
	}
	if p.slashUncharged != nil && p.slashUncharged.Sign() > 0 {
		v.SlashUncharged = format.ToBZZ(p.slashUncharged).String()
	}
	if p.lastBlock != nil {
		v.LastBlock = p.lastBlock.Number
	}
	for round, r := range p.reveals {
		v.Reveals = append(v.Reveals, RevealView{Round: round, Hash: r.hash.Hex(), Depth: r.depth})
	}
	sortReveals(v.Reveals)
	return v
}

func copyInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
