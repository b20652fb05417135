package game

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"si-monitor/pkg/errno"
	"si-monitor/pkg/format"
)

type Phase string

const (
	PhaseCommit Phase = "commit"
	PhaseReveal Phase = "reveal"
	PhaseClaim  Phase = "claim"
)

// RoundHash 某个 reveal hash 的统计
type RoundHash struct {
	Count     int
	Depth     uint8
	Highlight bool
}

// Claim 每轮最多一个
type Claim struct {
	Overlay common.Hash
	Account common.Address
	Truth   common.Hash
	Depth   uint8
	Amount  *big.Int
	Block   uint64
}

type Round struct {
	g *Game

	id        uint64
	lastBlock BlockDetails

	commits int
	reveals int
	slashes int
	freezes int

	players   []common.Hash // commit/reveal 顺序，允许重复
	hashes    map[common.Hash]*RoundHash
	hashOrder []common.Hash

	anchor    *common.Hash
	claim     *Claim
	unclaimed bool
	rendered  bool
}

func newRound(g *Game, id uint64, block BlockDetails) *Round {
	return &Round{
		g:         g,
		id:        id,
		lastBlock: block,
		hashes:    make(map[common.Hash]*RoundHash),
	}
}

func (r *Round) ID() uint64 { return r.id }

// addHash 同一个 hash 深度不一致时拒绝，不做任何修改
func (r *Round) addHash(hash common.Hash, depth uint8, highlight bool) error {
	if h, ok := r.hashes[hash]; ok {
		if h.Depth != depth {
			return fmt.Errorf("%w: %s depth %d != %d", errno.ErrDepthConflict, format.ShortID(hash.Hex(), 8), h.Depth, depth)
		}
		h.Count++
		if highlight {
			h.Highlight = true
		}
		return nil
	}
	r.hashes[hash] = &RoundHash{Count: 1, Depth: depth, Highlight: highlight}
	r.hashOrder = append(r.hashOrder, hash)
	return nil
}

func (r *Round) hasPlayer(overlay common.Hash) bool {
	for _, o := range r.players {
		if o == overlay {
			return true
		}
	}
	return false
}

func (r *Round) setAnchor(anchor *common.Hash) {
	if anchor != nil {
		a := *anchor
		r.anchor = &a
	}
}

// Format 轮次列表中的一行
func (r *Round) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d-%d", r.g.roundString(r.lastBlock.Number), r.commits, r.reveals)
	if r.slashes > 0 {
		fmt.Fprintf(&sb, "=S%d", r.slashes)
	}

	// 所有 hash 深度一致时不显示深度
	sameDepth := true
	for i, h := range r.hashOrder {
		if i > 0 && r.hashes[h].Depth != r.hashes[r.hashOrder[0]].Depth {
			sameDepth = false
			break
		}
	}

	for i, h := range r.hashOrder {
		rh := r.hashes[h]
		if i > 0 {
			sb.WriteString("+")
		} else {
			sb.WriteString(" ")
		}
		n := fmt.Sprintf("%d", rh.Count)
		if !sameDepth {
			n += fmt.Sprintf("^%d", rh.Depth)
		}
		if r.claim != nil && r.claim.Truth == h {
			n = "(" + n + ")"
		}
		sb.WriteString(n)
	}

	if r.freezes > 0 {
		fmt.Fprintf(&sb, "=F%d", r.freezes)
	}
	if r.claim != nil {
		o := format.Overlay(r.claim.Overlay.Hex())
		if r.g.isMyOverlay(r.claim.Overlay) {
			o = "*" + o
		}
		fmt.Fprintf(&sb, " %s ^%d %s", o, r.claim.Depth, format.ShortBZZ(r.claim.Amount, true, true))
	} else if r.unclaimed {
		sb.WriteString(" UNCLAIMED")
	}
	return sb.String()
}

// FormatPlayers 每个参与者一行，首行留空给状态行
func (r *Round) FormatPlayers() string {
	var sb strings.Builder
	for _, o := range r.players {
		sb.WriteString("\n")
		if p := r.g.lookupPlayer(o); p != nil {
			sb.WriteString(p.FormatRound(r.id))
		}
	}
	return sb.String()
}

// render 首次插入，之后原地更新
func (r *Round) render() {
	d := r.g.display
	if r.rendered {
		d.UpdateRound(0, r.Format(), r.lastBlock.Timestamp)
	} else {
		r.rendered = true
		d.InsertRound(r.Format(), r.lastBlock.Timestamp)
	}
	d.RoundPlayers(fmt.Sprintf("Round %d players", r.id), r.FormatPlayers())
}

func (r *Round) view() RoundView {
	v := RoundView{
		ID:        r.id,
		LastBlock: r.lastBlock.Number,
		Commits:   r.commits,
		Reveals:   r.reveals,
		Slashes:   r.slashes,
		Freezes:   r.freezes,
		Unclaimed: r.unclaimed,
		Line:      r.Format(),
	}
	for _, o := range r.players {
		v.Players = append(v.Players, o.Hex())
	}
	for _, h := range r.hashOrder {
		rh := r.hashes[h]
		v.Hashes = append(v.Hashes, HashView{Hash: h.Hex(), Count: rh.Count, Depth: rh.Depth, Highlight: rh.Highlight})
	}
	if r.anchor != nil {
		v.Anchor = r.anchor.Hex()
	}
	if r.claim != nil {
		c := &ClaimView{
			Overlay: r.claim.Overlay.Hex(),
			Truth:   r.claim.Truth.Hex(),
			Depth:   r.claim.Depth,
			Amount:  format.ToBZZ(r.claim.Amount).String(),
			Block:   r.claim.Block,
		}
		if r.claim.Account != (common.Address{}) {
			c.Account = r.claim.Account.Hex()
		}
		v.Claim = c
	}
	return v
}
