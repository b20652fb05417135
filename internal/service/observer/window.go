package observer

import (
	"errors"
	"fmt"
)

// DefaultPreloadRounds 没有指定起点时回放的轮数
const DefaultPreloadRounds = 4

// Selector 回放起点，Block / Round / SingleRound 至多设置一个 (nil 表示未设置)
// 三者都未设置时回放最近 Rounds 轮，Rounds 为 0 时取 DefaultPreloadRounds
type Selector struct {
	Rounds      uint64
	Block       *uint64
	Round       *uint64
	SingleRound *uint64
}

// Window 回放区间，End 为 0 表示回放完成后继续实时跟踪
type Window struct {
	Start uint64
	End   uint64
}

func (w Window) Live() bool {
	return w.End == 0
}

func (w Window) String() string {
	if w.Live() {
		return fmt.Sprintf("[%d, tip] + live", w.Start)
	}
	return fmt.Sprintf("[%d, %d]", w.Start, w.End)
}

// ResolveWindow 根据选择器和当前高度计算回放区间，起点对齐到轮次边界
func ResolveWindow(sel Selector, blocksPerRound, tip uint64) (Window, error) {
	if blocksPerRound == 0 {
		return Window{}, errors.New("blocks per round must be positive")
	}

	set := 0
	for _, v := range []*uint64{sel.Block, sel.Round, sel.SingleRound} {
		if v != nil {
			set++
		}
	}
	if set > 1 {
		return Window{}, errors.New("block, round and single round are mutually exclusive")
	}

	var w Window
	switch {
	case sel.SingleRound != nil:
		w.Start = *sel.SingleRound * blocksPerRound
		w.End = w.Start + blocksPerRound - 1
	case sel.Block != nil:
		w.Start = *sel.Block
	case sel.Round != nil:
		w.Start = *sel.Round * blocksPerRound
	default:
		rounds := sel.Rounds
		if rounds == 0 {
			rounds = DefaultPreloadRounds
		}
		back := rounds * blocksPerRound
		if back < tip {
			w.Start = tip - back
		}
	}

	if w.Start > tip {
		return Window{}, fmt.Errorf("start block %d is beyond chain tip %d", w.Start, tip)
	}
	w.Start = w.Start / blocksPerRound * blocksPerRound
	return w, nil
}
