package gas

import (
	"fmt"
	"math/big"
	"strings"

	"si-monitor/pkg/format"
)

// Tracker 固定宽度的 gas 价格变化历史
// v 下降, ^ 上涨, - 不变；变化超过 10% 时用 V / A / =
type Tracker struct {
	maxWidth  int
	history   []byte
	percent   int64
	lastPrice *big.Int
}

func New(maxWidth int) *Tracker {
	if maxWidth <= 0 {
		maxWidth = 1
	}
	return &Tracker{
		maxWidth:  maxWidth,
		history:   []byte(strings.Repeat(".", maxWidth)),
		lastPrice: new(big.Int),
	}
}

// NewSample 第一个样本只记录价格
func (t *Tracker) NewSample(price *big.Int) {
	if price == nil {
		price = new(big.Int)
	}

	t.percent = 0
	if t.lastPrice.Sign() != 0 {
		delta := new(big.Int).Sub(price, t.lastPrice)
		// big.Int.Quo 向零截断
		pct := new(big.Int).Mul(delta, big.NewInt(100))
		pct.Quo(pct, t.lastPrice)
		t.percent = pct.Int64()

		threshold := new(big.Int).Quo(t.lastPrice, big.NewInt(10))
		bigChange := new(big.Int).Abs(delta).Cmp(threshold) > 0

		var sym byte
		switch delta.Sign() {
		case -1:
			sym = pick(bigChange, 'V', 'v')
		case 1:
			sym = pick(bigChange, 'A', '^')
		default:
			sym = pick(bigChange, '=', '-')
		}
		t.history = append(t.history, sym)
		if len(t.history) > t.maxWidth {
			t.history = t.history[len(t.history)-t.maxWidth:]
		}
	}
	t.lastPrice = new(big.Int).Set(price)
}

func pick(cond bool, a, b byte) byte {
	if cond {
		return a
	}
	return b
}

func (t *Tracker) History() string {
	return string(t.history)
}

func (t *Tracker) Percent() int64 {
	return t.percent
}

// LastPrice 格式化后的最近价格
func (t *Tracker) LastPrice() string {
	return format.GasPrice(t.lastPrice)
}

func (t *Tracker) LastPriceWei() *big.Int {
	return new(big.Int).Set(t.lastPrice)
}

// PercentString 超过 trigger 时加 "!"
func (t *Tracker) PercentString(trigger int64) string {
	s := fmt.Sprintf("%d", t.percent)
	if t.percent >= trigger || t.percent <= -trigger {
		s += "!"
	}
	return s
}

// Utilization 区块 gas 使用率，保留两位小数
func Utilization(used, limit uint64) string {
	if limit == 0 {
		return "0.00"
	}
	basis := new(big.Int).Mul(new(big.Int).SetUint64(used), big.NewInt(10000))
	basis.Quo(basis, new(big.Int).SetUint64(limit))
	return fmt.Sprintf("%.2f", float64(basis.Int64())/100)
}
