package format

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BZZ 有 16 位小数
const BZZDecimals = 16

const BZZUnits = "BZZ"

type siScale struct {
	exp    int32
	suffix string
}

var siScales = []siScale{
	{12, "T"},
	{9, "G"},
	{6, "M"},
	{3, "K"},
	{0, ""},
	{-3, "m"},
	{-6, "µ"},
	{-9, "n"},
}

// FormatSI 缩放到最近的 SI 前缀，保留约 3 位有效数字
func FormatSI(d decimal.Decimal, showPlus bool) string {
	if d.IsZero() {
		if showPlus {
			return "+0"
		}
		return "0"
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	} else if showPlus {
		sign = "+"
	}
	v := d.Abs()

	scale := siScales[len(siScales)-1]
	for _, s := range siScales {
		if v.GreaterThanOrEqual(decimal.New(1, s.exp)) {
			scale = s
			break
		}
	}

	q := v.Shift(-scale.exp)
	places := int32(2)
	if q.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		places = 0
	} else if q.GreaterThanOrEqual(decimal.NewFromInt(10)) {
		places = 1
	}
	return sign + q.StringFixed(places) + scale.suffix
}

// ToBZZ 把最小单位换算成 BZZ
func ToBZZ(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -BZZDecimals)
}

// BZZ 带单位的完整格式
func BZZ(amount *big.Int) string {
	return ShortBZZ(amount, false, false)
}

func ShortBZZ(amount *big.Int, showPlus, suppressUnits bool) string {
	s := FormatSI(ToBZZ(amount), showPlus)
	if suppressUnits {
		return s
	}
	return s + " " + BZZUnits
}

// Stake 质押额不带单位
func Stake(amount *big.Int) string {
	return ShortBZZ(amount, false, true)
}

type gasUnit struct {
	below *big.Int
	exp   int32
	units string
}

var gasUnits = []gasUnit{
	{big.NewInt(1), 0, "wei"},
	{big.NewInt(1_000), 0, "wei"},
	{big.NewInt(1_000_000), 3, "kwei"},
	{big.NewInt(1_000_000_000), 6, "mwei"},
}

// GasPrice 选择合适单位，并按数量级截断小数位
func GasPrice(price *big.Int) string {
	if price == nil {
		price = new(big.Int)
	}

	exp, units := int32(9), "gwei"
	for _, u := range gasUnits {
		if price.Cmp(u.below) < 0 {
			exp, units = u.exp, u.units
			break
		}
	}

	n := decimal.NewFromBigInt(price, -exp).String()
	if !strings.Contains(n, ".") {
		n += ".0"
	}
	if dot := strings.Index(n, "."); dot > 0 {
		if dot < 3 {
			if len(n) > 4 {
				n = n[:4]
			}
		} else {
			n = n[:dot]
		}
	}
	return n + " " + units
}
