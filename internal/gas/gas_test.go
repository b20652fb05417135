package gas

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_FirstSampleOnlyRecords(t *testing.T) {
	g := New(4)
	assert.Equal(t, "....", g.History())

	g.NewSample(big.NewInt(100))
	assert.Equal(t, "....", g.History())
	assert.Equal(t, int64(0), g.Percent())
	assert.Equal(t, "100 wei", g.LastPrice())
}

func TestTracker_Symbols(t *testing.T) {
	g := New(8)
	g.NewSample(big.NewInt(100))

	g.NewSample(big.NewInt(105)) // +5%
	assert.Equal(t, int64(5), g.Percent())
	g.NewSample(big.NewInt(150)) // 大幅上涨
	assert.Equal(t, int64(42), g.Percent())
	g.NewSample(big.NewInt(150))
	g.NewSample(big.NewInt(149))
	g.NewSample(big.NewInt(100)) // 大幅下跌
	assert.Equal(t, int64(-32), g.Percent())

	assert.Equal(t, "...^A-vV", g.History())
}

func TestTracker_KeepsMaxWidth(t *testing.T) {
	g := New(3)
	g.NewSample(big.NewInt(100))
	for i := 0; i < 5; i++ {
		g.NewSample(big.NewInt(100))
	}
	assert.Equal(t, "---", g.History())
	assert.Len(t, g.History(), 3)
}

func TestTracker_PercentString(t *testing.T) {
	g := New(3)
	g.NewSample(big.NewInt(100))
	g.NewSample(big.NewInt(120))
	assert.Equal(t, "20!", g.PercentString(10))
	assert.Equal(t, "20", g.PercentString(50))
}

func TestUtilization(t *testing.T) {
	assert.Equal(t, "50.00", Utilization(15_000_000, 30_000_000))
	assert.Equal(t, "33.33", Utilization(1, 3))
	assert.Equal(t, "0.00", Utilization(1, 0))
}
