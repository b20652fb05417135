package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(n uint64) *uint64 { return &n }

func TestResolveWindow(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		tip  uint64
		want Window
	}{
		{"default rounds", Selector{}, 1000, Window{Start: 304}},
		{"rounds back", Selector{Rounds: 2}, 1000, Window{Start: 608}},
		{"rounds beyond genesis", Selector{Rounds: 100}, 1000, Window{Start: 0}},
		{"block aligned down", Selector{Block: u64(500)}, 1000, Window{Start: 456}},
		{"block zero", Selector{Block: u64(0)}, 1000, Window{Start: 0}},
		{"round", Selector{Round: u64(3)}, 1000, Window{Start: 456}},
		{"round zero", Selector{Round: u64(0), Rounds: 2}, 1000, Window{Start: 0}},
		{"single round", Selector{SingleRound: u64(3)}, 1000, Window{Start: 456, End: 607}},
		{"single round zero", Selector{SingleRound: u64(0)}, 1000, Window{Start: 0, End: 151}},
		{"single round past tip", Selector{SingleRound: u64(6)}, 1000, Window{Start: 912, End: 1063}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWindow(tt.sel, 152, tt.tip)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveWindow_Errors(t *testing.T) {
	_, err := ResolveWindow(Selector{Block: u64(10), Round: u64(1)}, 152, 1000)
	assert.Error(t, err)

	_, err = ResolveWindow(Selector{Round: u64(0), SingleRound: u64(0)}, 152, 1000)
	assert.Error(t, err)

	_, err = ResolveWindow(Selector{Block: u64(2000)}, 152, 1000)
	assert.Error(t, err)

	_, err = ResolveWindow(Selector{}, 0, 1000)
	assert.Error(t, err)
}

func TestWindow_Live(t *testing.T) {
	assert.True(t, Window{Start: 10}.Live())
	assert.False(t, Window{Start: 10, End: 20}.Live())
	assert.Equal(t, "[10, 20]", Window{Start: 10, End: 20}.String())
	assert.Equal(t, "[10, tip] + live", Window{Start: 10}.String())
}
