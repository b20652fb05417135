package contracts

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"si-monitor/pkg/errno"
)

var (
	overlayA = common.HexToHash("0xa0a1000000000000000000000000000000000000000000000000000000000001")
	hashA    = common.HexToHash("0x1111000000000000000000000000000000000000000000000000000000000000")
	ownerA   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	postage  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func packLog(t *testing.T, topic common.Hash, indexed []common.Hash, data []byte) *types.Log {
	t.Helper()
	return &types.Log{Topics: append([]common.Hash{topic}, indexed...), Data: data}
}

func TestDecodeCall(t *testing.T) {
	nonce := common.HexToHash("0x99")

	commit, err := Redistribution.Pack("commit", [32]byte(hashA), [32]byte(overlayA))
	require.NoError(t, err)
	reveal, err := Redistribution.Pack("reveal", [32]byte(overlayA), uint8(7), [32]byte(hashA), [32]byte(nonce))
	require.NoError(t, err)
	claim, err := Redistribution.Pack("claim")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input []byte
		want  Call
	}{
		{"commit", commit, CommitCall{ObfuscatedHash: hashA, Overlay: overlayA}},
		{"reveal", reveal, RevealCall{Overlay: overlayA, Depth: 7, Hash: hashA, RevealNonce: nonce}},
		{"claim", claim, ClaimCall{}},
		{"view function", PackCurrentRoundAnchor(), OtherCall{Method: "currentRoundAnchor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCall(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Name(), got.Name())
		})
	}
}

func TestDecodeCall_NoParse(t *testing.T) {
	commit, _ := Redistribution.Pack("commit", [32]byte(hashA), [32]byte(overlayA))
	inputs := map[string][]byte{
		"empty":          nil,
		"unknown method": {0xde, 0xad, 0xbe, 0xef, 0x00},
		"truncated":      commit[:20],
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCall(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errno.ErrNoParse), "应该是 ErrNoParse: %v", err)
		})
	}
}

func TestDecodeLog_WinnerSelected(t *testing.T) {
	winner := Reveal{
		Owner:        ownerA,
		Overlay:      overlayA,
		Stake:        big.NewInt(1000),
		StakeDensity: big.NewInt(2000),
		Hash:         hashA,
		Depth:        9,
	}
	data, err := Redistribution.Events["WinnerSelected"].Inputs.NonIndexed().Pack(winner)
	require.NoError(t, err)

	ev, ok := DecodeLog(packLog(t, TopicWinnerSelected, nil, data))
	require.True(t, ok)
	ws, ok := ev.(WinnerSelected)
	require.True(t, ok)
	assert.Equal(t, ownerA, ws.Winner.Owner)
	assert.Equal(t, [32]byte(overlayA), ws.Winner.Overlay)
	assert.Equal(t, [32]byte(hashA), ws.Winner.Hash)
	assert.Equal(t, uint8(9), ws.Winner.Depth)
	assert.Equal(t, 0, ws.Winner.Stake.Cmp(big.NewInt(1000)))
}

func TestDecodeLog_StakeRegistry(t *testing.T) {
	updated, err := StakeRegistry.Events["StakeUpdated"].Inputs.NonIndexed().Pack(big.NewInt(500), ownerA, big.NewInt(42))
	require.NoError(t, err)
	ev, ok := DecodeLog(packLog(t, TopicStakeUpdated, []common.Hash{overlayA}, updated))
	require.True(t, ok)
	assert.Equal(t, StakeUpdated{Overlay: overlayA, Amount: big.NewInt(500), Owner: ownerA, LastUpdatedBlock: big.NewInt(42)}, ev)

	// indexed overlay 缺失
	_, ok = DecodeLog(packLog(t, TopicStakeUpdated, nil, updated))
	assert.False(t, ok)

	slashed, err := StakeRegistry.Events["StakeSlashed"].Inputs.Pack([32]byte(overlayA), big.NewInt(7))
	require.NoError(t, err)
	ev, ok = DecodeLog(packLog(t, TopicStakeSlashed, nil, slashed))
	require.True(t, ok)
	assert.Equal(t, StakeSlashed{Overlay: overlayA, Amount: big.NewInt(7)}, ev)

	frozen, err := StakeRegistry.Events["StakeFrozen"].Inputs.Pack([32]byte(overlayA), big.NewInt(152))
	require.NoError(t, err)
	ev, ok = DecodeLog(packLog(t, TopicStakeFrozen, nil, frozen))
	require.True(t, ok)
	assert.Equal(t, StakeFrozen{Overlay: overlayA, Time: big.NewInt(152)}, ev)
}

func TestDecodeLog_Token(t *testing.T) {
	value, err := Token.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(12345))
	require.NoError(t, err)

	ev, ok := DecodeLog(packLog(t, TopicTransfer, []common.Hash{
		common.BytesToHash(postage.Bytes()),
		common.BytesToHash(ownerA.Bytes()),
	}, value))
	require.True(t, ok)
	assert.Equal(t, Transfer{From: postage, To: ownerA, Value: big.NewInt(12345)}, ev)

	ev, ok = DecodeLog(packLog(t, TopicApproval, []common.Hash{
		common.BytesToHash(ownerA.Bytes()),
		common.BytesToHash(postage.Bytes()),
	}, value))
	require.True(t, ok)
	assert.Equal(t, "Approval", ev.EventName())
}

func TestDecodeLog_Unknown(t *testing.T) {
	_, ok := DecodeLog(&types.Log{})
	assert.False(t, ok)
	_, ok = DecodeLog(packLog(t, common.HexToHash("0x1234"), nil, nil))
	assert.False(t, ok)
	// 数据长度不够
	_, ok = DecodeLog(packLog(t, TopicCountCommits, nil, []byte{1, 2}))
	assert.False(t, ok)
}

func TestViewCalls(t *testing.T) {
	anchor := common.HexToHash("0xabcdef")
	out, err := Redistribution.Methods["currentRoundAnchor"].Outputs.Pack([32]byte(anchor))
	require.NoError(t, err)
	got, err := UnpackCurrentRoundAnchor(out)
	require.NoError(t, err)
	assert.Equal(t, anchor, got)

	out, err = Redistribution.Methods["Stakes"].Outputs.Pack(ownerA)
	require.NoError(t, err)
	addr, err := UnpackAddress("Stakes", out)
	require.NoError(t, err)
	assert.Equal(t, ownerA, addr)

	assert.Len(t, PackStakes(), 4)
	assert.Len(t, PackPostageContract(), 4)
	assert.Equal(t, Redistribution.Methods["OracleContract"].ID, PackOracleContract())

	_, err = UnpackCurrentRoundAnchor(nil)
	assert.Error(t, err)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, [][]common.Hash{{TopicStakeUpdated, TopicStakeSlashed}}, StakeTopics())
	assert.Len(t, TokenTopics()[0], 2)
	assert.NotEqual(t, common.Hash{}, TopicWinnerSelected)
}
