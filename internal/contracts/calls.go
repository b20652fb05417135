package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"si-monitor/pkg/errno"
)

// Call 解码后的 Redistribution 调用
type Call interface {
	Name() string
}

type CommitCall struct {
	ObfuscatedHash common.Hash
	Overlay        common.Hash
}

type RevealCall struct {
	Overlay     common.Hash
	Depth       uint8
	Hash        common.Hash
	RevealNonce common.Hash
}

type ClaimCall struct{}

// OtherCall ABI 中存在但不参与游戏的函数
type OtherCall struct {
	Method string
}

func (CommitCall) Name() string  { return "commit" }
func (RevealCall) Name() string  { return "reveal" }
func (ClaimCall) Name() string   { return "claim" }
func (c OtherCall) Name() string { return c.Method }

// DecodeCall 按 Redistribution ABI 解码 calldata，失败返回 ErrNoParse
func DecodeCall(input []byte) (Call, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("%w: calldata too short (%d bytes)", errno.ErrNoParse, len(input))
	}
	method, err := Redistribution.MethodById(input[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrNoParse, err)
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errno.ErrNoParse, method.Name, err)
	}

	switch method.Name {
	case "commit":
		return CommitCall{
			ObfuscatedHash: common.Hash(args[0].([32]byte)),
			Overlay:        common.Hash(args[1].([32]byte)),
		}, nil
	case "reveal":
		return RevealCall{
			Overlay:     common.Hash(args[0].([32]byte)),
			Depth:       args[1].(uint8),
			Hash:        common.Hash(args[2].([32]byte)),
			RevealNonce: common.Hash(args[3].([32]byte)),
		}, nil
	case "claim":
		return ClaimCall{}, nil
	default:
		return OtherCall{Method: method.Name}, nil
	}
}

// --- view 调用

func PackCurrentRoundAnchor() []byte {
	data, _ := Redistribution.Pack("currentRoundAnchor")
	return data
}

func UnpackCurrentRoundAnchor(data []byte) (common.Hash, error) {
	out, err := Redistribution.Unpack("currentRoundAnchor", data)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(out[0].([32]byte)), nil
}

func PackStakes() []byte {
	data, _ := Redistribution.Pack("Stakes")
	return data
}

func PackPostageContract() []byte {
	data, _ := Redistribution.Pack("PostageContract")
	return data
}

func PackOracleContract() []byte {
	data, _ := Redistribution.Pack("OracleContract")
	return data
}

// UnpackAddress 解析 Stakes / PostageContract / OracleContract 的返回值
func UnpackAddress(method string, data []byte) (common.Address, error) {
	out, err := Redistribution.Unpack(method, data)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}
