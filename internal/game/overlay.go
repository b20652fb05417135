package game

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseOverlay 接受带或不带 0x 的 64 位十六进制
func ParseOverlay(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("overlay %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("overlay %q: want %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// NormalizeOverlay 统一为 0x 前缀的小写形式
func NormalizeOverlay(s string) (string, error) {
	h, err := ParseOverlay(s)
	if err != nil {
		return "", err
	}
	return strings.ToLower(h.Hex()), nil
}
