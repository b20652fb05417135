package format

import (
	"strings"
)

func strip0x(id string) string {
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		return id[2:]
	}
	return id
}

// ShortID 保留首尾各 n 个字符，中间用 ".." 连接
func ShortID(id string, n int) string {
	id = strip0x(id)
	if len(id) <= n*2 {
		return id
	}
	return id[:n] + ".." + id[len(id)-n:]
}

// LeftID 只保留左侧 n 个字符
func LeftID(id string, n int, ellipses bool) string {
	id = strip0x(id)
	if len(id) <= n {
		return id
	}
	if ellipses {
		if n < 3 {
			return id[:n]
		}
		return id[:n-3] + "..."
	}
	return id[:n]
}

// Overlay overlay 的展示形式 (12 字符)
func Overlay(overlay string) string {
	return LeftID(overlay, 12, true)
}

// Anchor depth 是前导 bit 数，每个 hex 字符 4 bit
func Anchor(anchor string, depth int) string {
	if depth < 0 {
		depth = 0
	}
	return LeftID(anchor, (depth+3)/4, false)
}

// Account 已知合约显示名字，否则截断地址
func Account(addr string, names map[string]string) string {
	if name, ok := names[strings.ToLower(addr)]; ok {
		return name
	}
	return LeftID(addr, 12, true)
}
