package format

import (
	"fmt"
	"time"
)

func ChainName(id uint64) string {
	switch id {
	case 1:
		return "mainnet"
	case 5:
		return "goerli"
	case 11155111:
		return "sepolia"
	case 2018:
		return "dev"
	case 61:
		return "classic"
	case 63:
		return "ordor"
	case 6:
		return "kotti"
	case 212:
		return "astor"
	case 100:
		return "gnosis"
	default:
		return fmt.Sprintf("chain %d", id)
	}
}

// BlockDelta 出块间隔，超过 1 倍出块时间加 "!"，超过 2 倍加 "!!"
func BlockDelta(seconds int64, secondsPerBlock uint64) string {
	s := fmt.Sprintf("%ds", seconds)
	spb := int64(secondsPerBlock)
	switch {
	case seconds > spb*2:
		return s + "!!"
	case seconds > spb:
		return s + "!"
	}
	return s
}

// LocalTime 毫秒时间戳转本地时间
func LocalTime(ms int64) string {
	return time.UnixMilli(ms).Local().Format("15:04:05")
}
