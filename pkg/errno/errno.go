package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Is 按错误码比较，便于 errors.Is 穿透 fmt.Errorf 的 %w 包装
func (e Errno) Is(target error) bool {
	var t Errno
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, err.Error()
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBadRequest       = Errno{Code: 10002, Message: "Bad request parameter"}
	ErrNotFound         = Errno{Code: 10004, Message: "Not found"}
)

// Chain errors (30000+), 可恢复: 记录日志后继续同步
var (
	ErrTxFailed          = Errno{Code: 30001, Message: "transaction failed"}
	ErrNoParse           = Errno{Code: 30002, Message: "calldata does not decode"}
	ErrUnsupportedTx     = Errno{Code: 30003, Message: "unsupported redistribution transaction"}
	ErrAnchorUnavailable = Errno{Code: 30004, Message: "round anchor unavailable"}
	ErrBlockGap          = Errno{Code: 30005, Message: "block gap in live feed"}
)

// Game data conflicts (30100+), 只丢弃当前这条更新
var (
	ErrDepthConflict  = Errno{Code: 30101, Message: "hash already revealed at a different depth"}
	ErrMissingWinner  = Errno{Code: 30102, Message: "claim without WinnerSelected log"}
	ErrDuplicateClaim = Errno{Code: 30103, Message: "round already has a claim"}
)

// Programming errors (30200+), fail fast
var (
	ErrSyncState = Errno{Code: 30201, Message: "chain sync called out of state order"}
)

// Query errors (40000+)
var (
	ErrRoundNotFound  = Errno{Code: 40001, Message: "Round not found"}
	ErrPlayerNotFound = Errno{Code: 40002, Message: "Player not found"}
)
