package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"si-monitor/pkg/errno"
)

// Response 统一的 JSON 结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error 业务错误码放在 body 里，HTTP 状态码只区分 400/404/500
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	c.JSON(httpStatus(err), Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errno.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errno.ErrNotFound),
		errors.Is(err, errno.ErrRoundNotFound),
		errors.Is(err, errno.ErrPlayerNotFound):
		return http.StatusNotFound
	}
	var typed errno.Errno
	if errors.As(err, &typed) {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
