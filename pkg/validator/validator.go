package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Init 独立实例: gin 的 binding 引擎使用 "binding" tag，这里读 "validate" tag
func Init() {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
}

// Struct 校验结构体的 validate tag
func Struct(s interface{}) error {
	Init()
	return validate.Struct(s)
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Namespace()
			tag := e.Tag()
			param := e.Param()

			switch tag {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
			case "hexadecimal":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是十六进制", field))
			case "len":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 长度必须为 %s", field, param))
			case "gt", "gte":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须大于 %s", field, param))
			case "ltfield":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须小于 %s", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, tag))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	if err != nil {
		return err.Error()
	}
	return "请求参数错误"
}
