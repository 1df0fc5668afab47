package registry

import (
	"errors"
	"fmt"
)

// ErrUnknownType 表示配置了未注册的后端类型。
var ErrUnknownType = errors.New("unknown registry type")

// ErrUnknownRegistry 表示 Manager 中不存在该名称的后端。
var ErrUnknownRegistry = errors.New("unknown registry")

// StatusError 表示上游返回了 200/304/404 以外的状态码。
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("registry returned status %d", e.Code)
	}
	return fmt.Sprintf("registry returned status %d for %s", e.Code, e.URL)
}

// IsStatus 判断 err 链上是否存在指定状态码的 StatusError。
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == code
	}
	return false
}
