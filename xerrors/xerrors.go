// Package xerrors 提供 beacon 统一的错误处理工具。
//
// 各组件通过 WithCode 给错误链附加机器可读的错误码，调用方用 GetCode /
// HasCode 区分"不可达"、"被拒绝"与"不存在"等情况，而不必解析错误文本。
package xerrors

import (
	"errors"
	"fmt"
)

// 错误码常量，对应 beacon 的错误分类。
const (
	CodeConnection     = "CONNECTION"      // 无法到达远端（传输或认证失败）
	CodeRegistration   = "REGISTRATION"    // 注册/注销被拒绝或失败
	CodeDiscovery      = "DISCOVERY"       // 实例查询传输失败
	CodeConfig         = "CONFIG"          // 配置读写传输失败
	CodeConfigParse    = "CONFIG_PARSE"    // 配置内容解析失败
	CodeConfigListener = "CONFIG_LISTENER" // 监听器注册/监听建立失败
	CodeHeartbeat      = "HEARTBEAT"       // 单次心跳失败（仅可观测，不致命）
)

// Wrap 用上下文信息包装错误，保留错误链。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithCode 用错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// Newf 创建带错误码的新错误。
func Newf(code string, format string, args ...any) error {
	return &CodedError{Code: code, Cause: fmt.Errorf(format, args...)}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取错误码，链上没有错误码时返回空串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// HasCode 判断错误链上是否携带指定错误码。
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Combine 将多个错误合并为一个，忽略 nil。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.Join(nonNil...)
	}
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)
