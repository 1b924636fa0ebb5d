package errorx

import (
	"errors"
	"fmt"
)

// CodeError 带业务错误码的自定义错误
// 实现了 error 接口，支持 %w 包装底层错误，且能被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 错误消息
	cause error  // 被包装的底层错误
}

// Error 实现 Go 标准 error 接口
// 存在底层错误时返回 "消息: 底层错误"，否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is 两个 CodeError 错误码相同即视为同一类错误
// 使 errors.Is(err, errorx.ErrSessionNotFound) 这类判断成立
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误，添加业务错误码和消息
// 用法: errorx.Wrap(err, CodeStoreUnavailable, "redis get session")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf 包装底层错误，支持格式化消息
// 用法: errorx.Wrapf(err, CodeSessionNotFound, "session %s not found", sessionId)
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode 从错误中提取业务错误码，如果不是 CodeError 则返回默认码
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy // 默认返回服务繁忙
}

// 业务状态码常量定义
const (
	CodeSuccess           = 1000 // 成功
	CodeInvalidParam      = 1001 // 请求参数错误
	CodeUserExist         = 1002 // 用户已存在
	CodeUserNotExist      = 1003 // 用户不存在
	CodeInvalidPassword   = 1004 // 密码错误
	CodeServerBusy        = 1005 // 服务繁忙
	CodeUnauthorized      = 1006 // 未授权/认证失败
	CodeForbidden         = 1007 // 无权访问该资源
	CodeNotFound          = 1008 // 资源不存在
	CodeDBError           = 1010 // 数据库错误
	CodeCacheError        = 1011 // 缓存错误
	CodeInvalidIdentity   = 1012 // 既没有 user_id 也没有 device_id
	CodeSessionNotFound   = 1013 // 会话不存在或已过期
	CodeStoreUnavailable  = 1014 // KV 存储不可用（网络/超时）
	CodeRateLimitExceeded = 1015 // 请求过于频繁
)

// 预定义常用错误实例
// 这些实例既可直接返回，也可用于 errors.Is 比较
var (
	ErrInvalidParam      = New(CodeInvalidParam, "请求参数错误")
	ErrServerBusy        = New(CodeServerBusy, "服务繁忙")
	ErrInvalidIdentity   = New(CodeInvalidIdentity, "either user_id or device_id required")
	ErrSessionNotFound   = New(CodeSessionNotFound, "session not found or expired")
	ErrStoreUnavailable  = New(CodeStoreUnavailable, "session store unavailable")
	ErrRateLimitExceeded = New(CodeRateLimitExceeded, "rate limit exceeded")
)

// IsNotFound 检查错误是否为"未找到"类型（包括 gorm.ErrRecordNotFound 和会话不存在）
func IsNotFound(err error) bool {
	var codeErr *CodeError
	if errors.As(err, &codeErr) && (codeErr.Code == CodeNotFound || codeErr.Code == CodeSessionNotFound) {
		return true
	}
	return err != nil && err.Error() == "record not found"
}

// IsSessionNotFound 会话键不存在（包括 TTL 过期）
func IsSessionNotFound(err error) bool {
	return GetCode(err) == CodeSessionNotFound
}

// IsStoreUnavailable KV 存储网络/超时错误，调用方自行决定退避策略
func IsStoreUnavailable(err error) bool {
	return GetCode(err) == CodeStoreUnavailable
}

// IsRateLimited 请求被限流
func IsRateLimited(err error) bool {
	return GetCode(err) == CodeRateLimitExceeded
}
