package xerr

import "errors"

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return e.Message
}

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// As 从错误链中取出 CodeError
func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// FromError 将任意错误转换为 CodeError，4xx 保留完整错误链信息，5xx 只返回预置文案
func FromError(err error) *CodeError {
	if err == nil {
		return nil
	}
	ce, ok := As(err)
	if !ok {
		return ErrServerError
	}
	if ce == err {
		return ce
	}
	if ce.Code >= 400 && ce.Code < 500 {
		return New(ce.Code, err.Error())
	}
	return ce
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
	UpstreamUnavailable = 502
)

// 常用预定义错误
var (
	ErrSuccess     = New(OK, "Success")
	ErrServerError = New(InternalServerError, "系统错误，请联系工作人员")
	ErrParam       = New(BadRequest, "参数错误")
	ErrNotFound    = New(NotFound, "记录不存在")
	ErrUpstream    = New(UpstreamUnavailable, "依赖服务不可用，请稍后重试")
)
