package rag

import (
	"errors"
	"fmt"

	"koo/pkg/xerr"
)

// 错误分类，调用方通过 errors.Is 判断
var (
	ErrNotFound        = xerr.New(xerr.NotFound, "not found")
	ErrValidation      = xerr.New(xerr.BadRequest, "validation failed")
	ErrUpstream        = xerr.New(xerr.UpstreamUnavailable, "upstream unavailable")
	ErrMalformedSource = xerr.New(xerr.BadRequest, "malformed source content")
)

// 出错的协作方
const (
	StageContentStore = "content store"
	StageVectorIndex  = "vector index"
	StageEmbedding    = "embedding"
	StageAnswer       = "answer"
	StageSource       = "source"
)

// StageError 标记失败发生在哪个协作方
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

// Unwrap 未分类的底层错误同时归为 ErrUpstream
func (e *StageError) Unwrap() []error {
	if _, ok := xerr.As(e.Err); ok {
		return []error{e.Err}
	}
	return []error{e.Err, ErrUpstream}
}

// Stage 包装协作方错误，err 为 nil 时返回 nil；已带同一阶段的错误原样返回
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func MalformedSourcef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedSource, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
