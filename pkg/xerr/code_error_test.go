package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	e := FromError(errors.New("db down"))
	assert.Same(t, ErrServerError, e)

	wrapped := fmt.Errorf("%w: domain is required", ErrParam)
	e = FromError(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, BadRequest, e.Code)
	assert.Equal(t, wrapped.Error(), e.Message)

	e = FromError(fmt.Errorf("embedding: %w", ErrUpstream))
	assert.Same(t, ErrUpstream, e)
}

func TestAs(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)

	ce, ok := As(fmt.Errorf("x: %w", ErrNotFound))
	require.True(t, ok)
	assert.Equal(t, NotFound, ce.Code)
}

func TestFromErrorUnwrapped(t *testing.T) {
	assert.Same(t, ErrParam, FromError(ErrParam))
	assert.Equal(t, "参数错误: domain is required", FromError(fmt.Errorf("%w: domain is required", ErrParam)).Message)
}
