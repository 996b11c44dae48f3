package serclient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError("open", ErrCodeOpenFailed, "no such device")
	assert.Equal(t, "serclient: no such device (op=open)", err.Error())

	err = &Error{Code: ErrCodeTimeout}
	assert.Equal(t, "serclient: timeout", err.Error())
}

func TestErrorIsByCode(t *testing.T) {
	err := NewPacketError("decode", uuid.New(), ErrCodeMalformedHeader, "bad sentinel")

	assert.True(t, errors.Is(err, &Error{Code: ErrCodeMalformedHeader}))
	assert.False(t, errors.Is(err, &Error{Code: ErrCodeMalformedBody}))
}

func TestWrapError(t *testing.T) {
	inner := fmt.Errorf("read /dev/ttyS0: input/output error")
	err := WrapError("read", ErrCodeDeviceIO, inner)

	require.NotNil(t, err)
	assert.Equal(t, ErrCodeDeviceIO, err.Code)
	assert.ErrorIs(t, err, inner)

	assert.Nil(t, WrapError("read", ErrCodeDeviceIO, nil))
}

func TestWrapErrorKeepsStructuredContext(t *testing.T) {
	guid := uuid.New()
	inner := NewPacketError("decode", guid, ErrCodeMalformedBody, "footer missing")
	err := WrapError("read", ErrCodeDeviceIO, inner)

	assert.Equal(t, "read", err.Op)
	assert.Equal(t, guid, err.GUID)
	assert.Equal(t, ErrCodeMalformedBody, err.Code)
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError("open", ErrCodeOpenFailed, "busy"))

	assert.True(t, IsCode(err, ErrCodeOpenFailed))
	assert.False(t, IsCode(err, ErrCodeTimeout))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeOpenFailed))
}
