package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil, "extractTranscript"))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestClassifyError_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"transport", fmt.Errorf("frame snapshot: %w", ErrTransport), ErrCodeTransport},
		{"structural", fmt.Errorf("cell container: %w", ErrStructural), ErrCodeStructural},
		{"unknown operation", fmt.Errorf("dispatch: %w", ErrUnknownOperation), ErrCodeUnknownOperation},
		{"deadline", fmt.Errorf("settle: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"cancelled", context.Canceled, ErrCodeCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := ClassifyError(tt.err, "scrollAndExtract")
			require.NotNil(t, se)
			assert.Equal(t, tt.want, se.Code)
			assert.Equal(t, "scrollAndExtract", se.Operation)
			assert.ErrorIs(t, se, tt.err)
		})
	}
}

func TestClassifyError_MessagePatterns(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCode
	}{
		{"dial tcp 127.0.0.1:6379: connect: connection refused", ErrCodeTransport},
		{"lookup redis: no such host", ErrCodeTransport},
		{"parsing html: unexpected EOF", ErrCodeParse},
		{"something odd happened", ErrCodeProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(errors.New(tt.msg)))
		})
	}
}

func TestClassifyError_PreservesExisting(t *testing.T) {
	orig := &ScrapeError{Code: ErrCodeStructural, Message: "no cells"}
	wrapped := fmt.Errorf("outer: %w", orig)

	se := ClassifyError(wrapped, "extractCells")
	assert.Same(t, orig, se)
	assert.Equal(t, "extractCells", se.Operation)
}

func TestScrapeError_Error(t *testing.T) {
	se := &ScrapeError{Code: ErrCodeTransport, Operation: "extractTranscript", Message: "no reply"}
	assert.Equal(t, "transport: extractTranscript: no reply", se.Error())

	se.Operation = ""
	assert.Equal(t, "transport: no reply", se.Error())
}

func TestIsErrorRetryable(t *testing.T) {
	assert.True(t, IsErrorRetryable(fmt.Errorf("x: %w", ErrTransport)))
	assert.False(t, IsErrorRetryable(fmt.Errorf("x: %w", ErrStructural)))
	assert.False(t, IsErrorRetryable(nil))
}
