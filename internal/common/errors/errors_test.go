package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	warns  []string
	errors []string
}

func (l *recordingLogger) Warn(msg string, _ map[string]interface{})  { l.warns = append(l.warns, msg) }
func (l *recordingLogger) Error(msg string, _ map[string]interface{}) { l.errors = append(l.errors, msg) }

func TestStandardError_UnwrapKeepsCause(t *testing.T) {
	err := NewPersistenceError("insert notification", sql.ErrConnDone)
	wrapped := fmt.Errorf("creating notification: %w", err)

	assert.True(t, stderrors.Is(wrapped, sql.ErrConnDone))
	assert.True(t, HasCode(wrapped, ErrCodePersistenceFailed))
	assert.Contains(t, err.Error(), "insert notification")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", stderrors.New("boom"), true},
		{"invalid payload", NewInvalidPayloadError("notifications.receiver.general", stderrors.New("bad json")), false},
		{"lock contention", NewLockNotAcquiredError("reminder:1"), false},
		{"channel failure", NewChannelDeliveryError("email", stderrors.New("smtp down")), true},
		{"wrapped persistence", fmt.Errorf("ctx: %w", NewPersistenceError("op", stderrors.New("x"))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestNormalize(t *testing.T) {
	plain := stderrors.New("boom")
	n := Normalize(plain)
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.True(t, n.Retryable)
	assert.True(t, stderrors.Is(n, plain))

	std := NewNotFoundError("transaction", 7)
	assert.Same(t, std, Normalize(std))
}

func TestWithMetadata(t *testing.T) {
	err := NewNotFoundError("user", 3).WithMetadata("entityId", 3)
	assert.Equal(t, 3, err.Metadata["entityId"])
}

func TestErrorHandler_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		deliveries int
		want       Disposition
	}{
		{"success", nil, 1, Ack},
		{"transient first attempt", stderrors.New("timeout"), 1, Nack},
		{"transient exhausted", stderrors.New("timeout"), 5, Drop},
		{"terminal", NewInvalidPayloadError("s", stderrors.New("bad")), 1, Drop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			h := NewErrorHandler(log, 5)
			assert.Equal(t, tt.want, h.Resolve("notifications.receiver.general", tt.deliveries, tt.err))
		})
	}
}

func TestErrorHandler_UnlimitedDeliveries(t *testing.T) {
	h := NewErrorHandler(&recordingLogger{}, 0)
	assert.Equal(t, Nack, h.Resolve("s", 1000, stderrors.New("x")))
}
