package consumer

import (
	"context"
	stderrors "errors"
	"testing"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/validation"
	"notification-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type txEvent struct {
	TransactionID int64  `json:"transactionId"`
	Status        string `json:"status"`
}

func TestHandle_DecodesObjectOrArray(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []txEvent
	}{
		{"single object", `{"transactionId": 1, "status": "EXECUTED"}`, []txEvent{{1, "EXECUTED"}}},
		{"array", ` [{"transactionId": 1}, {"transactionId": 2}]`, []txEvent{{1, ""}, {2, ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []txEvent
			route := Handle("s", func(_ context.Context, items []txEvent) error {
				got = items
				return nil
			})
			require.NoError(t, route.dispatch(context.Background(), []byte(tt.payload)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandle_EmptyArraySkipsHandler(t *testing.T) {
	called := false
	route := Handle("s", func(context.Context, []txEvent) error {
		called = true
		return nil
	})
	require.NoError(t, route.dispatch(context.Background(), []byte(`[]`)))
	assert.False(t, called)
}

func TestHandle_UndecodablePayloadIsTerminal(t *testing.T) {
	route := Handle("s", func(context.Context, []txEvent) error { return nil })
	err := route.dispatch(context.Background(), []byte(`{"transactionId": "nope"`))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidPayload))
	assert.False(t, errors.IsRetryable(err))
}

func TestHandle_HandlerErrorPassesThrough(t *testing.T) {
	boom := stderrors.New("db down")
	route := Handle("s", func(context.Context, []txEvent) error { return boom })
	err := route.dispatch(context.Background(), []byte(`{"transactionId": 1}`))
	assert.ErrorIs(t, err, boom)
}

func TestRoute_WithSchema(t *testing.T) {
	schema, err := validation.Compile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"transactionId"},
	})
	require.NoError(t, err)

	called := 0
	route := Handle("s", func(_ context.Context, items []txEvent) error {
		called += len(items)
		return nil
	}).WithSchema(schema)

	require.NoError(t, route.dispatch(context.Background(), []byte(`[{"transactionId": 1}]`)))
	assert.Equal(t, 1, called)

	err = route.dispatch(context.Background(), []byte(`[{"transactionId": 1}, {"status": "x"}]`))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidPayload))
	assert.Contains(t, err.Error(), "item 1")
	assert.Equal(t, 1, called)
}

func TestUniqueDurable(t *testing.T) {
	a := UniqueDurable("notifications-fan-out")
	b := UniqueDurable("notifications-fan-out")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "notifications-fan-out-")
}

func TestAttachSchemas(t *testing.T) {
	reg := registry.Default()
	noop := func(context.Context, []txEvent) error { return nil }

	routes, err := AttachSchemas(reg, []Route{Handle(registry.SubjectTransactionStatusUpdate, noop)})
	require.NoError(t, err)
	require.Len(t, routes, 1)

	require.NoError(t, routes[0].dispatch(context.Background(), []byte(`{"transactionId": 42, "status": "EXECUTED"}`)))
	err = routes[0].dispatch(context.Background(), []byte(`{"transactionId": 42}`))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidPayload))

	_, err = AttachSchemas(reg, []Route{Handle("not.registered", noop)})
	assert.Error(t, err)
}
