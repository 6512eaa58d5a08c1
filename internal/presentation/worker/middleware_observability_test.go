package workerpresentation

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type pingEvent struct{ id string }

func (pingEvent) EventName() string  { return "test.ping" }
func (e pingEvent) EventKey() string { return e.id }

func TestEventDecorator_InjectsEventLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zaplogger.New(zap.New(core))

	ctx := EventDecorator(base)(context.Background(), pingEvent{id: "agg-1"})
	logger := logctx.From(ctx)
	require.NotNil(t, logger)
	logger.Info("handled")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "test.ping", fields["event"])
	assert.Equal(t, "agg-1", fields["event_key"])
	assert.NotEmpty(t, fields["event_id"])
	_, hasTrace := fields["trace_id"]
	assert.False(t, hasTrace)
}

func TestWithEventContext_KeepsProvidedEventID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithEventContext(context.Background(), zaplogger.New(zap.New(core)), [16]byte{}, [8]byte{}, map[string]string{"event_id": "evt-9"})

	logctx.From(ctx).Info("x")
	assert.Equal(t, "evt-9", logs.All()[0].ContextMap()["event_id"])
}
