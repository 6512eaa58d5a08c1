package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBus_FanoutToAllHandlers(t *testing.T) {
	bus := NewBus(nil)
	var calls atomic.Int32
	got := make(chan string, 2)

	for i := 0; i < 2; i++ {
		bus.Subscribe("order.completed", func(ctx context.Context, e domoutbox.Event) error {
			calls.Add(1)
			got <- e.EventName()
			return nil
		})
	}
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.completed"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "ignored"}))

	for i := 0; i < 2; i++ {
		select {
		case name := <-got:
			assert.Equal(t, "order.completed", name)
		case <-time.After(2 * time.Second):
			t.Fatal("handler not invoked")
		}
	}
	require.NoError(t, bus.Stop(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestBus_HandlerPanicAndErrorAreContained(t *testing.T) {
	bus := NewBus(nil)
	done := make(chan struct{})
	bus.Subscribe("x", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("x", func(context.Context, domoutbox.Event) error { return errors.New("nope") })
	bus.Subscribe("x", func(context.Context, domoutbox.Event) error { close(done); return nil })
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "x"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy handler not invoked")
	}
	require.NoError(t, bus.Stop(context.Background()))
}

func TestBus_StopDrainsAndRejects(t *testing.T) {
	bus := NewBus(nil)
	var calls atomic.Int32
	bus.Subscribe("x", func(context.Context, domoutbox.Event) error { calls.Add(1); return nil })
	bus.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), testEvent{name: "x"}))
	}
	require.NoError(t, bus.Stop(context.Background()))
	assert.Equal(t, int32(5), calls.Load())

	assert.ErrorIs(t, bus.Publish(context.Background(), testEvent{name: "x"}), ErrBusStopped)
	assert.NoError(t, bus.Stop(context.Background()))
}

func TestBus_DecoratorRuns(t *testing.T) {
	type key struct{}
	seen := make(chan any, 1)
	bus := NewBus(nil, WithContextDecorator(func(ctx context.Context, e domoutbox.Event) context.Context {
		return context.WithValue(ctx, key{}, e.EventName())
	}))
	bus.Subscribe("x", func(ctx context.Context, _ domoutbox.Event) error {
		seen <- ctx.Value(key{})
		return nil
	})
	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "x"}))
	require.NoError(t, bus.Stop(context.Background()))
	assert.Equal(t, "x", <-seen)
}
