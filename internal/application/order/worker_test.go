package order

import (
	"context"
	"errors"
	"testing"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (s *fakeSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if s.handlers == nil {
		s.handlers = map[string]domoutbox.Handler{}
	}
	s.handlers[name] = h
}

type fakeSink struct {
	keys []string
	err  error
}

func (s *fakeSink) Send(_ context.Context, _ string, key string, _ any) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *fakeSink) Close() error { return nil }

func TestWorker_RelaysLifecycleEvents(t *testing.T) {
	sub := &fakeSubscriber{}
	sink := &fakeSink{}
	NewWorker(sub, sink, "storefront.orders", nil).Start()
	require.Len(t, sub.handlers, 2)

	o := &domain.Order{ID: "ord-7", Status: domain.StatusCompleted}
	require.NoError(t, sub.handlers["order.completed"](context.Background(), domain.NewOrderCompletedEvent(o)))
	require.NoError(t, sub.handlers["order.failed"](context.Background(), domain.NewOrderFailedEvent(o)))
	assert.Equal(t, []string{"ord-7", "ord-7"}, sink.keys)

	sink.err = errors.New("broker unavailable")
	assert.Error(t, sub.handlers["order.completed"](context.Background(), domain.NewOrderCompletedEvent(o)))
}

func TestWorker_NoSinkSubscribesNothing(t *testing.T) {
	sub := &fakeSubscriber{}
	NewWorker(sub, nil, "storefront.orders", nil).Start()
	assert.Empty(t, sub.handlers)
}
