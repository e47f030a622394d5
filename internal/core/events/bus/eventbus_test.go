package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	mu             sync.Mutex
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.mu.Lock()
	o.publishCount++
	o.mu.Unlock()
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.mu.Lock()
	o.deliveredCount += handlers
	o.lastErr = err
	o.mu.Unlock()
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 3; i++ {
		_, err := b.Subscribe("scene.loaded", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	_, err := b.Subscribe("other", func(Event) error {
		t.Fatal("wrong event type delivered")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("scene.loaded", "test", 42, nil)))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestEventCarriesPayload(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("x", func(e Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("x", "src", []int{1}, map[string]any{"k": "v"})))
	require.NotNil(t, got)
	assert.Equal(t, "src", got.Source())
	assert.Equal(t, []int{1}, got.Data())
	assert.Equal(t, "v", got.Metadata()["k"])
	assert.False(t, got.Timestamp().IsZero())
}

func TestHandlerErrorsAreCombined(t *testing.T) {
	b := New()
	first, second := errors.New("first"), errors.New("second")
	_, _ = b.Subscribe("x", func(Event) error { return first })
	_, _ = b.Subscribe("x", func(Event) error { return nil })
	_, _ = b.Subscribe("x", func(Event) error { return second })

	err := b.Publish(NewEvent("x", "src", nil, nil))
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestPublishAsync(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	_, err := b.Subscribe("x", func(Event) error { return handlerErr })
	require.NoError(t, err)

	select {
	case got := <-b.PublishAsync(NewEvent("x", "src", nil, nil)):
		assert.ErrorIs(t, got, handlerErr)
	case <-time.After(time.Second):
		t.Fatal("async publish did not complete")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("x", func(Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "x", sub.EventType())

	require.NoError(t, b.Publish(NewEvent("x", "src", nil, nil)))
	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Unsubscribe(nil))
	require.NoError(t, b.Publish(NewEvent("x", "src", nil, nil)))

	assert.Equal(t, 1, calls)
	assert.False(t, sub.IsActive())
}

func TestSubscribeNilHandler(t *testing.T) {
	_, err := New().Subscribe("x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestObserverAndMetrics(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)
	handlerErr := errors.New("boom")
	_, _ = b.Subscribe("x", func(Event) error { return handlerErr })
	_, _ = b.Subscribe("x", func(Event) error { return nil })

	_ = b.Publish(NewEvent("x", "src", nil, nil))

	assert.Equal(t, 1, obs.publishCount)
	assert.Equal(t, 2, obs.deliveredCount)
	assert.ErrorIs(t, obs.lastErr, handlerErr)

	m := b.GetMetrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(2), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.Errors)
	assert.Equal(t, uint64(2), m.SubscribersActive)

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("x", "src", nil, nil))
	assert.Equal(t, 1, obs.publishCount)
}
