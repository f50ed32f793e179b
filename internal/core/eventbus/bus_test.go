package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/types"
)

type testEvent struct {
	Value int
}

type otherEvent struct{}

func recv(t *testing.T, sub pkgif.Subscription) interface{} {
	t.Helper()
	select {
	case evt, ok := <-sub.Out():
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus()

	sub1, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	defer sub1.Close()
	sub2, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	defer sub2.Close()

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)
	defer em.Close()

	require.NoError(t, em.Emit(testEvent{Value: 7}))

	assert.Equal(t, testEvent{Value: 7}, recv(t, sub1))
	assert.Equal(t, testEvent{Value: 7}, recv(t, sub2))
}

func TestBus_NonPointerRejected(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(testEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	_, err = bus.Emitter(testEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	_, err = bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)
}

func TestEmitter_WrongType(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	err = em.Emit(otherEvent{})
	assert.ErrorIs(t, err, ErrWrongEventType)

	err = em.Emit(&testEvent{})
	assert.ErrorIs(t, err, ErrWrongEventType)
}

func TestEmitter_Closed(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	require.NoError(t, em.Close())
	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(testEvent{}), ErrEmitterClosed)
}

func TestBus_Stateful(t *testing.T) {
	bus := NewBus()
	em, err := bus.Emitter(new(types.EvtLocalAddrsUpdated), pkgif.Stateful())
	require.NoError(t, err)
	defer em.Close()

	require.NoError(t, em.Emit(types.EvtLocalAddrsUpdated{BaseEvent: types.NewBaseEvent()}))

	// 晚到的订阅者也能收到最后一个事件
	sub, err := bus.Subscribe(new(types.EvtLocalAddrsUpdated))
	require.NoError(t, err)
	defer sub.Close()

	_, ok := recv(t, sub).(types.EvtLocalAddrsUpdated)
	assert.True(t, ok)
}

func TestBus_SlowConsumerDoesNotBlock(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(testEvent), pkgif.BufSize(1))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			_ = em.Emit(testEvent{Value: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a full subscriber")
	}
	assert.Equal(t, testEvent{Value: 0}, recv(t, sub))
}

func TestSubscription_CloseRemovesNode(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	assert.Len(t, bus.GetAllEventTypes(), 1)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Empty(t, bus.GetAllEventTypes())

	_, ok := <-sub.Out()
	assert.False(t, ok)
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)
	em, err := bus.Emitter(new(testEvent))
	require.NoError(t, err)

	require.NoError(t, bus.Close())

	_, ok := <-sub.Out()
	assert.False(t, ok)
	assert.NoError(t, em.Emit(testEvent{}))

	_, err = bus.Subscribe(new(testEvent))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(new(testEvent), pkgif.BufSize(1000))
	require.NoError(t, err)
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			em, err := bus.Emitter(new(testEvent))
			if !assert.NoError(t, err) {
				return
			}
			defer em.Close()
			for j := 0; j < 50; j++ {
				_ = em.Emit(testEvent{Value: j})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, sub.Out(), 500)
}

func TestModule_Lifecycle(t *testing.T) {
	var bus pkgif.EventBus
	app := fxtest.New(t,
		Module(),
		fx.Populate(&bus),
	)
	app.RequireStart()

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)

	app.RequireStop()

	_, ok := <-sub.Out()
	assert.False(t, ok)
}
