package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id string

	mu       sync.Mutex
	received [][]byte
	refuse   bool
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Deliver(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuse {
		return false
	}
	f.received = append(f.received, payload)
	return true
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestMemoryRegistry_BroadcastReachesOnlyRoomMembers(t *testing.T) {
	reg := NewMemoryRegistry()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	c := &fakeSubscriber{id: "c"}

	reg.Subscribe("room-1", a)
	reg.Subscribe("room-1", b)
	reg.Subscribe("room-2", c)

	require.NoError(t, reg.Broadcast(context.Background(), "room-1", []byte("hello")))

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, c.count())
}

func TestMemoryRegistry_SubscribeIsIdempotent(t *testing.T) {
	reg := NewMemoryRegistry()
	a := &fakeSubscriber{id: "a"}

	reg.Subscribe("room-1", a)
	reg.Subscribe("room-1", a)
	require.NoError(t, reg.Broadcast(context.Background(), "room-1", []byte("x")))

	assert.Equal(t, 1, reg.Members("room-1"))
	assert.Equal(t, 1, a.count())
}

func TestMemoryRegistry_UnsubscribeAllDropsEmptyRooms(t *testing.T) {
	reg := NewMemoryRegistry()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}

	reg.Subscribe("room-1", a)
	reg.Subscribe("room-2", a)
	reg.Subscribe("room-2", b)

	reg.UnsubscribeAll(a)

	assert.Equal(t, 0, reg.Members("room-1"))
	assert.Equal(t, 1, reg.Members("room-2"))
	assert.Empty(t, reg.joined[a])
	_, ok := reg.rooms["room-1"]
	assert.False(t, ok)

	// Unknown rooms and repeated removals are no-ops.
	reg.Unsubscribe("room-9", a)
	reg.UnsubscribeAll(a)
	require.NoError(t, reg.Broadcast(context.Background(), "room-9", []byte("x")))
}

func TestMemoryRegistry_SlowConsumerCallback(t *testing.T) {
	reg := NewMemoryRegistry()
	ok := &fakeSubscriber{id: "ok"}
	slow := &fakeSubscriber{id: "slow", refuse: true}

	var evicted []string
	reg.OnSlowConsumer(func(sub Subscriber) {
		evicted = append(evicted, sub.ID())
		// Runs outside the room lock, so touching the registry must not deadlock.
		reg.UnsubscribeAll(sub)
	})

	reg.Subscribe("room-1", ok)
	reg.Subscribe("room-1", slow)
	require.NoError(t, reg.Broadcast(context.Background(), "room-1", []byte("x")))

	assert.Equal(t, []string{"slow"}, evicted)
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, reg.Members("room-1"))
}

func TestRoomLocks_ReleaseEntries(t *testing.T) {
	locks := newRoomLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("room-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())
}

func TestConn_DeliverAndClose(t *testing.T) {
	conn := newConn("c1", 1, nil)

	assert.True(t, conn.Deliver([]byte("first")))
	assert.False(t, conn.Deliver([]byte("second")), "full buffer refuses")

	conn.Close()
	conn.Close()
	assert.True(t, conn.Closed())
	<-conn.Outbound()
	assert.False(t, conn.Deliver([]byte("third")), "closed connection refuses")
}
