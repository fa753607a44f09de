package chat

import (
	"context"
	"sync"
)

// Subscriber is one live endpoint that can receive room payloads.
type Subscriber interface {
	ID() string
	// Deliver must not block. It reports false when the payload could not be
	// queued.
	Deliver(payload []byte) bool
}

// Registry maps a room (a consultation id) to its current subscribers.
type Registry interface {
	Subscribe(room string, sub Subscriber)
	Unsubscribe(room string, sub Subscriber)
	UnsubscribeAll(sub Subscriber)
	Broadcast(ctx context.Context, room string, payload []byte) error
	// OnSlowConsumer installs the callback run for subscribers that refused
	// a payload. It runs after the room lock is released.
	OnSlowConsumer(fn func(Subscriber))
}

type room struct {
	mu      sync.Mutex
	members map[Subscriber]struct{}
}

// MemoryRegistry is the single-process registry. Subscribe, Unsubscribe and
// Broadcast on one room are mutually exclusive, so every broadcast sees a
// consistent member set. Lock order is registry then room.
type MemoryRegistry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	joined map[Subscriber]map[string]struct{}
	onSlow func(Subscriber)
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		rooms:  make(map[string]*room),
		joined: make(map[Subscriber]map[string]struct{}),
	}
}

func (r *MemoryRegistry) OnSlowConsumer(fn func(Subscriber)) {
	r.mu.Lock()
	r.onSlow = fn
	r.mu.Unlock()
}

func (r *MemoryRegistry) Subscribe(roomID string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[Subscriber]struct{})}
		r.rooms[roomID] = rm
	}
	rm.mu.Lock()
	rm.members[sub] = struct{}{}
	rm.mu.Unlock()

	if r.joined[sub] == nil {
		r.joined[sub] = make(map[string]struct{})
	}
	r.joined[sub][roomID] = struct{}{}
}

func (r *MemoryRegistry) Unsubscribe(roomID string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(roomID, sub)
}

func (r *MemoryRegistry) UnsubscribeAll(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.joined[sub] {
		r.removeLocked(roomID, sub)
	}
	delete(r.joined, sub)
}

func (r *MemoryRegistry) removeLocked(roomID string, sub Subscriber) {
	if rooms := r.joined[sub]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joined, sub)
		}
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.members, sub)
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty {
		delete(r.rooms, roomID)
	}
}

// Broadcast hands payload to every member of the room. Members that refuse
// it are passed to the slow-consumer callback.
func (r *MemoryRegistry) Broadcast(_ context.Context, roomID string, payload []byte) error {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	onSlow := r.onSlow
	if !ok {
		r.mu.Unlock()
		return nil
	}
	rm.mu.Lock()
	r.mu.Unlock()

	var slow []Subscriber
	for sub := range rm.members {
		if !sub.Deliver(payload) {
			slow = append(slow, sub)
		}
	}
	rm.mu.Unlock()

	if onSlow != nil {
		for _, sub := range slow {
			onSlow(sub)
		}
	}
	return nil
}

// Members returns the number of subscribers in a room.
func (r *MemoryRegistry) Members(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}
