package coordinator

import (
	"sync"

	"github.com/baddbeatz/streamcast/internal/platform"
)

// EventType names a coordinator-level event.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventDisconnected      EventType = "disconnected"
	EventStreamStarted     EventType = "streamStarted"
	EventStreamStopped     EventType = "streamStopped"
	EventBPMUpdated        EventType = "bpmUpdated"
	EventTrackUpdated      EventType = "trackUpdated"
	EventSceneChanged      EventType = "sceneChanged"
	EventPlatformConnected EventType = "platformConnected"
	EventError             EventType = "error"
)

// Track is the currently playing track shown on the overlay.
type Track struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Genre  string `json:"genre"`
}

// Event is the coordinator's typed event union. Only the fields relevant
// to the Type are set.
type Event struct {
	Type     EventType
	BPM      int
	Track    *Track
	Scene    string
	Platform platform.Key
	Message  string
}

// Bus is an explicit publish/subscribe fan-out: many listeners, one source
// of truth. Publish calls subscribers synchronously in subscription order,
// so event emission order is preserved for every listener.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
	order  []int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers a listener and returns its cancel function.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers ev to every live subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, id := range b.order {
		if fn, ok := b.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
