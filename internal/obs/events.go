package obs

// EventType identifies a normalized OBS lifecycle event.
type EventType string

const (
	EventStreamStarted EventType = "stream_started"
	EventStreamStopped EventType = "stream_stopped"
	EventSceneChanged  EventType = "scene_changed"
	EventDisconnected  EventType = "disconnected"
)

// Event is one entry in the controller's normalized event stream. Events
// are delivered in the order OBS emits them.
type Event struct {
	Type      EventType
	SceneName string // set for EventSceneChanged
}
