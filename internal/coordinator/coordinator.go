package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baddbeatz/streamcast/internal/obs"
	"github.com/baddbeatz/streamcast/internal/platform"
)

// State is the coordinator's position in its lifecycle. Only Connected may
// transition to Streaming, and only Streaming transitions back to
// Connected on stop. Connecting and Starting are transitional states held
// while the corresponding OBS calls are in flight; they keep concurrent
// callers out of the same transition.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateStarting     State = "starting"
	StateStreaming    State = "streaming"
)

// OBSClient is the slice of the OBS controller the coordinator drives.
type OBSClient interface {
	Connect(address, password string) error
	Disconnect()
	Connected() bool
	Events() <-chan obs.Event
	EnsureScenesExist(names []string) error
	EnsureAudioSourcesExist(sources []obs.AudioSource) error
	SetStreamTarget(rtmpURL, streamKey string) error
	StartStreaming() error
	StopStreaming() error
	SwitchScene(name string) error
	SetTextSourceContent(sourceName, text string)
	StreamingStatus() *obs.StreamingStatus
}

// Session is one active multi-platform stream. Exactly one session may be
// active per coordinator; isStreaming == (session != nil) always holds.
type Session struct {
	ID           string
	PlatformKeys []platform.Key
	StartedAt    time.Time
}

// PlatformState is the per-platform runtime view exposed in snapshots.
type PlatformState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Viewers int    `json:"viewers"`
}

// Snapshot is the full status view served to control clients.
type Snapshot struct {
	Connected    bool                           `json:"connected"`
	Streaming    bool                           `json:"streaming"`
	Platforms    map[platform.Key]PlatformState `json:"platforms"`
	CurrentBPM   int                            `json:"currentBPM"`
	CurrentTrack *Track                         `json:"currentTrack"`
}

// Options carries the OBS endpoint and the provisioning done on connect.
type Options struct {
	OBSAddress      string
	OBSPassword     string
	Scenes          []string
	AudioSources    []obs.AudioSource
	BPMSourceName   string
	TrackSourceName string
}

// Coordinator is the orchestration core: it validates platform
// credentials, drives the OBS controller, tracks per-platform state and
// re-emits coordinator-level events on its bus. It is the sole writer of
// session and platform runtime state.
type Coordinator struct {
	obs      OBSClient
	registry *platform.Registry
	opts     Options
	bus      *Bus
	log      zerolog.Logger

	mu        sync.Mutex
	state     State
	session   *Session
	platforms map[platform.Key]*PlatformState

	// BPM and track info deliberately live outside the session: the
	// operator can cue a track before going live, and the values survive
	// a stop/start cycle.
	currentBPM   int
	currentTrack *Track
}

func New(client OBSClient, registry *platform.Registry, opts Options, bus *Bus, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		obs:       client,
		registry:  registry,
		opts:      opts,
		bus:       bus,
		log:       log.With().Str("component", "coordinator").Logger(),
		state:     StateDisconnected,
		platforms: make(map[platform.Key]*PlatformState),
	}
	for _, key := range registry.Keys() {
		d, _ := registry.Get(key)
		c.platforms[key] = &PlatformState{Name: d.DisplayName}
	}
	go c.pumpOBSEvents()
	return c
}

// Bus returns the coordinator's event bus.
func (c *Coordinator) Bus() *Bus { return c.bus }

// ConnectToOBS opens the control socket, provisions scenes and audio
// sources, and moves the coordinator to the idle connected state.
func (c *Coordinator) ConnectToOBS() bool {
	c.mu.Lock()
	switch c.state {
	case StateConnected, StateStarting, StateStreaming:
		c.mu.Unlock()
		return true
	case StateConnecting:
		c.mu.Unlock()
		return false
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.obs.Connect(c.opts.OBSAddress, c.opts.OBSPassword); err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("OBS connect failed")
		c.bus.Publish(Event{Type: EventError, Message: err.Error()})
		return false
	}

	// Provisioning failures do not abort the connection: a missing scene
	// is recoverable from the OBS UI, a dead socket is not.
	if err := c.obs.EnsureScenesExist(c.opts.Scenes); err != nil {
		c.log.Warn().Err(err).Msg("scene provisioning failed")
	}
	if err := c.obs.EnsureAudioSourcesExist(c.opts.AudioSources); err != nil {
		c.log.Warn().Err(err).Msg("audio source provisioning failed")
	}
	if err := c.obs.SetStreamTarget("", ""); err != nil {
		c.log.Warn().Err(err).Msg("stream settings reset failed")
	}

	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Info().Msg("connected and provisioned")
	c.bus.Publish(Event{Type: EventConnected})
	return true
}

// Disconnect closes the control socket. State cleanup happens when the
// controller reports the disconnect on its event stream.
func (c *Coordinator) Disconnect() {
	c.obs.Disconnect()
}

// StartMultiPlatformStream starts streaming to the given platforms. The
// first key is the primary: OBS pushes a single RTMP output, so only the
// primary actually transmits from this instance. Subsequent configured
// platforms are tracked as enabled but not transmitted; true simultaneous
// egress needs an OBS multi-output plugin or separate OBS processes.
func (c *Coordinator) StartMultiPlatformStream(keys []platform.Key) bool {
	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		c.fail(fmt.Sprintf("cannot start stream while %s", state))
		return false
	}
	// Hold the transitional state across the OBS calls so a concurrent
	// start is rejected instead of racing this one.
	c.state = StateStarting
	c.mu.Unlock()

	if len(keys) == 0 {
		c.abortStart("no platforms requested")
		return false
	}

	primary, ok := c.registry.Get(keys[0])
	if !ok {
		c.abortStart(fmt.Sprintf("unknown platform %q", keys[0]))
		return false
	}
	if !primary.Configured() {
		c.abortStart(fmt.Sprintf("stream key not configured for %s", primary.DisplayName))
		return false
	}

	if err := c.obs.SetStreamTarget(primary.RTMPBaseURL, primary.StreamKey); err != nil {
		c.abortStart(err.Error())
		return false
	}
	if err := c.obs.StartStreaming(); err != nil {
		c.abortStart(err.Error())
		return false
	}

	c.mu.Lock()
	if c.state != StateStarting {
		// Disconnected while the OBS calls were in flight; the disconnect
		// handler already cleared everything.
		c.mu.Unlock()
		return false
	}
	c.session = &Session{
		ID:           uuid.NewString(),
		PlatformKeys: append([]platform.Key(nil), keys...),
		StartedAt:    time.Now().UTC(),
	}
	c.state = StateStreaming
	if ps, ok := c.platforms[primary.Key]; ok {
		ps.Enabled = true
	}
	c.mu.Unlock()

	c.log.Info().Str("platform", string(primary.Key)).Msg("streaming started")
	c.bus.Publish(Event{Type: EventStreamStarted})

	for _, key := range keys[1:] {
		d, ok := c.registry.Get(key)
		if !ok {
			c.log.Warn().Str("platform", string(key)).Msg("unknown secondary platform, skipping")
			continue
		}
		if !d.Configured() {
			c.log.Warn().Str("platform", string(key)).Msg("stream key not configured, skipping")
			continue
		}
		c.mu.Lock()
		if ps, ok := c.platforms[key]; ok {
			ps.Enabled = true
		}
		c.mu.Unlock()
		c.bus.Publish(Event{Type: EventPlatformConnected, Platform: key})
	}

	return true
}

// StopMultiPlatformStream stops the OBS output and clears all platform
// state. Local state is cleared even when the OBS call fails: a stale
// "streaming" panel is worse for the operator than a falsely cleared one.
// Stopping while no session is active is a no-op; nothing is broadcast,
// so viewers never see a stream-ended signal for a stream that never ran.
func (c *Coordinator) StopMultiPlatformStream() bool {
	c.mu.Lock()
	if c.state != StateStreaming {
		c.mu.Unlock()
		c.log.Warn().Msg("stop requested while not streaming")
		return true
	}
	c.mu.Unlock()

	err := c.obs.StopStreaming()
	if err != nil {
		c.log.Error().Err(err).Msg("OBS stop failed, clearing local state anyway")
	}

	c.mu.Lock()
	stopped := c.state == StateStreaming
	if stopped {
		c.clearSessionLocked()
		c.state = StateConnected
	}
	c.mu.Unlock()

	if stopped {
		c.bus.Publish(Event{Type: EventStreamStopped})
	}
	return err == nil
}

func (c *Coordinator) clearSessionLocked() {
	c.session = nil
	for _, ps := range c.platforms {
		ps.Enabled = false
		ps.Viewers = 0
	}
}

// UpdateBPM records the current BPM and pushes it to the overlay. Always
// succeeds locally; the overlay write is best-effort.
func (c *Coordinator) UpdateBPM(bpm int) {
	if bpm < 0 {
		bpm = 0
	}
	c.mu.Lock()
	c.currentBPM = bpm
	c.mu.Unlock()

	go c.obs.SetTextSourceContent(c.opts.BPMSourceName, fmt.Sprintf("%d BPM", bpm))
	c.bus.Publish(Event{Type: EventBPMUpdated, BPM: bpm})
}

// UpdateTrackInfo records the current track and pushes it to the overlay.
func (c *Coordinator) UpdateTrackInfo(artist, title, genre string) {
	track := &Track{Artist: artist, Title: title, Genre: genre}
	c.mu.Lock()
	c.currentTrack = track
	c.mu.Unlock()

	go c.obs.SetTextSourceContent(c.opts.TrackSourceName, fmt.Sprintf("%s - %s [%s]", artist, title, genre))
	c.bus.Publish(Event{Type: EventTrackUpdated, Track: track})
}

// SwitchScene changes the active OBS scene. The sceneChanged event is
// published when OBS confirms the switch on its event stream, so scenes
// changed from the OBS UI and from this panel broadcast identically.
func (c *Coordinator) SwitchScene(name string) bool {
	if err := c.obs.SwitchScene(name); err != nil {
		c.log.Error().Err(err).Str("scene", name).Msg("scene switch failed")
		c.bus.Publish(Event{Type: EventError, Message: err.Error()})
		return false
	}
	return true
}

// StreamStats returns the OBS output statistics, or nil when unavailable.
func (c *Coordinator) StreamStats() *obs.StreamingStatus {
	return c.obs.StreamingStatus()
}

// SetViewerCount records a platform's viewer count from telemetry.
func (c *Coordinator) SetViewerCount(key platform.Key, viewers int) {
	if viewers < 0 {
		viewers = 0
	}
	c.mu.Lock()
	if ps, ok := c.platforms[key]; ok {
		ps.Viewers = viewers
	}
	c.mu.Unlock()
}

// IsStreaming reports whether a session is active.
func (c *Coordinator) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Session returns a copy of the active session, or nil.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	s.PlatformKeys = append([]platform.Key(nil), c.session.PlatformKeys...)
	return &s
}

// Snapshot builds the status view for control clients. It never fails;
// before any connect it reports defaults.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	platforms := make(map[platform.Key]PlatformState, len(c.platforms))
	for key, ps := range c.platforms {
		platforms[key] = *ps
	}
	return Snapshot{
		Connected:    c.state == StateConnected || c.state == StateStarting || c.state == StateStreaming,
		Streaming:    c.session != nil,
		Platforms:    platforms,
		CurrentBPM:   c.currentBPM,
		CurrentTrack: c.currentTrack,
	}
}

func (c *Coordinator) fail(msg string) {
	c.log.Error().Msg(msg)
	c.bus.Publish(Event{Type: EventError, Message: msg})
}

// abortStart rolls the transitional starting state back to idle and
// reports the failure. The state is left alone when a disconnect already
// moved it on.
func (c *Coordinator) abortStart(msg string) {
	c.mu.Lock()
	if c.state == StateStarting {
		c.state = StateConnected
	}
	c.mu.Unlock()
	c.fail(msg)
}

// pumpOBSEvents consumes the controller's event stream for the life of
// the process. OBS lifecycle events are processed synchronously relative
// to each other, in emission order.
func (c *Coordinator) pumpOBSEvents() {
	for ev := range c.obs.Events() {
		switch ev.Type {
		case obs.EventStreamStarted:
			c.mu.Lock()
			externallyStarted := c.state == StateConnected
			if externallyStarted {
				// Stream started from the OBS UI rather than this panel.
				c.session = &Session{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
				c.state = StateStreaming
			}
			c.mu.Unlock()
			if externallyStarted {
				c.log.Info().Msg("stream started from OBS")
				c.bus.Publish(Event{Type: EventStreamStarted})
			}

		case obs.EventStreamStopped:
			c.mu.Lock()
			wasStreaming := c.state == StateStreaming
			if wasStreaming {
				c.clearSessionLocked()
				c.state = StateConnected
			}
			c.mu.Unlock()
			if wasStreaming {
				c.log.Info().Msg("stream stopped from OBS")
				c.bus.Publish(Event{Type: EventStreamStopped})
			}

		case obs.EventSceneChanged:
			c.bus.Publish(Event{Type: EventSceneChanged, Scene: ev.SceneName})

		case obs.EventDisconnected:
			c.mu.Lock()
			c.clearSessionLocked()
			c.state = StateDisconnected
			c.mu.Unlock()
			c.bus.Publish(Event{Type: EventDisconnected})
		}
	}
}
