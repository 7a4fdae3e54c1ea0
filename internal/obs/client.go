package obs

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// AudioSource describes one audio capture input to provision in OBS.
type AudioSource struct {
	Name            string
	CaptureDeviceID string
}

// StreamingStatus is a point-in-time snapshot of the OBS output.
type StreamingStatus struct {
	IsStreaming   bool    `json:"isStreaming"`
	Elapsed       string  `json:"elapsed"`
	TotalFrames   int     `json:"totalFrames"`
	DroppedFrames int     `json:"droppedFrames"`
	FPS           float64 `json:"fps"`
}

// Controller owns the control-socket connection to a local OBS Studio
// instance. It translates high-level intents into control-socket requests
// and OBS callbacks into the normalized Event stream. It performs no
// retries and no reconnection; that policy belongs to the layer above.
type Controller struct {
	timeout time.Duration
	log     zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[string]chan *incoming
	connected bool

	writeMu sync.Mutex
	events  chan Event
}

func NewController(callTimeout time.Duration, log zerolog.Logger) *Controller {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Controller{
		timeout: callTimeout,
		log:     log.With().Str("component", "obs").Logger(),
		pending: make(map[string]chan *incoming),
		events:  make(chan Event, 16),
	}
}

// Events returns the normalized OBS event stream. The channel stays open
// across reconnects; EventDisconnected marks the end of one connection.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Connected reports whether the control socket is currently open.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect opens the control socket and authenticates when OBS requires it.
func (c *Controller) Connect(address, password string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	u := url.URL{Scheme: "ws", Host: address}
	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return &ConnectionError{Reason: "cannot open control socket", Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)

	if err := c.authenticate(password); err != nil {
		c.Disconnect()
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.log.Info().Str("address", address).Msg("connected to OBS Studio")
	return nil
}

func (c *Controller) authenticate(password string) error {
	resp, err := c.call("GetAuthRequired", nil)
	if err != nil {
		return &ConnectionError{Reason: "auth handshake failed", Err: err}
	}
	var auth authRequiredResponse
	if err := resp.decode(&auth); err != nil {
		return &ConnectionError{Reason: "malformed auth response", Err: err}
	}
	if !auth.AuthRequired {
		return nil
	}
	_, err = c.call("Authenticate", map[string]interface{}{
		"auth": authResponse(password, auth.Salt, auth.Challenge),
	})
	if err != nil {
		return &ConnectionError{Reason: "authentication rejected", Err: err}
	}
	return nil
}

// Disconnect closes the control socket. Idempotent.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasConnected {
		c.emit(Event{Type: EventDisconnected})
		c.log.Info().Msg("disconnected from OBS Studio")
	}
}

func (c *Controller) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		in, err := decodeIncoming(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("undecodable control-socket frame")
			continue
		}
		if in.isEvent() {
			c.dispatchEvent(in)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[in.MessageID]
		if ok {
			delete(c.pending, in.MessageID)
		}
		c.mu.Unlock()
		if ok {
			ch <- in
		}
	}

	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	if c.conn == conn {
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if wasConnected {
		c.emit(Event{Type: EventDisconnected})
		c.log.Info().Msg("disconnected from OBS Studio")
	}
}

func (c *Controller) dispatchEvent(in *incoming) {
	switch in.UpdateType {
	case "StreamStarted":
		c.emit(Event{Type: EventStreamStarted})
	case "StreamStopped":
		c.emit(Event{Type: EventStreamStopped})
	case "SwitchScenes":
		var ev switchScenesEvent
		if err := in.decode(&ev); err != nil {
			c.log.Warn().Err(err).Msg("malformed scene event")
			return
		}
		c.emit(Event{Type: EventSceneChanged, SceneName: ev.SceneName})
	}
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Str("event", string(ev.Type)).Msg("event buffer full, dropping OBS event")
	}
}

// call issues one request and waits for the matching response or the
// configured timeout.
func (c *Controller) call(requestType string, fields map[string]interface{}) (*incoming, error) {
	id := uuid.NewString()
	req := newRequest(requestType, id)
	for k, v := range fields {
		req[k] = v
	}

	ch := make(chan *incoming, 1)
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, &ControlError{Request: requestType, Message: "not connected"}
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.timeout))
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &ControlError{Request: requestType, Message: err.Error()}
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, &ControlError{Request: requestType, Message: "connection closed"}
		}
		if resp.Status == "error" {
			return nil, &ControlError{Request: requestType, Message: resp.Error}
		}
		return resp, nil
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &ControlError{Request: requestType, Timeout: true}
	}
}

// EnsureScenesExist creates each named scene if absent. A "scene already
// exists" rejection counts as success.
func (c *Controller) EnsureScenesExist(names []string) error {
	for _, name := range names {
		_, err := c.call("CreateScene", map[string]interface{}{"sceneName": name})
		if err != nil && !isAlreadyExists(err) {
			return err
		}
	}
	return nil
}

// EnsureAudioSourcesExist creates each audio capture source if absent,
// with the same create-or-ignore semantics as EnsureScenesExist.
func (c *Controller) EnsureAudioSourcesExist(sources []AudioSource) error {
	for _, src := range sources {
		_, err := c.call("CreateSource", map[string]interface{}{
			"sourceName": src.Name,
			"sourceType": "wasapi_input_capture",
			"sourceSettings": map[string]interface{}{
				"device_id": src.CaptureDeviceID,
			},
		})
		if err != nil && !isAlreadyExists(err) {
			return err
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	ce, ok := err.(*ControlError)
	return ok && !ce.Timeout && strings.Contains(strings.ToLower(ce.Message), "exist")
}

// SetStreamTarget points the OBS RTMP output at one platform's ingest.
func (c *Controller) SetStreamTarget(rtmpURL, streamKey string) error {
	_, err := c.call("SetStreamSettings", map[string]interface{}{
		"type": "rtmp_output",
		"settings": map[string]interface{}{
			"server":   rtmpURL,
			"key":      streamKey,
			"use_auth": false,
		},
	})
	return err
}

func (c *Controller) StartStreaming() error {
	_, err := c.call("StartStreaming", nil)
	return err
}

func (c *Controller) StopStreaming() error {
	_, err := c.call("StopStreaming", nil)
	return err
}

func (c *Controller) SwitchScene(name string) error {
	_, err := c.call("SetCurrentScene", map[string]interface{}{"scene-name": name})
	return err
}

// SetTextSourceContent updates an on-stream text overlay. Overlay text is
// cosmetic and must never block streaming, so failures are logged and
// swallowed.
func (c *Controller) SetTextSourceContent(sourceName, text string) {
	_, err := c.call("SetTextGDIPlusProperties", map[string]interface{}{
		"source": sourceName,
		"text":   text,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("source", sourceName).Msg("overlay text update failed")
	}
}

// StreamingStatus queries the live output state. Returns nil when the
// query fails.
func (c *Controller) StreamingStatus() *StreamingStatus {
	resp, err := c.call("GetStreamingStatus", nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("streaming status query failed")
		return nil
	}
	var raw streamingStatusResponse
	if err := resp.decode(&raw); err != nil {
		c.log.Warn().Err(err).Msg("malformed streaming status")
		return nil
	}
	return &StreamingStatus{
		IsStreaming:   raw.Streaming,
		Elapsed:       raw.Timecode,
		TotalFrames:   raw.TotalFrames,
		DroppedFrames: raw.DroppedFrames,
		FPS:           raw.FPS,
	}
}
