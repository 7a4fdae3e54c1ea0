package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOBS is a scripted control-socket endpoint speaking the v4 wire
// format.
type fakeOBS struct {
	srv      *httptest.Server
	password string
	silent   map[string]bool // request types left unanswered

	mu     sync.Mutex
	scenes map[string]bool
	conn   *websocket.Conn
}

func newFakeOBS(t *testing.T, password string, silent ...string) *fakeOBS {
	f := &fakeOBS{
		password: password,
		silent:   make(map[string]bool),
		scenes:   make(map[string]bool),
	}
	for _, s := range silent {
		f.silent[s] = true
	}

	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		f.serve(conn)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOBS) addr() string {
	return strings.TrimPrefix(f.srv.URL, "http://")
}

func (f *fakeOBS) serve(conn *websocket.Conn) {
	for {
		var req map[string]interface{}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		requestType, _ := req["request-type"].(string)
		messageID, _ := req["message-id"].(string)

		if f.silent[requestType] {
			continue
		}

		resp := map[string]interface{}{"message-id": messageID, "status": "ok"}
		switch requestType {
		case "GetAuthRequired":
			if f.password != "" {
				resp["authRequired"] = true
				resp["challenge"] = "challenge456"
				resp["salt"] = "salt123"
			} else {
				resp["authRequired"] = false
			}
		case "Authenticate":
			auth, _ := req["auth"].(string)
			if auth != authResponse(f.password, "salt123", "challenge456") {
				resp["status"] = "error"
				resp["error"] = "Authentication Failed."
			}
		case "CreateScene":
			name, _ := req["sceneName"].(string)
			f.mu.Lock()
			if f.scenes[name] {
				resp["status"] = "error"
				resp["error"] = "Scene already exists"
			} else {
				f.scenes[name] = true
			}
			f.mu.Unlock()
		case "GetStreamingStatus":
			resp["streaming"] = true
			resp["stream-timecode"] = "00:05:00.000"
			resp["num-total-frames"] = 9000
			resp["num-dropped-frames"] = 12
			resp["fps"] = 60.0
		}

		f.mu.Lock()
		conn.WriteJSON(resp)
		f.mu.Unlock()
	}
}

func (f *fakeOBS) emit(event map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conn.WriteJSON(event)
}

func (f *fakeOBS) sceneCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scenes)
}

func newTestController(timeout time.Duration) *Controller {
	return NewController(timeout, zerolog.Nop())
}

func TestConnectWithAuthentication(t *testing.T) {
	fake := newFakeOBS(t, "supersecret")
	c := newTestController(2 * time.Second)

	require.NoError(t, c.Connect(fake.addr(), "supersecret"))
	assert.True(t, c.Connected())
	c.Disconnect()
}

func TestConnectRejectsBadPassword(t *testing.T) {
	fake := newFakeOBS(t, "supersecret")
	c := newTestController(2 * time.Second)

	err := c.Connect(fake.addr(), "wrong")
	require.Error(t, err)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.False(t, c.Connected())
}

func TestConnectUnreachable(t *testing.T) {
	c := newTestController(500 * time.Millisecond)
	err := c.Connect("127.0.0.1:1", "")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
}

func TestEnsureScenesExistIsIdempotent(t *testing.T) {
	fake := newFakeOBS(t, "")
	c := newTestController(2 * time.Second)
	require.NoError(t, c.Connect(fake.addr(), ""))
	defer c.Disconnect()

	scenes := []string{"DJ Performance", "Track Transition"}
	require.NoError(t, c.EnsureScenesExist(scenes))
	// Second pass hits "already exists" responses, which count as success.
	require.NoError(t, c.EnsureScenesExist(scenes))
	assert.Equal(t, 2, fake.sceneCount())
}

func TestCallTimeout(t *testing.T) {
	fake := newFakeOBS(t, "", "StartStreaming")
	c := newTestController(300 * time.Millisecond)
	require.NoError(t, c.Connect(fake.addr(), ""))
	defer c.Disconnect()

	err := c.StartStreaming()
	var ctrlErr *ControlError
	require.ErrorAs(t, err, &ctrlErr)
	assert.True(t, ctrlErr.Timeout)
}

func TestStreamingStatus(t *testing.T) {
	fake := newFakeOBS(t, "")
	c := newTestController(2 * time.Second)
	require.NoError(t, c.Connect(fake.addr(), ""))
	defer c.Disconnect()

	status := c.StreamingStatus()
	require.NotNil(t, status)
	assert.True(t, status.IsStreaming)
	assert.Equal(t, "00:05:00.000", status.Elapsed)
	assert.Equal(t, 9000, status.TotalFrames)
	assert.Equal(t, 12, status.DroppedFrames)
	assert.InDelta(t, 60.0, status.FPS, 0.01)
}

func TestEventsNormalized(t *testing.T) {
	fake := newFakeOBS(t, "")
	c := newTestController(2 * time.Second)
	require.NoError(t, c.Connect(fake.addr(), ""))

	fake.emit(map[string]interface{}{"update-type": "StreamStarted"})
	fake.emit(map[string]interface{}{"update-type": "SwitchScenes", "scene-name": "BPM Display"})
	fake.emit(map[string]interface{}{"update-type": "StreamStopped"})

	expectEvent := func(want EventType) Event {
		select {
		case ev := <-c.Events():
			require.Equal(t, want, ev.Type)
			return ev
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
			return Event{}
		}
	}

	expectEvent(EventStreamStarted)
	scene := expectEvent(EventSceneChanged)
	assert.Equal(t, "BPM Display", scene.SceneName)
	expectEvent(EventStreamStopped)

	c.Disconnect()
	expectEvent(EventDisconnected)
}

func TestCallsFailAfterDisconnect(t *testing.T) {
	fake := newFakeOBS(t, "")
	c := newTestController(time.Second)
	require.NoError(t, c.Connect(fake.addr(), ""))
	c.Disconnect()

	// Drain the disconnect notification so state has settled.
	select {
	case <-c.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect event")
	}

	err := c.StartStreaming()
	var ctrlErr *ControlError
	require.ErrorAs(t, err, &ctrlErr)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c := newTestController(time.Second)
	c.Disconnect()
	c.Disconnect()
	assert.False(t, c.Connected())
}
