package obs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthResponse(t *testing.T) {
	// base64(sha256(base64(sha256(password+salt)) + challenge))
	got := authResponse("supersecret", "salt123", "challenge456")
	assert.Equal(t, "V8pVriFPEtnaK7wzQPlqOgkXegTAwSevsIeJLiFx/Nw=", got)
}

func TestDecodeIncomingResponse(t *testing.T) {
	in, err := decodeIncoming([]byte(`{"message-id":"abc","status":"ok","streaming":true}`))
	require.NoError(t, err)
	assert.False(t, in.isEvent())
	assert.Equal(t, "abc", in.MessageID)

	var status streamingStatusResponse
	require.NoError(t, in.decode(&status))
	assert.True(t, status.Streaming)
}

func TestDecodeIncomingEvent(t *testing.T) {
	in, err := decodeIncoming([]byte(`{"update-type":"SwitchScenes","scene-name":"DJ Performance"}`))
	require.NoError(t, err)
	assert.True(t, in.isEvent())

	var ev switchScenesEvent
	require.NoError(t, in.decode(&ev))
	assert.Equal(t, "DJ Performance", ev.SceneName)
}

func TestDecodeIncomingRejectsGarbage(t *testing.T) {
	_, err := decodeIncoming([]byte(`not json`))
	assert.Error(t, err)
}
