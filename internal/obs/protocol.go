package obs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// Wire format of the obs-websocket v4 control protocol. Requests carry a
// request-type and a caller-chosen message-id; responses echo the
// message-id with status ok or error; server-initiated events carry an
// update-type instead.

type request map[string]interface{}

func newRequest(requestType, messageID string) request {
	return request{
		"request-type": requestType,
		"message-id":   messageID,
	}
}

// incoming is the superset of response and event frames.
type incoming struct {
	MessageID  string `json:"message-id"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	UpdateType string `json:"update-type"`

	raw json.RawMessage
}

func decodeIncoming(data []byte) (*incoming, error) {
	var in incoming
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	in.raw = json.RawMessage(data)
	return &in, nil
}

func (in *incoming) isEvent() bool { return in.UpdateType != "" }

func (in *incoming) decode(v interface{}) error {
	return json.Unmarshal(in.raw, v)
}

type authRequiredResponse struct {
	AuthRequired bool   `json:"authRequired"`
	Challenge    string `json:"challenge"`
	Salt         string `json:"salt"`
}

type streamingStatusResponse struct {
	Streaming     bool    `json:"streaming"`
	Timecode      string  `json:"stream-timecode"`
	TotalFrames   int     `json:"num-total-frames"`
	DroppedFrames int     `json:"num-dropped-frames"`
	FPS           float64 `json:"fps"`
}

type switchScenesEvent struct {
	SceneName string `json:"scene-name"`
}

// authResponse computes the v4 challenge response:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])
	authHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}
