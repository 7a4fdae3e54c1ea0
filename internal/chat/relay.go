package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultHistoryLimit caps the visible message window.
	DefaultHistoryLimit = 100
	// MaxMessageLen caps one chat message.
	MaxMessageLen = 200
	// MaxRequestNoteLen caps the optional note on a track request.
	MaxRequestNoteLen = 100
)

// ValidationError reports malformed caller input. It is handled at the
// edge and never reaches the control channel.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ModerationError reports a message blocked by the deny-list.
type ModerationError struct {
	Word string
}

func (e *ModerationError) Error() string { return "message contains inappropriate content" }

// Message is one chat entry in a stream's room.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsOwn     bool      `json:"isOwn"`
}

// Request is one viewer track request with its running vote count.
type Request struct {
	ID          string    `json:"id"`
	Artist      string    `json:"artist"`
	Title       string    `json:"title"`
	Genre       string    `json:"genre,omitempty"`
	Message     string    `json:"message,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	Votes       int       `json:"votes"`
}

// PlatformChat relays accepted messages outward to a platform's native
// chat API.
type PlatformChat interface {
	Send(username, text string) error
}

// LogSink is the current platform-chat implementation: the real chat APIs
// are external collaborators, so accepted messages are only logged.
type LogSink struct {
	Platform string
	Log      zerolog.Logger
}

func (s *LogSink) Send(username, text string) error {
	s.Log.Info().Str("platform", s.Platform).Str("username", username).Str("text", text).Msg("relaying chat message")
	return nil
}

var defaultDenyList = []string{"spam", "hate", "inappropriate"}

// Relay owns the chat and track-request state for one stream room. The
// message list is bounded; appending past the cap evicts oldest-first so
// the visible window stays the most recent messages in append order.
type Relay struct {
	sink  PlatformChat
	limit int
	deny  []string
	log   zerolog.Logger

	mu       sync.Mutex
	messages []Message
	requests []*Request
	voters   map[string]map[string]struct{}
}

func NewRelay(sink PlatformChat, historyLimit int, log zerolog.Logger) *Relay {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Relay{
		sink:   sink,
		limit:  historyLimit,
		deny:   defaultDenyList,
		log:    log.With().Str("component", "chat").Logger(),
		voters: make(map[string]map[string]struct{}),
	}
}

// SendMessage validates, moderates, appends and relays one message from
// this client. Moderated messages are never appended and never relayed.
func (r *Relay) SendMessage(username, text string) (*Message, error) {
	msg, err := r.accept(username, text, true)
	if err != nil {
		return nil, err
	}
	if r.sink != nil {
		if err := r.sink.Send(username, text); err != nil {
			r.log.Warn().Err(err).Msg("platform chat relay failed")
		}
	}
	return msg, nil
}

// Ingest appends a message arriving from the platform feed. It passes the
// same moderation as locally sent messages but is not relayed back out.
func (r *Relay) Ingest(username, text string) (*Message, error) {
	return r.accept(username, text, false)
}

func (r *Relay) accept(username, text string, own bool) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Reason: "empty message"}
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return nil, &ValidationError{Reason: fmt.Sprintf("message exceeds %d characters", MaxMessageLen)}
	}
	if word, blocked := r.moderate(text); blocked {
		return nil, &ModerationError{Word: word}
	}

	msg := Message{
		ID:        uuid.NewString(),
		Username:  username,
		Text:      text,
		Timestamp: time.Now().UTC(),
		IsOwn:     own,
	}
	r.append(msg)
	return &msg, nil
}

func (r *Relay) append(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	if over := len(r.messages) - r.limit; over > 0 {
		r.messages = append([]Message(nil), r.messages[over:]...)
	}
}

// moderate runs the case-insensitive deny-list substring check.
func (r *Relay) moderate(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, word := range r.deny {
		if strings.Contains(lower, word) {
			return word, true
		}
	}
	return "", false
}

// Messages returns the visible window, oldest first.
func (r *Relay) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// SubmitRequest creates a track request. Artist and title are required.
func (r *Relay) SubmitRequest(artist, title, genre, note string) (*Request, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return nil, &ValidationError{Reason: "artist and track title are required"}
	}
	if utf8.RuneCountInString(note) > MaxRequestNoteLen {
		return nil, &ValidationError{Reason: fmt.Sprintf("note exceeds %d characters", MaxRequestNoteLen)}
	}

	req := &Request{
		ID:          uuid.NewString(),
		Artist:      artist,
		Title:       title,
		Genre:       strings.TrimSpace(genre),
		Message:     strings.TrimSpace(note),
		SubmittedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	return req, nil
}

// Vote counts one vote from voterID on a request. Repeat votes from the
// same voter are ignored; there is no un-vote. Returns the new count.
func (r *Relay) Vote(requestID, voterID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var req *Request
	for _, candidate := range r.requests {
		if candidate.ID == requestID {
			req = candidate
			break
		}
	}
	if req == nil {
		return 0, &ValidationError{Reason: "unknown track request"}
	}

	seen, ok := r.voters[requestID]
	if !ok {
		seen = make(map[string]struct{})
		r.voters[requestID] = seen
	}
	if _, voted := seen[voterID]; voted {
		return req.Votes, nil
	}
	seen[voterID] = struct{}{}
	req.Votes++
	return req.Votes, nil
}

// Requests returns the track requests in submission order.
func (r *Relay) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, *req)
	}
	return out
}
