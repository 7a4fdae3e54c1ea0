package chat

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSink) Send(username, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestRelay() (*Relay, *recordingSink) {
	sink := &recordingSink{}
	return NewRelay(sink, DefaultHistoryLimit, zerolog.Nop()), sink
}

func TestSendMessageAppendsAndRelays(t *testing.T) {
	relay, sink := newTestRelay()

	msg, err := relay.SendMessage("RaveQueen", "Can you play some harder stuff?")
	require.NoError(t, err)
	assert.True(t, msg.IsOwn)
	assert.NotEmpty(t, msg.ID)

	messages := relay.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Can you play some harder stuff?", messages[0].Text)
	assert.Equal(t, 1, sink.count())
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	relay, sink := newTestRelay()

	_, err := relay.SendMessage("You", "   ")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, relay.Messages())
	assert.Zero(t, sink.count())
}

func TestSendMessageRejectsOverlong(t *testing.T) {
	relay, sink := newTestRelay()

	_, err := relay.SendMessage("You", strings.Repeat("x", MaxMessageLen+1))
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, relay.Messages())
	assert.Zero(t, sink.count())

	// Exactly at the cap is fine.
	_, err = relay.SendMessage("You", strings.Repeat("x", MaxMessageLen))
	require.NoError(t, err)
}

func TestMessageCapCountsCharactersNotBytes(t *testing.T) {
	relay, _ := newTestRelay()

	// 70 four-byte runes: 280 bytes but well under the character cap.
	_, err := relay.SendMessage("You", strings.Repeat("\U0001F525", 70))
	require.NoError(t, err)

	_, err = relay.SendMessage("You", strings.Repeat("é", MaxMessageLen+1))
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	// Same rule for the request note.
	_, err = relay.SubmitRequest("Charlotte de Witte", "Doppler", "techno", strings.Repeat("ü", MaxRequestNoteLen))
	require.NoError(t, err)
}

func TestModerationBlocksDenyListed(t *testing.T) {
	relay, sink := newTestRelay()

	_, err := relay.SendMessage("You", "this is spam content")
	var moderation *ModerationError
	require.ErrorAs(t, err, &moderation)

	// Never appended, never relayed.
	assert.Empty(t, relay.Messages())
	assert.Zero(t, sink.count())
}

func TestModerationIsCaseInsensitive(t *testing.T) {
	relay, _ := newTestRelay()

	_, err := relay.SendMessage("You", "pure HATE here")
	var moderation *ModerationError
	require.ErrorAs(t, err, &moderation)
}

func TestHistoryBoundedToMostRecent(t *testing.T) {
	relay, _ := newTestRelay()

	for i := 0; i < 150; i++ {
		_, err := relay.Ingest("TechnoFan92", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	messages := relay.Messages()
	require.Len(t, messages, 100)
	// The 100 most recent, in append order.
	assert.Equal(t, "message 50", messages[0].Text)
	assert.Equal(t, "message 149", messages[99].Text)
}

func TestIngestNotRelayedOutward(t *testing.T) {
	relay, sink := newTestRelay()

	msg, err := relay.Ingest("BassLover", "The drop was perfect!")
	require.NoError(t, err)
	assert.False(t, msg.IsOwn)
	assert.Zero(t, sink.count())
}

func TestSubmitRequestValidation(t *testing.T) {
	relay, _ := newTestRelay()

	_, err := relay.SubmitRequest("", "Doppler", "techno", "")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, relay.Requests())

	_, err = relay.SubmitRequest("Charlotte de Witte", "  ", "", "")
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, relay.Requests())

	_, err = relay.SubmitRequest("Charlotte de Witte", "Doppler", "techno", strings.Repeat("y", MaxRequestNoteLen+1))
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, relay.Requests())
}

func TestSubmitRequest(t *testing.T) {
	relay, _ := newTestRelay()

	req, err := relay.SubmitRequest("Charlotte de Witte", "Doppler", "techno", "please!")
	require.NoError(t, err)
	assert.Zero(t, req.Votes)

	requests := relay.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "Charlotte de Witte", requests[0].Artist)
}

func TestVoteIdempotentPerVoter(t *testing.T) {
	relay, _ := newTestRelay()
	req, err := relay.SubmitRequest("Angerfist", "Knock Knock", "hardcore", "")
	require.NoError(t, err)

	votes, err := relay.Vote(req.ID, "client-a")
	require.NoError(t, err)
	assert.Equal(t, 1, votes)

	// Repeat vote from the same client is a no-op.
	votes, err = relay.Vote(req.ID, "client-a")
	require.NoError(t, err)
	assert.Equal(t, 1, votes)

	votes, err = relay.Vote(req.ID, "client-b")
	require.NoError(t, err)
	assert.Equal(t, 2, votes)
}

func TestVoteUnknownRequest(t *testing.T) {
	relay, _ := newTestRelay()
	_, err := relay.Vote("nope", "client-a")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}
