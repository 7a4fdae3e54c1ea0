package viewer

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/baddbeatz/streamcast/internal/chat"
	"github.com/baddbeatz/streamcast/internal/platform"
	"github.com/baddbeatz/streamcast/internal/schedule"
)

// StreamDescriptor identifies the stream a view embeds.
type StreamDescriptor struct {
	ID      string
	Title   string
	Channel string // twitch channel name
	PageURL string // facebook video page url
	DJName  string
	Genre   string
	Parent  string // hostname embedding the player
}

// Cadence holds the view's refresh intervals.
type Cadence struct {
	Viewers  time.Duration
	BPM      time.Duration
	Liveness time.Duration
}

// Overlay is the display state rendered on top of the embedded player.
// It is component-local: the view's refresh timers write here and never
// touch coordinator state.
type Overlay struct {
	DJName  string
	Genre   string
	Live    bool
	Viewers int
	BPM     int
	Track   string
}

// View is the viewer-facing widget for one platform stream: the player
// embed, the overlay, the chat relay and the schedule display.
type View struct {
	desc      StreamDescriptor
	platform  platform.Descriptor
	relay     *chat.Relay
	telemetry Telemetry
	schedule  schedule.Provider
	cadence   Cadence
	log       zerolog.Logger

	mu       sync.Mutex
	overlay  Overlay
	notified map[string]bool
}

func New(desc StreamDescriptor, pd platform.Descriptor, relay *chat.Relay, tel Telemetry, sched schedule.Provider, cadence Cadence, log zerolog.Logger) *View {
	return &View{
		desc:      desc,
		platform:  pd,
		relay:     relay,
		telemetry: tel,
		schedule:  sched,
		cadence:   cadence,
		log:       log.With().Str("component", "viewer").Str("platform", string(pd.Key)).Logger(),
		overlay: Overlay{
			DJName: desc.DJName,
			Genre:  desc.Genre,
			Live:   true,
		},
		notified: make(map[string]bool),
	}
}

// Chat returns the room's chat relay.
func (v *View) Chat() *chat.Relay { return v.relay }

// EmbedURL builds the platform player URL for this stream.
func (v *View) EmbedURL() string {
	return v.platform.BuildEmbedURL(platform.EmbedParams{
		Channel: v.desc.Channel,
		VideoID: v.desc.ID,
		PageURL: v.desc.PageURL,
		Parent:  v.desc.Parent,
	})
}

// Overlay returns a copy of the current overlay state.
func (v *View) Overlay() Overlay {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.overlay
}

// UpdateTrack sets the overlay's track marquee.
func (v *View) UpdateTrack(artist, title, genre string) {
	v.mu.Lock()
	v.overlay.Track = fmt.Sprintf("%s - %s [%s]", artist, title, genre)
	v.mu.Unlock()
}

// SetBPM sets the overlay BPM directly, for callers fed by the control
// panel's broadcast rather than the polling loop.
func (v *View) SetBPM(bpm int) {
	v.mu.Lock()
	v.overlay.BPM = bpm
	v.mu.Unlock()
}

// Live reports whether the overlay shows the stream as live.
func (v *View) Live() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.overlay.Live
}

// Run drives the periodic refresh loop: viewer count, BPM and a liveness
// check, each on its own cadence. Returns when the stream goes offline or
// ctx is cancelled.
func (v *View) Run(ctx context.Context) {
	viewerTicker := time.NewTicker(v.cadence.Viewers)
	bpmTicker := time.NewTicker(v.cadence.BPM)
	livenessTicker := time.NewTicker(v.cadence.Liveness)
	defer viewerTicker.Stop()
	defer bpmTicker.Stop()
	defer livenessTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-viewerTicker.C:
			count := v.telemetry.ViewerCount(v.platform.Key)
			v.mu.Lock()
			v.overlay.Viewers = count
			v.mu.Unlock()
		case <-bpmTicker.C:
			bpm := v.telemetry.CurrentBPM(v.desc.Genre)
			v.mu.Lock()
			v.overlay.BPM = bpm
			v.mu.Unlock()
		case <-livenessTicker.C:
			if !v.telemetry.Live(v.platform.Key) {
				v.EndStream()
				return
			}
		}
	}
}

// EndStream flips the overlay to offline.
func (v *View) EndStream() {
	v.mu.Lock()
	v.overlay.Live = false
	v.mu.Unlock()
	v.log.Info().Msg("stream ended")
}

// RequestNotify records a one-shot notification intent for an upcoming
// scheduled stream. Returns false when already requested or the stream is
// unknown or already past.
func (v *View) RequestNotify(ctx context.Context, streamID string) bool {
	streams, err := v.schedule.Streams(ctx)
	if err != nil {
		v.log.Warn().Err(err).Msg("schedule lookup failed")
		return false
	}
	var found *schedule.Stream
	for i := range streams {
		if streams[i].ID == streamID {
			found = &streams[i]
			break
		}
	}
	if found == nil || !found.Upcoming(time.Now()) {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.notified[streamID] {
		return false
	}
	v.notified[streamID] = true
	return true
}

// Schedule returns the upcoming/past split of the schedule.
func (v *View) Schedule(ctx context.Context) (upcoming, past []schedule.Stream, err error) {
	streams, err := v.schedule.Streams(ctx)
	if err != nil {
		return nil, nil, err
	}
	upcoming, past = schedule.Split(streams, time.Now())
	return upcoming, past, nil
}

var pageTemplate = template.Must(template.New("watch").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}} — Live</title></head>
<body>
<div id="live-stream-container">
  <iframe src="{{.EmbedURL}}" height="480" width="100%" allowfullscreen="true"></iframe>
  <div class="stream-overlay">
    <div class="dj-info">
      <h3>{{.Overlay.DJName}}</h3>
      <p class="genre-tag">{{.Overlay.Genre}}</p>
    </div>
    <div class="live-stats">
      {{if .Overlay.Live}}<span class="live-indicator">LIVE</span>{{else}}<span class="offline-indicator">OFFLINE</span>{{end}}
      <span class="viewer-count">{{.Overlay.Viewers}} viewers</span>
      <span class="bpm-counter">{{if .Overlay.BPM}}{{.Overlay.BPM}} BPM{{else}}-- BPM{{end}}</span>
    </div>
    <div class="current-track">{{.Overlay.Track}}</div>
  </div>
</div>
{{if .ChatCapable}}
<div id="live-chat-container">
  <div class="chat-messages">
  {{range .Messages}}<div class="chat-message{{if .IsOwn}} own-message{{end}}">
    <span class="username">{{.Username}}</span>
    <span class="timestamp">{{.Timestamp.Format "15:04"}}</span>
    <div class="message-content">{{.Text}}</div>
  </div>{{end}}
  </div>
  <div class="track-requests">
  {{range .Requests}}<div class="track-request">
    <strong>{{.Artist}} - {{.Title}}</strong>
    {{if .Genre}}<span class="genre-tag">{{.Genre}}</span>{{end}}
    <span class="vote-count">{{.Votes}}</span>
  </div>{{end}}
  </div>
</div>
{{end}}
<div id="stream-schedule">
  {{range .Upcoming}}<div class="schedule-item upcoming">
    <span class="schedule-time">{{.StartTime.Format "2006-01-02 15:04"}}</span>
    <h4>{{.Title}}</h4>
    <p>Genre: {{.Genre}} | Duration: {{.Duration.Minutes}} min</p>
    <span class="platform-tag">{{.Platform}}</span>
  </div>{{end}}
  {{range .Past}}<div class="schedule-item past">
    <span class="schedule-time">{{.StartTime.Format "2006-01-02 15:04"}}</span>
    <h4>{{.Title}}</h4>
    <span class="platform-tag">{{.Platform}}</span>
  </div>{{end}}
</div>
</body>
</html>
`))

type pageData struct {
	Title       string
	EmbedURL    string
	Overlay     Overlay
	ChatCapable bool
	Messages    []chat.Message
	Requests    []chat.Request
	Upcoming    []schedule.Stream
	Past        []schedule.Stream
}

// RenderPage writes the full viewer page: embed, overlay, chat, requests
// and schedule.
func (v *View) RenderPage(ctx context.Context, w io.Writer) error {
	upcoming, past, err := v.Schedule(ctx)
	if err != nil {
		v.log.Warn().Err(err).Msg("schedule unavailable")
	}
	data := pageData{
		Title:       v.desc.Title,
		EmbedURL:    v.EmbedURL(),
		Overlay:     v.Overlay(),
		ChatCapable: v.platform.ChatCapable,
		Messages:    v.relay.Messages(),
		Requests:    v.relay.Requests(),
		Upcoming:    upcoming,
		Past:        past,
	}
	return pageTemplate.Execute(w, data)
}
