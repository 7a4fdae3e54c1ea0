package viewer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baddbeatz/streamcast/internal/chat"
	"github.com/baddbeatz/streamcast/internal/platform"
	"github.com/baddbeatz/streamcast/internal/schedule"
)

// fakeTelemetry returns fixed values and a settable liveness flag.
type fakeTelemetry struct {
	mu      sync.Mutex
	viewers int
	bpm     int
	live    bool
}

func (f *fakeTelemetry) ViewerCount(platform.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewers
}

func (f *fakeTelemetry) CurrentBPM(string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bpm
}

func (f *fakeTelemetry) Live(platform.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

func (f *fakeTelemetry) setLive(live bool) {
	f.mu.Lock()
	f.live = live
	f.mu.Unlock()
}

func descriptorFor(t *testing.T, key platform.Key) platform.Descriptor {
	t.Helper()
	reg := platform.New(platform.Defaults())
	d, ok := reg.Get(key)
	require.True(t, ok)
	return d
}

func newTestView(t *testing.T, key platform.Key, tel Telemetry, sched schedule.Provider, cadence Cadence) *View {
	t.Helper()
	if sched == nil {
		sched = schedule.NewStaticProvider(nil)
	}
	relay := chat.NewRelay(nil, chat.DefaultHistoryLimit, zerolog.Nop())
	desc := StreamDescriptor{
		ID:      "live-1",
		Title:   "Friday Night Techno",
		Channel: "thebadguyhimself",
		PageURL: "https://www.facebook.com/baddbeatz/videos/1",
		DJName:  "TheBadGuyHimself",
		Genre:   "techno",
		Parent:  "localhost",
	}
	return New(desc, descriptorFor(t, key), relay, tel, sched, cadence, zerolog.Nop())
}

func TestEmbedURLPerPlatform(t *testing.T) {
	tel := &fakeTelemetry{live: true}
	cadence := Cadence{Viewers: time.Hour, BPM: time.Hour, Liveness: time.Hour}

	twitch := newTestView(t, platform.Twitch, tel, nil, cadence)
	assert.Contains(t, twitch.EmbedURL(), "player.twitch.tv/?channel=thebadguyhimself")
	assert.Contains(t, twitch.EmbedURL(), "parent=localhost")

	youtube := newTestView(t, platform.YouTube, tel, nil, cadence)
	assert.Contains(t, youtube.EmbedURL(), "youtube.com/embed/live-1")

	facebook := newTestView(t, platform.Facebook, tel, nil, cadence)
	assert.Contains(t, facebook.EmbedURL(), "facebook.com/plugins/video.php")
}

func TestOverlayUpdates(t *testing.T) {
	tel := &fakeTelemetry{live: true}
	v := newTestView(t, platform.Twitch, tel, nil, Cadence{Viewers: time.Hour, BPM: time.Hour, Liveness: time.Hour})

	assert.True(t, v.Live())
	assert.Equal(t, "TheBadGuyHimself", v.Overlay().DJName)

	v.SetBPM(145)
	v.UpdateTrack("Angerfist", "Knock Knock", "hardcore")

	overlay := v.Overlay()
	assert.Equal(t, 145, overlay.BPM)
	assert.Equal(t, "Angerfist - Knock Knock [hardcore]", overlay.Track)
}

func TestRunRefreshesOverlayAndStopsWhenOffline(t *testing.T) {
	tel := &fakeTelemetry{viewers: 231, bpm: 142, live: true}
	v := newTestView(t, platform.Twitch, tel, nil, Cadence{
		Viewers:  10 * time.Millisecond,
		BPM:      10 * time.Millisecond,
		Liveness: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		v.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		overlay := v.Overlay()
		return overlay.Viewers == 231 && overlay.BPM == 142
	}, 2*time.Second, 5*time.Millisecond)

	// Losing liveness ends the loop and flips the overlay offline.
	tel.setLive(false)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop after stream went offline")
	}
	assert.False(t, v.Live())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	tel := &fakeTelemetry{live: true}
	v := newTestView(t, platform.Twitch, tel, nil, Cadence{Viewers: time.Hour, BPM: time.Hour, Liveness: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		v.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop on cancel")
	}
	// Cancellation is not an offline signal.
	assert.True(t, v.Live())
}

func TestRequestNotifyOneShot(t *testing.T) {
	now := time.Now()
	sched := schedule.NewStaticProvider([]schedule.Stream{
		{ID: "up-1", Title: "Weekend Rawstyle", StartTime: now.Add(24 * time.Hour), Platform: platform.YouTube},
		{ID: "old-1", Title: "Last Friday", StartTime: now.Add(-24 * time.Hour), Platform: platform.Twitch},
	})
	tel := &fakeTelemetry{live: true}
	v := newTestView(t, platform.Twitch, tel, sched, Cadence{Viewers: time.Hour, BPM: time.Hour, Liveness: time.Hour})

	ctx := context.Background()
	assert.True(t, v.RequestNotify(ctx, "up-1"))
	// Second request for the same stream is a no-op.
	assert.False(t, v.RequestNotify(ctx, "up-1"))
	// Past and unknown streams are not notifiable.
	assert.False(t, v.RequestNotify(ctx, "old-1"))
	assert.False(t, v.RequestNotify(ctx, "nope"))
}

func TestRenderPage(t *testing.T) {
	now := time.Now()
	sched := schedule.NewStaticProvider([]schedule.Stream{
		{ID: "up-1", Title: "Weekend Rawstyle", StartTime: now.Add(24 * time.Hour), Genre: "rawstyle", Duration: 2 * time.Hour, Platform: platform.YouTube},
		{ID: "old-1", Title: "Last Friday", StartTime: now.Add(-24 * time.Hour), Platform: platform.Twitch},
	})
	tel := &fakeTelemetry{live: true}
	v := newTestView(t, platform.Twitch, tel, sched, Cadence{Viewers: time.Hour, BPM: time.Hour, Liveness: time.Hour})
	v.SetBPM(150)
	v.UpdateTrack("Charlotte de Witte", "Doppler", "techno")

	_, err := v.Chat().Ingest("TechnoFan92", "This set is incredible!")
	require.NoError(t, err)
	_, err = v.Chat().SubmitRequest("Angerfist", "Knock Knock", "hardcore", "")
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, v.RenderPage(context.Background(), &sb))
	page := sb.String()

	assert.Contains(t, page, "player.twitch.tv")
	assert.Contains(t, page, "TheBadGuyHimself")
	assert.Contains(t, page, "LIVE")
	assert.Contains(t, page, "150 BPM")
	assert.Contains(t, page, "Charlotte de Witte - Doppler [techno]")
	assert.Contains(t, page, "This set is incredible!")
	assert.Contains(t, page, "Angerfist - Knock Knock")
	assert.Contains(t, page, "Weekend Rawstyle")
	assert.Contains(t, page, "Last Friday")
}

func TestRenderPageOmitsChatForChatlessPlatform(t *testing.T) {
	tel := &fakeTelemetry{live: true}
	v := newTestView(t, platform.Facebook, tel, nil, Cadence{Viewers: time.Hour, BPM: time.Hour, Liveness: time.Hour})

	var sb strings.Builder
	require.NoError(t, v.RenderPage(context.Background(), &sb))
	assert.NotContains(t, sb.String(), "live-chat-container")
}

func TestSimulatedTelemetry(t *testing.T) {
	tel := NewSimulatedTelemetry(1)

	for i := 0; i < 20; i++ {
		viewers := tel.ViewerCount(platform.Twitch)
		assert.GreaterOrEqual(t, viewers, 50)
		assert.Less(t, viewers, 550)

		bpm := tel.CurrentBPM("hardcore")
		assert.GreaterOrEqual(t, bpm, 160)
		assert.Less(t, bpm, 200)
	}
	assert.True(t, tel.Live(platform.Twitch))
}
