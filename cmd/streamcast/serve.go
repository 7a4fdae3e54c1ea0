package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baddbeatz/streamcast/internal/chat"
	"github.com/baddbeatz/streamcast/internal/config"
	"github.com/baddbeatz/streamcast/internal/coordinator"
	"github.com/baddbeatz/streamcast/internal/logging"
	"github.com/baddbeatz/streamcast/internal/obs"
	"github.com/baddbeatz/streamcast/internal/platform"
	"github.com/baddbeatz/streamcast/internal/schedule"
	"github.com/baddbeatz/streamcast/internal/server"
	"github.com/baddbeatz/streamcast/internal/viewer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming control server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	registry := cfg.Platforms()

	controller := obs.NewController(cfg.OBS.CallTimeout, log)
	bus := coordinator.NewBus()

	audioSources := make([]obs.AudioSource, 0)
	for _, src := range cfg.AudioSourcesOrDefault() {
		audioSources = append(audioSources, obs.AudioSource{Name: src.Name, CaptureDeviceID: src.DeviceID})
	}

	coord := coordinator.New(controller, registry, coordinator.Options{
		OBSAddress:      cfg.OBS.Address,
		OBSPassword:     cfg.OBS.Password,
		Scenes:          cfg.Stream.Scenes,
		AudioSources:    audioSources,
		BPMSourceName:   cfg.Stream.BPMSource,
		TrackSourceName: cfg.Stream.TrackSource,
	}, bus, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := schedule.NewStaticProvider(demoSchedule())
	telemetry := viewer.NewSimulatedTelemetry(time.Now().UnixNano())
	cadence := viewer.Cadence{
		Viewers:  cfg.Telemetry.ViewerInterval,
		BPM:      cfg.Telemetry.BPMInterval,
		Liveness: cfg.Telemetry.LivenessInterval,
	}

	views := make(map[platform.Key]*viewer.View)
	for _, key := range registry.Keys() {
		desc, _ := registry.Get(key)
		relay := chat.NewRelay(&chat.LogSink{Platform: string(key), Log: log}, cfg.Chat.HistoryLimit, log)
		if cfg.Chat.SeedDemo {
			go relay.SeedDemo(ctx, 10*time.Second)
		}
		view := viewer.New(viewer.StreamDescriptor{
			ID:      string(key) + "-live",
			Title:   cfg.Stream.DJName + " Live",
			Channel: cfg.Stream.DJName,
			DJName:  cfg.Stream.DJName,
			Genre:   "Techno",
		}, desc, relay, telemetry, sched, cadence, log)
		views[key] = view
		go view.Run(ctx)
	}

	hub := server.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	srv := server.New(cfg, coord, hub, views, registry, sched, log)

	err = srv.Run(ctx)
	coord.Disconnect()
	return err
}

// demoSchedule is the stand-in schedule until a real provider exists.
func demoSchedule() []schedule.Stream {
	base := time.Now()
	nextAt := func(weekday time.Weekday, hour int) time.Time {
		t := time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, time.UTC)
		for t.Weekday() != weekday || !t.After(base) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	}
	return []schedule.Stream{
		{
			ID:        "friday-techno",
			Title:     "Friday Night Techno Session",
			StartTime: nextAt(time.Friday, 20),
			Duration:  2 * time.Hour,
			Genre:     "Techno",
			Platform:  platform.Twitch,
		},
		{
			ID:        "weekend-rawstyle",
			Title:     "Weekend Rawstyle Madness",
			StartTime: nextAt(time.Saturday, 21),
			Duration:  90 * time.Minute,
			Genre:     "Rawstyle",
			Platform:  platform.YouTube,
		},
		{
			ID:        "tiktok-hardcore",
			Title:     "TikTok Hardcore Vibes",
			StartTime: nextAt(time.Sunday, 19),
			Duration:  time.Hour,
			Genre:     "Hardcore",
			Platform:  platform.TikTok,
		},
	}
}
