package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/baddbeatz/streamcast/internal/platform"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OBS       OBSConfig       `mapstructure:"obs"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Log       LogConfig       `mapstructure:"log"`

	platformKeys map[platform.Key]string
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type OBSConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type ChatConfig struct {
	HistoryLimit  int  `mapstructure:"history_limit"`
	SeedDemo      bool `mapstructure:"seed_demo"`
	MaxMessageLen int  `mapstructure:"max_message_len"`
}

// TelemetryConfig holds the viewer-facing refresh cadences. The intervals
// are a deliberate design decision carried over from the original overlay
// behaviour, not incidental values.
type TelemetryConfig struct {
	ViewerInterval   time.Duration `mapstructure:"viewer_interval"`
	BPMInterval      time.Duration `mapstructure:"bpm_interval"`
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
}

// StreamConfig describes the OBS provisioning done after connect.
type StreamConfig struct {
	DJName       string        `mapstructure:"dj_name"`
	Scenes       []string      `mapstructure:"scenes"`
	AudioSources []AudioSource `mapstructure:"audio_sources"`
	BPMSource    string        `mapstructure:"bpm_source"`
	TrackSource  string        `mapstructure:"track_source"`
}

type AudioSource struct {
	Name     string `mapstructure:"name"`
	DeviceID string `mapstructure:"device_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads config.yaml (if present) plus environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("obs.address", "OBS_ADDRESS")
	v.BindEnv("obs.password", "OBS_PASSWORD")
	v.BindEnv("platforms.twitch.stream_key", "TWITCH_STREAM_KEY")
	v.BindEnv("platforms.youtube.stream_key", "YOUTUBE_STREAM_KEY")
	v.BindEnv("platforms.facebook.stream_key", "FACEBOOK_STREAM_KEY")
	v.BindEnv("platforms.tiktok.stream_key", "TIKTOK_STREAM_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: rely on defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.platformKeys = map[platform.Key]string{
		platform.Twitch:   v.GetString("platforms.twitch.stream_key"),
		platform.YouTube:  v.GetString("platforms.youtube.stream_key"),
		platform.Facebook: v.GetString("platforms.facebook.stream_key"),
		platform.TikTok:   v.GetString("platforms.tiktok.stream_key"),
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("obs.address", "localhost:4444")
	v.SetDefault("obs.password", "")
	v.SetDefault("obs.call_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "54s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("chat.history_limit", 100)
	v.SetDefault("chat.max_message_len", 200)
	v.SetDefault("chat.seed_demo", false)
	v.SetDefault("telemetry.viewer_interval", "30s")
	v.SetDefault("telemetry.bpm_interval", "5s")
	v.SetDefault("telemetry.liveness_interval", "60s")
	v.SetDefault("stream.dj_name", "TheBadGuyHimself")
	v.SetDefault("stream.scenes", []string{
		"DJ Performance",
		"Track Transition",
		"Chat Interaction",
		"BPM Display",
		"Genre Showcase",
	})
	v.SetDefault("stream.bpm_source", "BPM Display")
	v.SetDefault("stream.track_source", "Track Info")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Platforms builds the platform registry: the built-in table with stream
// keys filled in from configuration.
func (c *Config) Platforms() *platform.Registry {
	descriptors := platform.Defaults()
	for i := range descriptors {
		descriptors[i].StreamKey = c.platformKeys[descriptors[i].Key]
	}
	return platform.New(descriptors)
}

// AudioSourcesOrDefault returns the configured audio capture sources, or
// the standard DJ pair when none are configured.
func (c *Config) AudioSourcesOrDefault() []AudioSource {
	if len(c.Stream.AudioSources) > 0 {
		return c.Stream.AudioSources
	}
	return []AudioSource{
		{Name: "DJ Mixer", DeviceID: "default"},
		{Name: "Microphone", DeviceID: "default"},
	}
}
