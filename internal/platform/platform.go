package platform

import (
	"fmt"
	"net/url"
	"strings"
)

// Key identifies a supported streaming platform.
type Key string

const (
	Twitch   Key = "twitch"
	YouTube  Key = "youtube"
	Facebook Key = "facebook"
	TikTok   Key = "tiktok"
)

// AllKeys lists the supported platforms in display order.
var AllKeys = []Key{Twitch, YouTube, Facebook, TikTok}

// ParseKey validates a raw platform name.
func ParseKey(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKeys {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Descriptor is the static description of one platform: where OBS pushes
// RTMP, how the viewer page embeds the player, and whether native chat
// exists. Immutable after registry construction.
type Descriptor struct {
	Key         Key
	DisplayName string
	RTMPBaseURL string
	EmbedURL    string
	ChatURL     string
	ChatCapable bool
	StreamKey   string
}

// Configured reports whether a stream key is present for this platform.
func (d Descriptor) Configured() bool {
	return d.StreamKey != ""
}

// Registry holds the platform table. Read-only after New.
type Registry struct {
	byKey map[Key]Descriptor
	order []Key
}

func New(descriptors []Descriptor) *Registry {
	r := &Registry{byKey: make(map[Key]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, dup := r.byKey[d.Key]; dup {
			continue
		}
		r.byKey[d.Key] = d
		r.order = append(r.order, d.Key)
	}
	return r
}

// Defaults returns the built-in platform table with empty stream keys.
// Stream keys are filled in from configuration.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			Key:         Twitch,
			DisplayName: "Twitch",
			RTMPBaseURL: "rtmp://live.twitch.tv/live/",
			EmbedURL:    "https://player.twitch.tv/?channel={channel}&parent={parent}&autoplay=false&muted=false",
			ChatURL:     "https://www.twitch.tv/embed/{channel}/chat",
			ChatCapable: true,
		},
		{
			Key:         YouTube,
			DisplayName: "YouTube Live",
			RTMPBaseURL: "rtmp://a.rtmp.youtube.com/live2/",
			EmbedURL:    "https://www.youtube.com/embed/{id}?autoplay=0&enablejsapi=1",
			ChatURL:     "https://www.youtube.com/live_chat",
			ChatCapable: true,
		},
		{
			Key:         Facebook,
			DisplayName: "Facebook Live",
			RTMPBaseURL: "rtmps://live-api-s.facebook.com:443/rtmp/",
			EmbedURL:    "https://www.facebook.com/plugins/video.php?href={url}&width=100%25&show_text=false",
			ChatCapable: false,
		},
		{
			Key:         TikTok,
			DisplayName: "TikTok Live",
			RTMPBaseURL: "rtmp://push.tiktokcdn.com/live/",
			EmbedURL:    "https://www.tiktok.com/embed/live/{id}?autoplay=0&controls=1",
			ChatURL:     "https://www.tiktok.com/live_chat",
			ChatCapable: true,
		},
	}
}

// Get returns the descriptor for a key.
func (r *Registry) Get(key Key) (Descriptor, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// Keys returns platform keys in registration order.
func (r *Registry) Keys() []Key {
	out := make([]Key, len(r.order))
	copy(out, r.order)
	return out
}

// Configured reports whether the platform exists and has a stream key.
func (r *Registry) Configured(key Key) bool {
	d, ok := r.byKey[key]
	return ok && d.Configured()
}

// EmbedParams carries the per-stream values substituted into embed URLs.
type EmbedParams struct {
	Channel string // twitch channel name
	VideoID string // youtube/tiktok stream or video id
	PageURL string // facebook video page url
	Parent  string // hostname embedding the twitch player
}

// BuildEmbedURL expands the descriptor's embed template for one stream.
func (d Descriptor) BuildEmbedURL(p EmbedParams) string {
	replacer := strings.NewReplacer(
		"{channel}", url.QueryEscape(p.Channel),
		"{id}", url.QueryEscape(p.VideoID),
		"{url}", url.QueryEscape(p.PageURL),
		"{parent}", url.QueryEscape(p.Parent),
	)
	return replacer.Replace(d.EmbedURL)
}
