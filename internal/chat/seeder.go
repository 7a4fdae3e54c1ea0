package chat

import (
	"context"
	"time"
)

// demo feed shown while no real platform chat is wired up.
var demoMessages = []struct {
	username string
	text     string
}{
	{"TechnoFan92", "This beat is insane!"},
	{"RaveQueen", "Can you play some harder stuff?"},
	{"BassLover", "The drop was perfect!"},
	{"DJ_Apprentice", "What equipment are you using?"},
	{"PartyAnimal", "Greetings from Berlin!"},
	{"HardcoreFan", "More BPM please!"},
	{"EDMVibes", "This is fire!"},
}

// SeedDemo drips the demo messages into the relay, one per interval,
// until the list runs out or ctx is cancelled. Off by default; enabled
// only via configuration for demos.
func (r *Relay) SeedDemo(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for _, m := range demoMessages {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Ingest(m.username, m.text); err != nil {
				r.log.Warn().Err(err).Msg("demo message rejected")
			}
		}
	}
}
