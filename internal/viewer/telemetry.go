package viewer

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/baddbeatz/streamcast/internal/platform"
)

// Telemetry supplies live viewer counts, BPM and liveness for the overlay.
// Real platform APIs plug in behind this interface.
type Telemetry interface {
	ViewerCount(key platform.Key) int
	CurrentBPM(genre string) int
	Live(key platform.Key) bool
}

// genre-banded BPM ranges used by the simulated source.
var bpmRanges = map[string][2]int{
	"house":    {120, 130},
	"techno":   {130, 150},
	"hardcore": {160, 200},
	"rawstyle": {150, 180},
}

// SimulatedTelemetry is explicit demo scaffolding: random viewer counts
// and genre-plausible BPM values. It stands in until real platform
// telemetry ingestion exists.
type SimulatedTelemetry struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewSimulatedTelemetry(seed int64) *SimulatedTelemetry {
	return &SimulatedTelemetry{rand: rand.New(rand.NewSource(seed))}
}

func (t *SimulatedTelemetry) ViewerCount(platform.Key) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rand.Intn(500) + 50
}

func (t *SimulatedTelemetry) CurrentBPM(genre string) int {
	r, ok := bpmRanges[strings.ToLower(genre)]
	if !ok {
		r = [2]int{120, 150}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rand.Intn(r[1]-r[0]) + r[0]
}

func (t *SimulatedTelemetry) Live(platform.Key) bool { return true }
