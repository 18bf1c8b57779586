// Package upcoming produces synthetic metrics for the upcoming-features page.
package upcoming

import (
	"math/rand"
	"sync"
	"time"
)

// AutonomyLevels are the values autonomy_level is drawn from.
var AutonomyLevels = []string{"Manual", "Semi-Auto", "Full-Auto"}

// Inclusive ranges.
const (
	MinGasSavings       = 5
	MaxGasSavings       = 20
	MinLatencyReduction = 50
	MaxLatencyReduction = 200
)

// Metrics is the /upcoming/data/ payload. The values are random.
type Metrics struct {
	Timestamp        int64  `json:"timestamp"`
	GasSavings       int    `json:"gas_savings"`
	LatencyReduction int    `json:"latency_reduction"`
	AutonomyLevel    string `json:"autonomy_level"`
}

// Generator draws Metrics from its own random source.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator. A nil source is seeded from the clock.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{rnd: rand.New(src), now: time.Now}
}

// Next returns a fresh sample.
func (g *Generator) Next() Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Metrics{
		Timestamp:        g.now().Unix(),
		GasSavings:       g.between(MinGasSavings, MaxGasSavings),
		LatencyReduction: g.between(MinLatencyReduction, MaxLatencyReduction),
		AutonomyLevel:    AutonomyLevels[g.rnd.Intn(len(AutonomyLevels))],
	}
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.Intn(hi-lo+1)
}
