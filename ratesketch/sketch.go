// Package ratesketch provides a thread-safe sliding-window Top-K sketch
// used to flag origins sending an abnormal volume of traffic.
package ratesketch

import (
	"sync"
	"time"

	"github.com/keilerkonzept/topk/sliding"
)

// SketchParams holds the configuration for creating a new TopKSketch.
type SketchParams struct {
	// K is the number of top items to keep track of in the sketch.
	K int
	// WindowSize is the size of the sliding window, measured in ticks. The total
	// theoretical capacity of the window is `WindowSize * TickSize`. For example,
	// if WindowSize is 10 and TickSize is 100, the window capacity is 1000 requests.
	WindowSize int
	// Width is the width of the underlying Count-Min sketch. A larger width
	// reduces the probability of over-counting but increases memory usage.
	Width int
	// Depth is the depth of the underlying Count-Min sketch. A larger depth
	// also reduces over-counting at the cost of more memory.
	Depth int
	// TickSize is the number of messages that constitute a single "tick".
	// After this many messages, the sketch's internal clock advances.
	TickSize uint64
	// MaxSharePercent is the maximum percentage of the total window capacity
	// that a single origin can consume before being flagged. This allows a
	// higher share at lower traffic levels (where a dominant origin is not
	// a threat) and a lower, more aggressive share at higher levels.
	MaxSharePercent int
	// ActivationRPS is the messages-per-second threshold that must be met
	// for flagging to become active, so the policy stays quiet during
	// periods of low adapter traffic.
	ActivationRPS int
}

// TopKSketch provides a thread-safe wrapper around a sliding window sketch
// for tracking frequent items and managing ticking.
type TopKSketch struct {
	mu              sync.Mutex
	sketch          *sliding.Sketch
	tickSize        uint64 // number of request per tick
	tickReq         uint64 // Counter for requests processed since last tick
	lastTickTime    time.Time
	maxSharePercent int
	activationRPS   int
}

// New creates a new thread-safe sketch wrapper.
// It initializes the underlying sliding window sketch with the given parameters.
func New(params SketchParams) *TopKSketch {
	sketchInstance := sliding.New(params.K, params.WindowSize, sliding.WithWidth(params.Width), sliding.WithDepth(params.Depth))

	return &TopKSketch{
		sketch:          sketchInstance,
		tickSize:        params.TickSize,
		lastTickTime:    time.Now(),
		maxSharePercent: params.MaxSharePercent,
		activationRPS:   params.ActivationRPS,
	}
}

// ProcessTick increments the count for the given origin. If a tick
// completes, it checks against the configured thresholds and returns the
// origins whose share of the window crossed MaxSharePercent. Callers never
// drop or block on the result; it is for logging/metrics only.
func (cs *TopKSketch) ProcessTick(origin string) []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.sketch.Incr(origin)
	cs.tickReq++

	if cs.tickReq >= cs.tickSize {
		cs.tickReq = 0
		now := time.Now()
		duration := now.Sub(cs.lastTickTime)
		cs.lastTickTime = now

		var rps float64
		if duration.Seconds() > 0 {
			rps = float64(cs.tickSize) / duration.Seconds()
		}

		// Gate: stay quiet unless traffic is busy enough to matter.
		if rps < float64(cs.activationRPS) {
			cs.sketch.Tick()
			return nil
		}

		windowCapacity := uint64(cs.sketch.WindowSize) * cs.tickSize
		thresholdCount := (windowCapacity * uint64(cs.maxSharePercent)) / 100

		flagged := make([]string, 0)
		// Items checked before ticking, to evaluate the window that just completed.
		for _, item := range cs.sketch.SortedSlice() {
			if item.Count > uint32(thresholdCount) {
				flagged = append(flagged, item.Item)
			} else {
				break // Sorted list allows early exit.
			}
		}

		cs.sketch.Tick()
		return flagged
	}

	return nil
}
