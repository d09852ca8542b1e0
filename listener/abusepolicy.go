package listener

import (
	"log/slog"

	"github.com/dotsama/identity-registrar/ratesketch"
)

// AbusePolicy flags an origin sending an abnormal volume of
// non-matching messages. It never drops or blocks a message: every
// message is still handed to the engine regardless of what this records.
type AbusePolicy struct {
	sketch *ratesketch.TopKSketch
	logger *slog.Logger
}

// NewAbusePolicy wraps a TopKSketch with the given parameters.
func NewAbusePolicy(params ratesketch.SketchParams, logger *slog.Logger) *AbusePolicy {
	return &AbusePolicy{sketch: ratesketch.New(params), logger: logger}
}

// Observe records one non-matching message from origin and logs a warning
// if it crosses the configured share threshold this tick.
func (p *AbusePolicy) Observe(origin string) {
	for _, flagged := range p.sketch.ProcessTick(origin) {
		p.logger.Warn("origin sending abnormal volume of non-matching messages", "origin", flagged)
	}
}
