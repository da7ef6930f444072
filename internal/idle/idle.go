// Package idle polls the system-wide user idle duration and synthesizes
// idle, return, and screensaver events for the engine.
package idle

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tinkerlab/rebecca/internal/config"
	"github.com/tinkerlab/rebecca/internal/engine"
)

// DefaultInterval is the poll cadence.
const DefaultInterval = 5 * time.Second

// Sampler measures how long the user has been idle. Implementations may
// shell out to a tool or read a compositor API.
type Sampler func(ctx context.Context) (time.Duration, error)

// XPrintidle samples idle time via the xprintidle tool, which reports
// milliseconds since the last X11 input event.
func XPrintidle() Sampler {
	return func(ctx context.Context) (time.Duration, error) {
		out, err := exec.CommandContext(ctx, "xprintidle").Output()
		if err != nil {
			return 0, fmt.Errorf("idle: xprintidle: %w", err)
		}
		ms, err := strconv.Atoi(strings.TrimSpace(string(out)))
		if err != nil {
			return 0, fmt.Errorf("idle: parse xprintidle output %q: %w", out, err)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
}

// Sink receives synthesized events. Satisfied by *engine.Engine.
type Sink interface {
	Notify(engine.Event)
}

// Monitor is the idle poller worker.
type Monitor struct {
	sample     Sampler
	sink       Sink
	thresholds config.IdleThresholds
	interval   time.Duration
	active     bool
}

// New creates a Monitor. interval <= 0 uses DefaultInterval.
func New(sample Sampler, sink Sink, thresholds config.IdleThresholds, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		sample:     sample,
		sink:       sink,
		thresholds: thresholds,
		interval:   interval,
		active:     true,
	}
}

// Run polls until ctx is cancelled. A sampler failure is logged and the loop
// continues at the same cadence — no backoff, self-healing by repetition.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll classifies one idle sample. The threshold ladder and the separate
// active-flag transition are evaluated independently: a single sample can
// emit both a ladder event and a screensaver_off.
func (m *Monitor) poll(ctx context.Context) {
	d, err := m.sample(ctx)
	if err != nil {
		slog.Warn("[IDLE] sample failed", "error", err)
		return
	}

	switch {
	case d >= m.thresholds.Screensaver():
		m.emit(engine.EventScreensaverOn)
	case d >= m.thresholds.Long():
		m.emit(engine.EventIdleLong)
	case d >= m.thresholds.Short():
		m.emit(engine.EventLookAround)
	}

	if d < m.thresholds.Short() && !m.active {
		m.emit(engine.EventScreensaverOff)
		m.active = true
	} else if d >= m.thresholds.Short() {
		m.active = false
	}
}

func (m *Monitor) emit(typ string) {
	m.sink.Notify(engine.NewEvent(typ, engine.SourceIdle))
}
