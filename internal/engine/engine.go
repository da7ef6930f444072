// Package engine runs the companion's behavior state machine. A single
// goroutine owns all mutable state — current state, timestamps, XP grants —
// and every other worker (socket listener, idle monitor, prompt) delivers
// events through Notify's buffered channel. That ownership is what makes the
// listener/monitor writes race-free: nothing mutates state except the Run
// loop itself.
package engine

import (
	"context"
	"image"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/tinkerlab/rebecca/internal/config"
	"github.com/tinkerlab/rebecca/internal/journal"
	"github.com/tinkerlab/rebecca/internal/progress"
)

const eventBufSize = 64

// happyMarker tags frame names that count as happy variants for the
// idle_animation bias.
const happyMarker = "HAPPY"

// Renderer is the frame-cache/compositor surface the engine draws through.
type Renderer interface {
	Load(name string) (image.Image, error)
	Show(img image.Image) error
}

// Snapshot is a read-only view of the engine's live state.
type Snapshot struct {
	State      string
	StateStart time.Time
	LastInput  time.Time
	XP         int
	Level      int
}

// Engine is the behavior state machine.
type Engine struct {
	cfg    *config.Config
	screen Renderer
	store  *progress.Store
	jnl    *journal.Journal

	events chan Event

	// Tunables; tests shorten these.
	passiveEvery      time.Duration
	idleFallbackAfter time.Duration

	mu          sync.Mutex
	state       string
	stateStart  time.Time
	lastInput   time.Time
	lastPassive time.Time
}

// New creates an Engine in the initial state. jnl may be nil to disable
// journaling.
func New(cfg *config.Config, screen Renderer, store *progress.Store, jnl *journal.Journal) *Engine {
	now := time.Now()
	return &Engine{
		cfg:               cfg,
		screen:            screen,
		store:             store,
		jnl:               jnl,
		events:            make(chan Event, eventBufSize),
		passiveEvery:      time.Minute,
		idleFallbackAfter: 5 * time.Minute,
		state:             config.InitialState,
		stateStart:        now,
		lastInput:         now,
		lastPassive:       now,
	}
}

// Notify delivers an event to the engine. Non-blocking: when the buffer is
// full the event is dropped with a warning rather than stalling the caller.
func (e *Engine) Notify(ev Event) {
	select {
	case e.events <- ev:
	default:
		slog.Warn("[ENGINE] event buffer full — event dropped", "type", ev.Type, "source", ev.Source)
	}
}

// Snapshot returns the current state under a lock. For tests and the
// interactive status command; the Run loop is the only writer.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.store.Snapshot()
	return Snapshot{
		State:      e.state,
		StateStart: e.stateStart,
		LastInput:  e.lastInput,
		XP:         st.XP,
		Level:      st.Level,
	}
}

// Run drives the behavior loop until ctx is cancelled. Pending events are
// always handled before the next render step.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("[ENGINE] running", "state", e.currentState())
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.handle(ev)
			continue
		default:
		}
		e.step(ctx)
	}
}

// handle is the single state-mutation entry point for external events.
func (e *Engine) handle(ev Event) {
	if target, ok := e.cfg.EventMap[ev.Type]; ok {
		e.setState(target)
	}
	switch ev.Type {
	case EventRFIDScan:
		e.grantXP(e.cfg.Leveling.XPForRFID)
	case EventUserReturn, EventScreensaverOff:
		e.grantXP(1)
	}

	e.mu.Lock()
	e.lastInput = time.Now()
	e.mu.Unlock()

	e.jnl.Record(journal.Record{
		ID:     ev.ID,
		Type:   ev.Type,
		Source: string(ev.Source),
		At:     ev.At.Format(time.RFC3339Nano),
	})
}

// grantXP adds XP, persists, and forces the LEVELUP state on a level-up.
func (e *Engine) grantXP(n int) {
	if !e.store.Grant(n) {
		return
	}
	st := e.store.Snapshot()
	slog.Info("[ENGINE] level up", "level", st.Level, "xp", st.XP)
	e.setState(StateLevelUp)
}

// step performs one pass of the behavior loop: passive income, deep-idle
// fallback, return-to-idle, then dispatch on the active descriptor.
func (e *Engine) step(ctx context.Context) {
	now := time.Now()

	e.mu.Lock()
	duePassive := now.Sub(e.lastPassive) > e.passiveEvery
	if duePassive {
		e.lastPassive = now
	}
	deepIdle := now.Sub(e.lastInput) > e.idleFallbackAfter
	e.mu.Unlock()

	if duePassive {
		e.grantXP(e.cfg.Leveling.XPPerMinuteRunning)
	}

	// Deep-idle fallback. Deliberately does not refresh lastInput, so it
	// re-fires each pass until an external event arrives; setState no-ops on
	// an unchanged name, so the net effect is pinning the idle-long state.
	if deepIdle {
		fallback := StateSadFallback
		if target, ok := e.cfg.EventMap[EventIdleLong]; ok {
			fallback = target
		}
		e.setState(fallback)
	}

	name := e.currentState()
	st, ok := e.cfg.States[name]
	if !ok {
		// Unreachable after config validation; don't busy-loop if it happens.
		e.pause(ctx, 100*time.Millisecond)
		return
	}

	if rti := st.ReturnToIdle(); rti > 0 && time.Since(e.startOf()) > rti {
		e.setState(config.InitialState)
		return
	}

	switch st.Kind {
	case config.KindIdleAnimation:
		e.stepIdleAnimation(ctx, st)
	case config.KindStatic:
		e.render(st.Frame)
		e.pause(ctx, st.FrameDelay())
	case config.KindStaticCycle:
		e.stepStaticCycle(ctx, name, st)
	default:
		e.pause(ctx, 100*time.Millisecond)
	}
}

// stepIdleAnimation renders one random frame, preferring a happy variant
// with the configured probability, then sleeps a uniform random delay.
func (e *Engine) stepIdleAnimation(ctx context.Context, st config.State) {
	frame := st.Frames[rand.IntN(len(st.Frames))]
	if rand.Float64() < st.HappyBias() {
		if happy := happyFrames(st.Frames); len(happy) > 0 {
			frame = happy[rand.IntN(len(happy))]
		}
	}
	e.render(frame)

	lo, hi := st.AnimationDelays()
	d := lo
	if hi > lo {
		d = lo + time.Duration(rand.Int64N(int64(hi-lo)))
	}
	e.pause(ctx, d)
}

// stepStaticCycle renders the frame list in order, repeating while the state
// is unchanged. Each frame re-checks for a superseding transition and for
// the dwell timeout.
func (e *Engine) stepStaticCycle(ctx context.Context, entered string, st config.State) {
	rti := st.ReturnToIdle()
	for {
		for _, f := range st.Frames {
			if e.currentState() != entered {
				return
			}
			if rti > 0 && time.Since(e.startOf()) > rti {
				e.setState(config.InitialState)
				return
			}
			e.render(f)
			if !e.pause(ctx, st.FrameDelay()) {
				return
			}
		}
		if !e.pause(ctx, 50*time.Millisecond) {
			return
		}
	}
}

// render draws one named frame. A missing or corrupt asset is a warning and
// the frame is skipped; the caller still sleeps, so a bad asset cannot spin
// the loop.
func (e *Engine) render(name string) {
	img, err := e.screen.Load(name)
	if err != nil {
		slog.Warn("[ENGINE] frame load failed", "frame", name, "error", err)
		return
	}
	if err := e.screen.Show(img); err != nil {
		slog.Warn("[ENGINE] frame show failed", "frame", name, "error", err)
	}
}

// pause sleeps for d but wakes early on an incoming event (handling it) or
// on cancellation. Returns true only when the full duration elapsed.
func (e *Engine) pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case ev := <-e.events:
		e.handle(ev)
		return false
	case <-t.C:
		return true
	}
}

// setState transitions to name and resets the entry timestamp. No-op when
// the state is unchanged, so a re-fired fallback does not reset dwell timers.
func (e *Engine) setState(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == e.state {
		return
	}
	slog.Info("[ENGINE] state", "from", e.state, "to", name)
	e.state = name
	e.stateStart = time.Now()
}

func (e *Engine) currentState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) startOf() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateStart
}

func happyFrames(frames []string) []string {
	var out []string
	for _, f := range frames {
		if strings.Contains(f, happyMarker) {
			out = append(out, f)
		}
	}
	return out
}
