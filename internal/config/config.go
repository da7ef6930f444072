// Package config loads the companion's behavior definition: states and their
// animation descriptors, event-to-state mappings, leveling thresholds, and
// idle detection tuning. The definition is a single JSON file loaded once at
// startup; process-level options (paths, display driver) come from the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Kind identifies a behavior descriptor variant. Unknown kinds are rejected
// at load time so the engine's dispatch switch can be exhaustive.
type Kind string

const (
	KindIdleAnimation Kind = "idle_animation"
	KindStatic        Kind = "static"
	KindStaticCycle   Kind = "static_cycle"
)

// Defaults applied when the JSON omits a field.
const (
	DefaultHappyChance = 0.2
	DefaultMinDelay    = 0.5
	DefaultMaxDelay    = 1.5
	DefaultDelay       = 2.0
	DefaultFirstName   = "Rebecca"
)

var defaultLevels = []int{0, 50, 150, 350, 700, 1200}

// Options are process-level settings parsed from REBECCA_* env vars.
// godotenv loads .env before these are read.
type Options struct {
	ConfigPath    string `env:"REBECCA_CONFIG" envDefault:"rebecca.json"`
	XPPath        string `env:"REBECCA_XP_STORE" envDefault:"rebecca_xp.json"`
	SocketPath    string `env:"REBECCA_SOCKET" envDefault:"/tmp/rebecca.sock"`
	JournalDir    string `env:"REBECCA_JOURNAL" envDefault:"rebecca_journal"`
	Display       string `env:"REBECCA_DISPLAY" envDefault:"log"`
	DisplayWidth  int    `env:"REBECCA_DISPLAY_WIDTH" envDefault:"128"`
	DisplayHeight int    `env:"REBECCA_DISPLAY_HEIGHT" envDefault:"64"`
}

// ParseOptions reads Options from the environment.
func ParseOptions() (Options, error) {
	var o Options
	if err := env.Parse(&o); err != nil {
		return Options{}, fmt.Errorf("config: parse options: %w", err)
	}
	return o, nil
}

// State is one behavior descriptor. Which fields are meaningful depends on
// Kind; Validate enforces the per-kind requirements.
type State struct {
	Kind              Kind     `json:"type"`
	Frames            []string `json:"frames,omitempty"`
	Frame             string   `json:"frame,omitempty"`
	MinDelay          float64  `json:"min_delay,omitempty"`
	MaxDelay          float64  `json:"max_delay,omitempty"`
	Delay             float64  `json:"delay,omitempty"`
	HappyChance       *float64 `json:"happy_chance,omitempty"`
	ReturnToIdleAfter float64  `json:"return_to_idle_after,omitempty"`
}

// HappyBias returns the happy-variant probability, defaulted.
func (s State) HappyBias() float64 {
	if s.HappyChance != nil {
		return *s.HappyChance
	}
	return DefaultHappyChance
}

// FrameDelay returns the per-frame delay for static and static_cycle states.
func (s State) FrameDelay() time.Duration {
	if s.Delay > 0 {
		return secondsToDuration(s.Delay)
	}
	return secondsToDuration(DefaultDelay)
}

// AnimationDelays returns the [min, max] sleep bounds for idle_animation.
func (s State) AnimationDelays() (time.Duration, time.Duration) {
	lo, hi := s.MinDelay, s.MaxDelay
	if lo == 0 && hi == 0 {
		lo, hi = DefaultMinDelay, DefaultMaxDelay
	}
	return secondsToDuration(lo), secondsToDuration(hi)
}

// ReturnToIdle returns the dwell timeout, or 0 when the state never reverts.
func (s State) ReturnToIdle() time.Duration {
	return secondsToDuration(s.ReturnToIdleAfter)
}

// Leveling holds XP progression rules. Levels are ascending thresholds;
// the derived level is the highest index whose threshold is met.
type Leveling struct {
	Levels             []int `json:"levels"`
	XPForRFID          int   `json:"xp_for_rfid"`
	XPPerMinuteRunning int   `json:"xp_per_minute_running"`
}

// IdleThresholds classify the system idle duration, in milliseconds.
type IdleThresholds struct {
	ShortIdle       int `json:"short_idle"`
	LongIdle        int `json:"long_idle"`
	ScreensaverIdle int `json:"screensaver_idle"`
}

// Short returns the short-idle threshold as a duration.
func (t IdleThresholds) Short() time.Duration { return time.Duration(t.ShortIdle) * time.Millisecond }

// Long returns the long-idle threshold as a duration.
func (t IdleThresholds) Long() time.Duration { return time.Duration(t.LongIdle) * time.Millisecond }

// Screensaver returns the screensaver threshold as a duration.
func (t IdleThresholds) Screensaver() time.Duration {
	return time.Duration(t.ScreensaverIdle) * time.Millisecond
}

// Name is the character identity block. FirstName defaults to "Rebecca" so a
// headless first run needs no prompt.
type Name struct {
	FirstName string `json:"firstname"`
}

// Config is the full behavior definition, immutable after Load.
type Config struct {
	Name           Name              `json:"name"`
	States         map[string]State  `json:"states"`
	EventMap       map[string]string `json:"event_map"`
	Leveling       Leveling          `json:"leveling"`
	IdleThresholds IdleThresholds    `json:"idle_thresholds"`
	ImagesDir      string            `json:"images_dir"`
}

// Load reads and validates the behavior definition at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name.FirstName == "" {
		c.Name.FirstName = DefaultFirstName
	}
	if len(c.Leveling.Levels) == 0 {
		c.Leveling.Levels = defaultLevels
	}
	if c.Leveling.XPForRFID == 0 {
		c.Leveling.XPForRFID = 1
	}
	if c.Leveling.XPPerMinuteRunning == 0 {
		c.Leveling.XPPerMinuteRunning = 1
	}
	if c.IdleThresholds.ShortIdle == 0 {
		c.IdleThresholds.ShortIdle = 30000
	}
	if c.IdleThresholds.LongIdle == 0 {
		c.IdleThresholds.LongIdle = 300000
	}
	if c.IdleThresholds.ScreensaverIdle == 0 {
		c.IdleThresholds.ScreensaverIdle = 600000
	}
}

// InitialState is the state the engine starts in; it doubles as the
// return-to-idle target.
const InitialState = "LOOK_AROUND"

// Validate rejects definitions the engine cannot safely run: unknown
// descriptor kinds, event mappings to missing states, a missing initial
// state, and malformed per-kind fields.
func (c *Config) Validate() error {
	if len(c.States) == 0 {
		return fmt.Errorf("no states defined")
	}
	if _, ok := c.States[InitialState]; !ok {
		return fmt.Errorf("initial state %q not defined", InitialState)
	}
	for name, st := range c.States {
		switch st.Kind {
		case KindIdleAnimation:
			if len(st.Frames) == 0 {
				return fmt.Errorf("state %q: idle_animation needs frames", name)
			}
			if st.MinDelay > st.MaxDelay {
				return fmt.Errorf("state %q: min_delay %v > max_delay %v", name, st.MinDelay, st.MaxDelay)
			}
		case KindStatic:
			if st.Frame == "" {
				return fmt.Errorf("state %q: static needs a frame", name)
			}
		case KindStaticCycle:
			if len(st.Frames) == 0 {
				return fmt.Errorf("state %q: static_cycle needs frames", name)
			}
		default:
			return fmt.Errorf("state %q: unknown descriptor type %q", name, st.Kind)
		}
		if hc := st.HappyChance; hc != nil && (*hc < 0 || *hc > 1) {
			return fmt.Errorf("state %q: happy_chance %v outside [0,1]", name, *hc)
		}
		if st.ReturnToIdleAfter < 0 {
			return fmt.Errorf("state %q: negative return_to_idle_after", name)
		}
	}
	for ev, target := range c.EventMap {
		if _, ok := c.States[target]; !ok {
			return fmt.Errorf("event %q maps to undefined state %q", ev, target)
		}
	}
	prev := c.Leveling.Levels[0]
	for _, t := range c.Leveling.Levels[1:] {
		if t <= prev {
			return fmt.Errorf("leveling thresholds must ascend, got %v", c.Leveling.Levels)
		}
		prev = t
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
