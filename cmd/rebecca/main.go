// Command rebecca is the companion daemon. It animates the character's face
// on a small display, reacts to events published on a unix datagram socket
// (RFID scans, plugin triggers) and to user idle transitions, and maintains
// a persisted XP/level progression.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"

	"github.com/tinkerlab/rebecca/internal/config"
	"github.com/tinkerlab/rebecca/internal/display"
	"github.com/tinkerlab/rebecca/internal/engine"
	"github.com/tinkerlab/rebecca/internal/idle"
	"github.com/tinkerlab/rebecca/internal/journal"
	"github.com/tinkerlab/rebecca/internal/listener"
	"github.com/tinkerlab/rebecca/internal/progress"
)

func main() {
	_ = godotenv.Load(".env")

	opts, err := config.ParseOptions()
	if err != nil {
		log.Fatalf("rebecca: %v", err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.Fatalf("rebecca: %v", err)
	}

	store := progress.Open(opts.XPPath, cfg.Leveling.Levels)

	jnl, err := journal.Open(opts.JournalDir)
	if err != nil {
		// Journal is best-effort; a locked or broken database must not keep
		// the companion off the screen.
		log.Printf("rebecca: journal disabled: %v", err)
		jnl = nil
	} else {
		defer jnl.Close()
	}

	dev, err := openDevice(opts)
	if err != nil {
		log.Fatalf("rebecca: %v", err)
	}
	screen := display.NewScreen(dev, cfg.ImagesDir)

	eng := engine.New(cfg, screen, store, jnl)

	lst, err := listener.New(opts.SocketPath, eng)
	if err != nil {
		log.Fatalf("rebecca: %v", err)
	}
	mon := idle.New(idle.XPrintidle(), eng, cfg.IdleThresholds, idle.DefaultInterval)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nrebecca: shutting down")
		cancel()
	}()

	go eng.Run(ctx)
	go lst.Run(ctx)
	go mon.Run(ctx)

	st := store.Snapshot()
	fmt.Printf("%s is running — level %d (%d xp), events on %s\n",
		cfg.Name.FirstName, st.Level, st.XP, opts.SocketPath)

	if isTerminal() {
		runPrompt(ctx, eng, cancel)
	} else {
		<-ctx.Done()
	}

	// Give the workers a moment to close the socket and flush.
	time.Sleep(200 * time.Millisecond)
}

// openDevice selects the display sink from options.
func openDevice(opts config.Options) (display.Device, error) {
	switch opts.Display {
	case "gc9307":
		return display.OpenGC9307(opts.DisplayWidth, opts.DisplayHeight)
	case "log", "":
		return display.NewLogDevice(opts.DisplayWidth, opts.DisplayHeight), nil
	default:
		return nil, fmt.Errorf("unknown display driver %q", opts.Display)
	}
}

// runPrompt reads event names from the terminal and injects them into the
// engine. "status" prints the live snapshot; "quit" exits.
func runPrompt(ctx context.Context, eng *engine.Engine, cancel context.CancelFunc) {
	rl, err := readline.New("> ")
	if err != nil {
		log.Printf("rebecca: prompt unavailable: %v", err)
		<-ctx.Done()
		return
	}
	defer rl.Close()

	fmt.Println("Type event names (e.g. rfid_scan), 'status', or 'quit'.")
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			cancel()
			return
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
		case "quit", "exit", "q":
			cancel()
			return
		case "status", "s":
			snap := eng.Snapshot()
			fmt.Printf("  state: %s (since %s)\n  xp: %d  level: %d\n",
				snap.State, snap.StateStart.Format(time.Kitchen), snap.XP, snap.Level)
		default:
			eng.Notify(engine.NewEvent(line, engine.SourcePrompt))
		}
	}
}

func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
