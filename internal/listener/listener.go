// Package listener accepts events from collaborating processes (RFID
// plugin, photo gallery, the one-shot sender) over a unix datagram socket at
// a well-known path. Wire payload: UTF-8 JSON {"type": "<event-name>"}.
package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/tinkerlab/rebecca/internal/engine"
)

const pollTimeout = 500 * time.Millisecond

// Sink receives decoded events. Satisfied by *engine.Engine.
type Sink interface {
	Notify(engine.Event)
}

// Listener is the datagram endpoint worker.
type Listener struct {
	path string
	sink Sink
	conn *net.UnixConn
}

// New binds the datagram socket at path, removing a stale endpoint from a
// previous run first. The socket is made world-writable so any local process
// can publish events.
func New(path string, sink Sink) (*Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("listener: remove stale socket %s: %w", path, err)
	}
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, fmt.Errorf("listener: resolve %s: %w", path, err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("listener: bind %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o666); err != nil {
		conn.Close()
		return nil, fmt.Errorf("listener: chmod %s: %w", path, err)
	}
	return &Listener{path: path, sink: sink, conn: conn}, nil
}

// Run reads datagrams until ctx is cancelled. Reads use a short deadline so
// cancellation is observed promptly. Malformed payloads are logged and
// skipped; the listener never terminates on a bad message.
func (l *Listener) Run(ctx context.Context) {
	defer l.conn.Close()
	defer os.Remove(l.path)

	slog.Info("[LISTENER] listening", "socket", l.path)
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = l.conn.SetReadDeadline(time.Now().Add(pollTimeout))
		n, err := l.conn.Read(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			slog.Warn("[LISTENER] read", "error", err)
			continue
		}

		typ, err := decode(buf[:n])
		if err != nil {
			slog.Warn("[LISTENER] bad datagram dropped", "error", err)
			continue
		}
		l.sink.Notify(engine.NewEvent(typ, engine.SourceSocket))
	}
}

// decode parses one datagram and extracts the event name.
func decode(data []byte) (string, error) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &msg); err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	if msg.Type == "" {
		return "", fmt.Errorf("missing type field")
	}
	return msg.Type, nil
}
