// Command rebecca-event publishes a single named event to a running
// companion daemon and exits.
//
// Usage: rebecca-event <event> [socket]
//
// The socket defaults to $REBECCA_SOCKET, then /tmp/rebecca.sock.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const defaultSocket = "/tmp/rebecca.sock"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: rebecca-event <event> [socket]")
		os.Exit(2)
	}
	event := os.Args[1]

	socket := defaultSocket
	if env := os.Getenv("REBECCA_SOCKET"); env != "" {
		socket = env
	}
	if len(os.Args) > 2 {
		socket = os.Args[2]
	}

	if err := send(socket, event); err != nil {
		fmt.Fprintf(os.Stderr, "rebecca-event: %v\n", err)
		os.Exit(1)
	}
}

func send(socket, event string) error {
	addr, err := net.ResolveUnixAddr("unixgram", socket)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", socket, err)
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", socket, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(map[string]string{"type": event})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
