package engine

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies where an event entered the system.
type Source string

const (
	SourceSocket   Source = "socket"
	SourceIdle     Source = "idle"
	SourcePrompt   Source = "prompt"
	SourceInternal Source = "internal"
)

// Well-known event names. rfid_scan comes from the RFID plugin over the
// socket; the idle monitor synthesizes the rest. Any other name is still a
// valid event — it just only matters if the event map binds it.
const (
	EventRFIDScan       = "rfid_scan"
	EventUserReturn     = "user_return"
	EventScreensaverOn  = "screensaver_on"
	EventScreensaverOff = "screensaver_off"
	EventIdleLong       = "idle_long"
	EventLookAround     = "look_around"
)

// Reserved state names the engine forces outside the event map.
const (
	StateLevelUp     = "LEVELUP"
	StateSadFallback = "SAD"
)

// Event is one named trigger delivered to the engine.
type Event struct {
	ID     string
	Type   string
	Source Source
	At     time.Time
}

// NewEvent stamps a fresh event with an ID and timestamp.
func NewEvent(typ string, src Source) Event {
	return Event{
		ID:     uuid.New().String(),
		Type:   typ,
		Source: src,
		At:     time.Now().UTC(),
	}
}
