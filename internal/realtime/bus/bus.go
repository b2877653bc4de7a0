// Package bus fans part-change notifications out between bomd instances so
// every replica refreshes its hierarchy after a peer mutates the Part service.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const EventPartsChanged = "parts.changed"

// Event announces that a mutation succeeded against the Part service.
type Event struct {
	Type    string    `json:"type"`
	Op      string    `json:"op"`
	PartID  string    `json:"partId,omitempty"`
	ChildID string    `json:"childId,omitempty"`
	Origin  string    `json:"origin"`
	Version uint64    `json:"version"`
	At      time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}

func encodeEvent(ev Event) ([]byte, error) {
	if strings.TrimSpace(ev.Type) == "" {
		ev.Type = EventPartsChanged
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return json.Marshal(ev)
}

func decodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, err
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("event missing type")
	}
	return ev, nil
}
