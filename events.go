package main

import (
	"encoding/json"
	"fmt"
)

// Identity is an opaque token identifying one participant, stable across
// reconnects for the lifetime of a session.
type Identity string

type Collection string

const (
	CollectionRoster  Collection = "roster"
	CollectionActions Collection = "actions"
	CollectionQueue   Collection = "queue"
	CollectionWheel   Collection = "wheel"
)

type EventKind string

const (
	EventInserted EventKind = "inserted"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
)

// Participant is one connected identity. Name stays unset until the first
// rename; unnamed participants never appear on the wheel.
type Participant struct {
	Identity Identity `json:"identity"`
	Name     string   `json:"name,omitempty"`
	IsVIP    bool     `json:"is_vip"`
}

// Named reports whether the participant has chosen a display name and is
// therefore eligible for selection.
func (p Participant) Named() bool {
	return p.Name != ""
}

// ActionEntry is one proposed action. Entries are keyed by owner plus
// exact text; duplicates are allowed.
type ActionEntry struct {
	Owner Identity `json:"owner"`
	Text  string   `json:"text"`
}

// QueueEntry is one waiting turn, carrying the participant as it looked
// when the entry was inserted.
type QueueEntry struct {
	Identity    Identity    `json:"identity"`
	Participant Participant `json:"participant"`
}

// Event is one committed mutation of a collection. Row holds the affected
// Participant, ActionEntry, or QueueEntry; Old is set only for updates.
type Event struct {
	Collection Collection
	Kind       EventKind
	Row        any
	Old        any
}

// ClientMessage is any request a client sends over the session socket.
// Requests are fire-and-forget: the only acknowledgment is the broadcast
// event a successful mutation produces.
type ClientMessage struct {
	Type        string       `json:"type"`
	Collections []Collection `json:"collections,omitempty"` // subscribe / unsubscribe
	Name        string       `json:"name,omitempty"`        // rename
	Text        string       `json:"text,omitempty"`        // add_action / remove_action
	Owner       Identity     `json:"owner,omitempty"`       // remove_action
}

// EventMessage mirrors one committed mutation to a subscriber.
type EventMessage struct {
	Type       string          `json:"type"` // "event"
	Collection Collection      `json:"collection"`
	Kind       EventKind       `json:"kind"`
	Row        json.RawMessage `json:"row"`
	Old        json.RawMessage `json:"old,omitempty"`
}

// SnapshotCompleteMessage marks the end of the snapshot replay that opens
// every subscription; everything after it is a delta.
type SnapshotCompleteMessage struct {
	Type       string     `json:"type"` // "snapshot_complete"
	Collection Collection `json:"collection"`
}

// ErrorMessage reports a validation failure to the requesting client only.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Field   string `json:"field"`
	Message string `json:"message"`
}

// WheelStateMessage is one rendered frame of the host wheel, published to
// subscribers of the wheel channel.
type WheelStateMessage struct {
	Type                string  `json:"type"` // "wheel_state"
	Phase               string  `json:"phase"`
	Slices              []Slice `json:"slices"`
	Rotation            float64 `json:"rotation"`
	Spinning            bool    `json:"spinning"`
	SelectedParticipant string  `json:"selected_participant,omitempty"`
	SelectedAction      string  `json:"selected_action,omitempty"`
	CountdownRemaining  float64 `json:"countdown_remaining,omitempty"`
}

// TickMessage fires once per slice boundary crossed during an active spin,
// for the audio collaborator. It carries no selection information.
type TickMessage struct {
	Type string `json:"type"` // "tick"
}

func encodeEvent(ev Event) (EventMessage, error) {
	row, err := json.Marshal(ev.Row)
	if err != nil {
		return EventMessage{}, err
	}

	msg := EventMessage{
		Type:       "event",
		Collection: ev.Collection,
		Kind:       ev.Kind,
		Row:        row,
	}

	if ev.Old != nil {
		old, err := json.Marshal(ev.Old)
		if err != nil {
			return EventMessage{}, err
		}
		msg.Old = old
	}

	return msg, nil
}

func decodeRow(collection Collection, raw json.RawMessage) (any, error) {
	switch collection {
	case CollectionRoster:
		var p Participant
		err := json.Unmarshal(raw, &p)
		return p, err
	case CollectionActions:
		var a ActionEntry
		err := json.Unmarshal(raw, &a)
		return a, err
	case CollectionQueue:
		var q QueueEntry
		err := json.Unmarshal(raw, &q)
		return q, err
	}

	return nil, fmt.Errorf("unknown collection %q", collection)
}

func decodeEvent(msg EventMessage) (Event, error) {
	ev := Event{
		Collection: msg.Collection,
		Kind:       msg.Kind,
	}

	row, err := decodeRow(msg.Collection, msg.Row)
	if err != nil {
		return Event{}, err
	}
	ev.Row = row

	if len(msg.Old) > 0 {
		old, err := decodeRow(msg.Collection, msg.Old)
		if err != nil {
			return Event{}, err
		}
		ev.Old = old
	}

	return ev, nil
}
