package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorRoster(t *testing.T) {
	m := newMirror()

	m.Apply(Event{Collection: CollectionRoster, Kind: EventInserted, Row: Participant{Identity: "a"}})
	m.Apply(Event{Collection: CollectionRoster, Kind: EventInserted, Row: Participant{Identity: "b", Name: "Bob"}})

	// Redelivered inserts (snapshot overlap) must not duplicate rows.
	m.Apply(Event{Collection: CollectionRoster, Kind: EventInserted, Row: Participant{Identity: "a"}})
	require.Len(t, m.Roster(), 2)

	m.Apply(Event{Collection: CollectionRoster, Kind: EventUpdated, Row: Participant{Identity: "a", Name: "Alice"}})
	p, ok := m.Find("a")
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Name)

	roster := m.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, Identity("a"), roster[0].Identity, "insertion order preserved across updates")

	m.Apply(Event{Collection: CollectionRoster, Kind: EventDeleted, Row: Participant{Identity: "a", Name: "Alice"}})
	_, ok = m.Find("a")
	require.False(t, ok)
	require.Len(t, m.Roster(), 1)
}

func TestMirrorEligibleRoster(t *testing.T) {
	m := newMirror()
	m.Apply(Event{Collection: CollectionRoster, Kind: EventInserted, Row: Participant{Identity: "a"}})
	m.Apply(Event{Collection: CollectionRoster, Kind: EventInserted, Row: Participant{Identity: "b", Name: "Bob"}})
	m.Apply(Event{Collection: CollectionRoster, Kind: EventInserted, Row: Participant{Identity: "c"}})

	eligible := m.EligibleRoster()
	require.Len(t, eligible, 1)
	assert.Equal(t, "Bob", eligible[0].Name)

	// Naming a participant makes them eligible in place.
	m.Apply(Event{Collection: CollectionRoster, Kind: EventUpdated, Row: Participant{Identity: "a", Name: "Alice"}})
	eligible = m.EligibleRoster()
	require.Len(t, eligible, 2)
	assert.Equal(t, "Alice", eligible[0].Name)
}

func TestMirrorActions(t *testing.T) {
	m := newMirror()
	m.Apply(Event{Collection: CollectionActions, Kind: EventInserted, Row: ActionEntry{Owner: "a", Text: "Sing"}})
	m.Apply(Event{Collection: CollectionActions, Kind: EventInserted, Row: ActionEntry{Owner: "a", Text: "Sing"}})
	m.Apply(Event{Collection: CollectionActions, Kind: EventInserted, Row: ActionEntry{Owner: "b", Text: "Sing"}})

	require.Len(t, m.Actions(), 3)

	// Deletion matches owner plus text and removes a single entry.
	m.Apply(Event{Collection: CollectionActions, Kind: EventDeleted, Row: ActionEntry{Owner: "a", Text: "Sing"}})
	actions := m.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, Identity("a"), actions[0].Owner)
	assert.Equal(t, Identity("b"), actions[1].Owner)

	m.Apply(Event{Collection: CollectionActions, Kind: EventDeleted, Row: ActionEntry{Owner: "c", Text: "Sing"}})
	require.Len(t, m.Actions(), 2, "unknown owner must not match")
}

func TestMirrorQueueKeyedByIdentity(t *testing.T) {
	m := newMirror()
	m.Apply(Event{Collection: CollectionQueue, Kind: EventInserted, Row: QueueEntry{
		Identity:    "a",
		Participant: Participant{Identity: "a", Name: "Old Name"},
	}})
	m.Apply(Event{Collection: CollectionQueue, Kind: EventInserted, Row: QueueEntry{
		Identity:    "a",
		Participant: Participant{Identity: "a", Name: "Old Name"},
	}})
	require.Len(t, m.Queue(), 1, "duplicate queue inserts collapse")

	// The delete's embedded snapshot differs from what the mirror holds;
	// matching is by identity, so it must still remove the entry.
	m.Apply(Event{Collection: CollectionQueue, Kind: EventDeleted, Row: QueueEntry{
		Identity:    "a",
		Participant: Participant{Identity: "a", Name: "Renamed Since"},
	}})
	require.Empty(t, m.Queue())
}

// TestMirrorRebuildFromWire feeds a store's event stream through the wire
// encoding and back into a mirror, then checks the replica matches.
func TestMirrorRebuildFromWire(t *testing.T) {
	s := newStore()
	m := newMirror()

	relay := func(events []Event) {
		for _, ev := range events {
			msg, err := encodeEvent(ev)
			require.NoError(t, err)

			decoded, err := decodeEvent(msg)
			require.NoError(t, err)

			m.Apply(decoded)
		}
	}

	relay(s.Connect("a"))
	relay(s.Connect("b"))

	events, err := s.Rename("a", "Alice")
	require.NoError(t, err)
	relay(events)

	events, err = s.AddAction("a", "Sing a song")
	require.NoError(t, err)
	relay(events)

	relay(s.JoinQueue("a"))
	relay(s.JoinQueue("b"))
	relay(s.PopQueue())

	roster := m.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, "Alice", roster[0].Name)

	require.Len(t, m.Actions(), 1)

	queue := m.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, Identity("b"), queue[0].Identity)
}
