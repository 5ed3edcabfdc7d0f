package main

import (
	"strings"
	"sync"
)

// Store is the authoritative state of one session: the participant roster,
// the action catalog, and the turn queue. Mutations are serialized by the
// mutex and return the events they committed, in commit order, for the hub
// to replicate. Requests that reference unknown or already-present rows
// are silent no-ops and return no events.
type Store struct {
	mu           sync.Mutex
	participants []Participant
	byIdentity   map[Identity]int
	actions      []ActionEntry
	queue        []QueueEntry
}

func newStore() *Store {
	return &Store{
		byIdentity: make(map[Identity]int),
	}
}

// Connect registers a first-time identity with an unset name. Reconnects
// are no-ops; participants are never removed for the life of the session.
func (s *Store) Connect(id Identity) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdentity[id]; ok {
		return nil
	}

	p := Participant{Identity: id}
	s.byIdentity[id] = len(s.participants)
	s.participants = append(s.participants, p)

	return []Event{{Collection: CollectionRoster, Kind: EventInserted, Row: p}}
}

// Find returns the participant for an identity, if one exists.
func (s *Store) Find(id Identity) (Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byIdentity[id]
	if !ok {
		return Participant{}, false
	}

	return s.participants[i], true
}

// Rename sets a participant's display name. Only the identity's own record
// is ever renamed; an unknown identity is a silent no-op.
func (s *Store) Rename(id Identity, name string) ([]Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byIdentity[id]
	if !ok {
		return nil, nil
	}

	old := s.participants[i]
	s.participants[i].Name = name

	return []Event{{Collection: CollectionRoster, Kind: EventUpdated, Row: s.participants[i], Old: old}}, nil
}

// JoinQueue appends a queue entry for the identity, capturing the
// participant as it looks right now. The identity must exist and must not
// already be queued; at-most-one-entry-per-identity is enforced here, not
// by storage.
func (s *Store) JoinQueue(id Identity) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byIdentity[id]
	if !ok {
		return nil
	}

	for _, entry := range s.queue {
		if entry.Identity == id {
			return nil
		}
	}

	entry := QueueEntry{Identity: id, Participant: s.participants[i]}
	s.queue = append(s.queue, entry)

	return []Event{{Collection: CollectionQueue, Kind: EventInserted, Row: entry}}
}

// LeaveQueue removes the identity's queue entry, if it exists and the
// identity is known.
func (s *Store) LeaveQueue(id Identity) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdentity[id]; !ok {
		return nil
	}

	for i, entry := range s.queue {
		if entry.Identity == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)

			return []Event{{Collection: CollectionQueue, Kind: EventDeleted, Row: entry}}
		}
	}

	return nil
}

// PeekQueue returns the earliest-inserted queue entry without removing it.
func (s *Store) PeekQueue() (QueueEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return QueueEntry{}, false
	}

	return s.queue[0], true
}

// PopQueue removes the earliest-inserted queue entry once a turn has been
// served.
func (s *Store) PopQueue() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil
	}

	head := s.queue[0]
	s.queue = s.queue[1:]

	return []Event{{Collection: CollectionQueue, Kind: EventDeleted, Row: head}}
}

// AddAction appends an action entry. Duplicates are allowed.
func (s *Store) AddAction(owner Identity, text string) ([]Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := ActionEntry{Owner: owner, Text: text}
	s.actions = append(s.actions, entry)

	return []Event{{Collection: CollectionActions, Kind: EventInserted, Row: entry}}, nil
}

// RemoveAction deletes the first entry matching owner and text exactly.
// Removing an entry that does not exist is a silent no-op.
func (s *Store) RemoveAction(owner Identity, text string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.actions {
		if entry.Owner == owner && entry.Text == text {
			s.actions = append(s.actions[:i], s.actions[i+1:]...)

			return []Event{{Collection: CollectionActions, Kind: EventDeleted, Row: entry}}
		}
	}

	return nil
}

// Snapshot returns the current rows of a collection as inserted events in
// insertion order, for replay to a new subscriber.
func (s *Store) Snapshot(collection Collection) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []Event

	switch collection {
	case CollectionRoster:
		for _, p := range s.participants {
			events = append(events, Event{Collection: collection, Kind: EventInserted, Row: p})
		}
	case CollectionActions:
		for _, a := range s.actions {
			events = append(events, Event{Collection: collection, Kind: EventInserted, Row: a})
		}
	case CollectionQueue:
		for _, q := range s.queue {
			events = append(events, Event{Collection: collection, Kind: EventInserted, Row: q})
		}
	}

	return events
}
