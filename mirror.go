package main

import "sync"

// Mirror is a client-side read-only replica of the session's collections,
// kept current by applying replicated events in delivery order. Rows are
// matched by their identity fields, never by whole-value comparison, so a
// stale snapshot inside a row cannot break delete matching.
type Mirror struct {
	mu      sync.RWMutex
	roster  map[Identity]Participant
	order   []Identity
	actions []ActionEntry
	queue   []QueueEntry
}

func newMirror() *Mirror {
	return &Mirror{
		roster: make(map[Identity]Participant),
	}
}

// Apply folds one replicated event into the replica.
func (m *Mirror) Apply(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Collection {
	case CollectionRoster:
		p, ok := ev.Row.(Participant)
		if !ok {
			return
		}
		m.applyRoster(ev.Kind, p)
	case CollectionActions:
		a, ok := ev.Row.(ActionEntry)
		if !ok {
			return
		}
		m.applyAction(ev.Kind, a)
	case CollectionQueue:
		q, ok := ev.Row.(QueueEntry)
		if !ok {
			return
		}
		m.applyQueue(ev.Kind, q)
	}
}

func (m *Mirror) applyRoster(kind EventKind, p Participant) {
	switch kind {
	case EventInserted:
		if _, exists := m.roster[p.Identity]; exists {
			return
		}
		m.roster[p.Identity] = p
		m.order = append(m.order, p.Identity)
	case EventUpdated:
		if _, exists := m.roster[p.Identity]; !exists {
			m.order = append(m.order, p.Identity)
		}
		m.roster[p.Identity] = p
	case EventDeleted:
		if _, exists := m.roster[p.Identity]; !exists {
			return
		}
		delete(m.roster, p.Identity)
		for i, id := range m.order {
			if id == p.Identity {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
}

func (m *Mirror) applyAction(kind EventKind, a ActionEntry) {
	switch kind {
	case EventInserted:
		m.actions = append(m.actions, a)
	case EventDeleted:
		for i, entry := range m.actions {
			if entry.Owner == a.Owner && entry.Text == a.Text {
				m.actions = append(m.actions[:i], m.actions[i+1:]...)
				break
			}
		}
	}
}

func (m *Mirror) applyQueue(kind EventKind, q QueueEntry) {
	switch kind {
	case EventInserted:
		for _, entry := range m.queue {
			if entry.Identity == q.Identity {
				return
			}
		}
		m.queue = append(m.queue, q)
	case EventDeleted:
		for i, entry := range m.queue {
			if entry.Identity == q.Identity {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				break
			}
		}
	}
}

// Find returns the mirrored participant for an identity.
func (m *Mirror) Find(id Identity) (Participant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.roster[id]

	return p, ok
}

// Roster returns all mirrored participants in insertion order.
func (m *Mirror) Roster() []Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roster := make([]Participant, 0, len(m.order))
	for _, id := range m.order {
		roster = append(roster, m.roster[id])
	}

	return roster
}

// EligibleRoster returns the participants that may appear on the wheel:
// those that have chosen a name.
func (m *Mirror) EligibleRoster() []Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roster := make([]Participant, 0, len(m.order))
	for _, id := range m.order {
		if p := m.roster[id]; p.Named() {
			roster = append(roster, p)
		}
	}

	return roster
}

// Actions returns the mirrored action catalog in insertion order.
func (m *Mirror) Actions() []ActionEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	actions := make([]ActionEntry, len(m.actions))
	copy(actions, m.actions)

	return actions
}

// Queue returns the mirrored turn queue in arrival order.
func (m *Mirror) Queue() []QueueEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queue := make([]QueueEntry, len(m.queue))
	copy(queue, m.queue)

	return queue
}
