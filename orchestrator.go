package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type phase string

const (
	phaseSelectingParticipant phase = "selecting_participant"
	phaseSelectingAction      phase = "selecting_action"
	phaseShowingResult        phase = "showing_result"
)

// autoSpinDelay is the pause between a phase becoming spinnable and the
// wheel actually launching.
const autoSpinDelay = 500 * time.Millisecond

// Orchestrator runs the host display's turn state machine, exactly one
// instance per session: spin the participant wheel the moment the queue
// has someone waiting, then spin the action wheel, show the result for a
// countdown, pop the queue head, repeat.
//
// It participates in the session like any other client: a local
// subscription feeds its mirror, and the queue pop goes back through the
// hub's request surface. Wheel frames and ticks are published to
// subscribers of the wheel channel.
type Orchestrator struct {
	hub    *Hub
	local  *client
	mirror *Mirror
	clock  clockwork.Clock
	rng    *rand.Rand

	spinDuration time.Duration
	countdown    time.Duration

	phase   phase
	wheel   *Wheel
	pending *task // armed auto-spin delay
	result  *task // result countdown

	selectedParticipant Participant
	haveParticipant     bool
	selectedAction      string
}

func newOrchestrator(h *Hub, clock clockwork.Clock, rng *rand.Rand, spinDuration, countdown time.Duration) *Orchestrator {
	o := &Orchestrator{
		hub:          h,
		mirror:       newMirror(),
		clock:        clock,
		rng:          rng,
		spinDuration: spinDuration,
		countdown:    countdown,
		phase:        phaseSelectingParticipant,
	}

	o.wheel = newWheel(func() {
		select {
		case h.frames <- TickMessage{Type: "tick"}:
		default:
		}
	})

	o.local = h.newLocalClient("")
	h.requests <- request{c: o.local, msg: ClientMessage{
		Type:        "subscribe",
		Collections: []Collection{CollectionRoster, CollectionActions, CollectionQueue},
	}}

	return o
}

func (o *Orchestrator) run(ctx context.Context) {
	ticker := o.clock.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-o.local.send:
			if !ok {
				// The hub dropped us for falling behind; resubscribe and
				// rebuild the replica rather than leaving the wheel dead.
				if !o.reattach(ctx) {
					return
				}

				continue
			}
			o.receive(msg)
		case <-ticker.Chan():
			o.step()
		}
	}
}

// reattach replaces a dropped subscription with a fresh client and an
// empty mirror; the snapshot replay that opens the new subscription
// rebuilds the replica in full.
func (o *Orchestrator) reattach(ctx context.Context) bool {
	log.Warn().Str("session", o.hub.id).Msg("orchestrator fell behind, resubscribing")

	o.mirror = newMirror()

	c := &client{
		id:    uuid.NewString(),
		local: true,
		send:  make(chan any, 256),
	}

	select {
	case o.hub.register <- c:
	case <-ctx.Done():
		return false
	}

	o.local = c

	select {
	case o.hub.requests <- request{c: c, msg: ClientMessage{
		Type:        "subscribe",
		Collections: []Collection{CollectionRoster, CollectionActions, CollectionQueue},
	}}:
	case <-ctx.Done():
		return false
	}

	return true
}

func (o *Orchestrator) receive(msg any) {
	switch m := msg.(type) {
	case EventMessage:
		ev, err := decodeEvent(m)
		if err != nil {
			log.Error().Err(err).Str("session", o.hub.id).Msg("decoding replicated event")

			return
		}
		o.mirror.Apply(ev)
		o.evaluate()
	case SnapshotCompleteMessage:
		o.evaluate()
	}
}

// step advances the simulation by one frame: launch an armed spin, move
// the wheel, settle a finished countdown, publish the frame.
func (o *Orchestrator) step() {
	now := o.clock.Now()

	if o.pending != nil && o.pending.done(now) {
		o.pending = nil
		o.startSpin(now)
	}

	if selected, completed := o.wheel.Advance(now); completed {
		o.spinComplete(selected)
	}

	if o.result != nil && o.result.done(now) {
		o.finishTurn()
	}

	o.publishFrame(now)
}

// evaluate arms an auto-spin when the current phase has work: a non-empty
// queue plus at least one named participant, or a non-empty action
// catalog. Idle otherwise.
func (o *Orchestrator) evaluate() {
	if o.wheel.Spinning() || o.pending != nil || o.result != nil {
		return
	}

	switch o.phase {
	case phaseSelectingParticipant:
		o.wheel.SetSlices(participantSlices(o.mirror.EligibleRoster()))
		if len(o.mirror.Queue()) > 0 && len(o.wheel.Slices()) > 0 {
			o.pending = startTask(o.clock, autoSpinDelay)
		}
	case phaseSelectingAction:
		o.wheel.SetSlices(actionSlices(o.mirror.Actions()))
		if len(o.wheel.Slices()) > 0 {
			o.pending = startTask(o.clock, autoSpinDelay)
		}
	}
}

// startSpin re-checks the phase's conditions against the live mirror; the
// queue may have drained while the delay ran.
func (o *Orchestrator) startSpin(now time.Time) {
	switch o.phase {
	case phaseSelectingParticipant:
		o.wheel.SetSlices(participantSlices(o.mirror.EligibleRoster()))
		if len(o.mirror.Queue()) == 0 || len(o.wheel.Slices()) == 0 {
			return
		}
	case phaseSelectingAction:
		o.wheel.SetSlices(actionSlices(o.mirror.Actions()))
		if len(o.wheel.Slices()) == 0 {
			return
		}
	default:
		return
	}

	if o.wheel.StartSpin(now, o.spinDuration, o.rng) {
		log.Debug().Str("session", o.hub.id).Str("phase", string(o.phase)).Msg("spin started")
	}
}

func (o *Orchestrator) spinComplete(selected int) {
	slices := o.wheel.Slices()
	if selected < 0 || selected >= len(slices) {
		o.evaluate()

		return
	}
	slice := slices[selected]

	switch o.phase {
	case phaseSelectingParticipant:
		if p, ok := o.mirror.Find(Identity(slice.Key)); ok {
			o.selectedParticipant = p
		} else {
			// The participant row went stale mid-spin; keep the snapshot
			// the slice was built from.
			o.selectedParticipant = Participant{Identity: Identity(slice.Key), Name: slice.Text}
		}
		o.haveParticipant = true
		o.phase = phaseSelectingAction

		log.Debug().Str("session", o.hub.id).Str("participant", o.selectedParticipant.Name).Msg("participant selected")

		o.evaluate()
	case phaseSelectingAction:
		o.selectedAction = slice.Text
		o.phase = phaseShowingResult
		o.result = startTask(o.clock, o.countdown)

		log.Debug().Str("session", o.hub.id).Str("action", o.selectedAction).Msg("action selected")
	}
}

// finishTurn ends the served turn: the queue head is popped and the next
// turn arms itself once the deletion echoes back through the mirror.
func (o *Orchestrator) finishTurn() {
	o.result = nil
	o.haveParticipant = false
	o.selectedParticipant = Participant{}
	o.selectedAction = ""
	o.phase = phaseSelectingParticipant

	select {
	case o.hub.requests <- request{c: o.local, msg: ClientMessage{Type: "pop_queue"}}:
	default:
		// Only possible once the hub has stopped accepting requests.
		log.Warn().Str("session", o.hub.id).Msg("dropping queue pop, hub not accepting requests")
	}
}

func (o *Orchestrator) publishFrame(now time.Time) {
	msg := WheelStateMessage{
		Type:     "wheel_state",
		Phase:    string(o.phase),
		Slices:   o.wheel.Slices(),
		Rotation: o.wheel.Rotation(),
		Spinning: o.wheel.Spinning(),
	}

	if o.haveParticipant {
		msg.SelectedParticipant = o.selectedParticipant.Name
	}
	msg.SelectedAction = o.selectedAction

	if o.result != nil {
		msg.CountdownRemaining = o.result.remaining(now).Seconds()
	}

	select {
	case o.hub.frames <- msg:
	default:
		// A stale frame is superseded in one interval anyway.
	}
}

func participantSlices(roster []Participant) []Slice {
	slices := make([]Slice, 0, len(roster))
	for _, p := range roster {
		slices = append(slices, Slice{Key: string(p.Identity), Text: p.Name})
	}

	return slices
}

func actionSlices(actions []ActionEntry) []Slice {
	slices := make([]Slice, 0, len(actions))
	for _, a := range actions {
		slices = append(slices, Slice{Key: a.Text, Text: a.Text})
	}

	return slices
}
