package main

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"time"

	"github.com/jonboulle/clockwork"
)

// frameInterval is how often the orchestrator samples its wheel and
// countdowns and publishes a frame to wheel subscribers.
const frameInterval = 50 * time.Millisecond

// task is one timed activity measured against an injectable clock,
// exposing elapsed fractions instead of wall-clock callbacks. Spins and
// countdowns run on tasks, which keeps the wheel and the orchestrator
// testable without a display or real time.
type task struct {
	start    time.Time
	duration time.Duration
}

func startTask(clock clockwork.Clock, d time.Duration) *task {
	return &task{start: clock.Now(), duration: d}
}

// fraction returns elapsed progress at now, clamped to [0, 1].
func (t *task) fraction(now time.Time) float64 {
	if t.duration <= 0 {
		return 1
	}

	f := float64(now.Sub(t.start)) / float64(t.duration)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}

	return f
}

func (t *task) done(now time.Time) bool {
	return !now.Before(t.start.Add(t.duration))
}

func (t *task) remaining(now time.Time) time.Duration {
	r := t.start.Add(t.duration).Sub(now)
	if r < 0 {
		return 0
	}

	return r
}

// newRNG seeds a per-wheel random source from crypto/rand. Tests inject
// their own seeded source instead.
func newRNG() *mathrand.Rand {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}

	return mathrand.New(mathrand.NewSource(int64(binary.LittleEndian.Uint64(buf[:]))))
}
