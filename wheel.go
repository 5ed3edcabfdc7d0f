package main

import (
	"math"
	"math/rand"
	"time"
)

const (
	// Full extra turns added by a spin, drawn uniformly from [min, max).
	minRotations = 2
	maxRotations = 5

	// Idle rotation rate in degrees per millisecond while not spinning.
	idleRate = 0.01
)

// Slice is one equal angular segment of a wheel.
type Slice struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Wheel simulates the spinning selector over continuous time. The visible
// rotation is the sum of a slow idle rotation and the active spin; the
// idle offset at spin start only shifts the start angle, and because the
// extra rotation is drawn uniformly over a whole number of turns, the
// selected slice stays uniform at 1/N regardless of that start angle.
//
// Callers feed time in through Advance; the wheel never sleeps.
type Wheel struct {
	slices []Slice
	onTick func()

	idle     float64 // accumulated idle rotation, degrees
	lastIdle time.Time
	active   float64 // accumulated spin rotation, degrees

	spin     *task
	spinFrom float64
	spinTo   float64
}

// newWheel creates a stopped wheel. onTick fires once per slice boundary
// crossed during an active spin; it may be nil.
func newWheel(onTick func()) *Wheel {
	return &Wheel{onTick: onTick}
}

// SetSlices replaces the slice list. Ignored mid-spin so the selection
// always refers to the list the spin started with.
func (w *Wheel) SetSlices(slices []Slice) {
	if w.spin != nil {
		return
	}

	w.slices = slices
}

func (w *Wheel) Slices() []Slice {
	return w.slices
}

func (w *Wheel) Spinning() bool {
	return w.spin != nil
}

// Rotation is the current combined rotation angle in degrees,
// unnormalized.
func (w *Wheel) Rotation() float64 {
	return w.active + w.idle
}

func (w *Wheel) sliceAngle() float64 {
	n := len(w.slices)
	if n == 0 {
		n = 1
	}

	return 360 / float64(n)
}

// StartSpin begins a spin of duration d from the current rotation, adding
// between minRotations and maxRotations full turns drawn uniformly from
// rng. It reports false if a spin is already running or there is nothing
// to select.
func (w *Wheel) StartSpin(now time.Time, d time.Duration, rng *rand.Rand) bool {
	if w.spin != nil || len(w.slices) == 0 {
		return false
	}

	w.advanceIdle(now)

	extra := (minRotations + rng.Float64()*(maxRotations-minRotations)) * 360

	w.spin = &task{start: now, duration: d}
	w.spinFrom = w.active
	w.spinTo = w.active + extra

	return true
}

// Advance moves the simulation to now. While spinning it eases the active
// rotation toward its target and fires one tick per slice boundary
// crossed; otherwise it drifts the idle rotation. It reports whether the
// spin just finished and, if so, the selected slice index.
func (w *Wheel) Advance(now time.Time) (selected int, completed bool) {
	if w.spin == nil {
		w.advanceIdle(now)

		return 0, false
	}

	before := w.Rotation()

	if w.spin.done(now) {
		// Land exactly on the drawn target.
		w.active = w.spinTo
		w.fireTicks(before, w.Rotation())
		w.spin = nil
		w.lastIdle = now

		return w.selectedIndex(), true
	}

	w.active = w.spinFrom + anticipate(w.spin.fraction(now))*(w.spinTo-w.spinFrom)
	w.fireTicks(before, w.Rotation())

	return 0, false
}

// advanceIdle drifts the idle rotation. It is not called mid-spin, so the
// idle component is frozen while the wheel is actively spinning.
func (w *Wheel) advanceIdle(now time.Time) {
	if w.lastIdle.IsZero() {
		w.lastIdle = now

		return
	}

	deltaMs := float64(now.Sub(w.lastIdle)) / float64(time.Millisecond)
	w.idle = math.Mod(w.idle+deltaMs*idleRate, 360)
	w.lastIdle = now
}

func (w *Wheel) fireTicks(before, after float64) {
	if w.onTick == nil {
		return
	}

	angle := w.sliceAngle()
	crossings := int(math.Abs(math.Floor(after/angle) - math.Floor(before/angle)))

	for i := 0; i < crossings; i++ {
		w.onTick()
	}
}

func (w *Wheel) selectedIndex() int {
	return selectedIndex(w.Rotation(), len(w.slices))
}

// selectedIndex maps a final rotation angle to the slice under the fixed
// pointer at 0°, reading slices clockwise against the wheel's rotation:
//
//	floor(((360 - (rotation mod 360)) mod 360) / sliceWidth) mod N
func selectedIndex(rotation float64, n int) int {
	if n <= 0 {
		return 0
	}

	sliceAngle := 360 / float64(n)
	normalized := math.Mod(math.Mod(rotation, 360)+360, 360)

	return int(math.Floor(math.Mod(360-normalized, 360)/sliceAngle)) % n
}

// anticipate eases a spin: a slight pull back, then a fast decelerating
// release.
func anticipate(p float64) float64 {
	if p *= 2; p < 1 {
		return 0.5 * backIn(p)
	}

	return 0.5 * (2 - math.Pow(2, -10*(p-1)))
}

func backIn(p float64) float64 {
	const overshoot = 1.525

	return p * p * ((overshoot+1)*p - overshoot)
}
