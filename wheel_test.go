package main

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSlices(n int) []Slice {
	slices := make([]Slice, n)
	for i := range slices {
		slices[i] = Slice{Key: fmt.Sprintf("k%d", i), Text: fmt.Sprintf("slice %d", i)}
	}

	return slices
}

func TestSelectedIndex(t *testing.T) {
	cases := []struct {
		rotation float64
		n        int
		want     int
	}{
		{0, 4, 0},
		{90, 4, 3},
		{180, 4, 2},
		{270, 4, 1},
		{360, 4, 0},
		{-90, 4, 1},
		{270 + 720, 4, 1},
		{45, 8, 7},
		{100, 3, 2},
		{359.9, 4, 0},
		{123.4, 1, 0},
		{500, 0, 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, selectedIndex(tc.rotation, tc.n),
			"rotation=%v n=%d", tc.rotation, tc.n)
	}
}

func TestIdleRotation(t *testing.T) {
	ticks := 0
	w := newWheel(func() { ticks++ })
	w.SetSlices(testSlices(4))

	now := time.Unix(0, 0)
	w.Advance(now)
	require.Zero(t, w.Rotation())

	// 0.01 degrees per millisecond.
	w.Advance(now.Add(time.Second))
	assert.InDelta(t, 10.0, w.Rotation(), 1e-9)

	w.Advance(now.Add(2 * time.Second))
	assert.InDelta(t, 20.0, w.Rotation(), 1e-9)

	assert.Zero(t, ticks, "idle drift must not tick")
	assert.False(t, w.Spinning())
}

func TestStartSpinGuards(t *testing.T) {
	w := newWheel(nil)
	now := time.Unix(0, 0)
	rng := rand.New(rand.NewSource(1))

	require.False(t, w.StartSpin(now, time.Second, rng), "no slices, nothing to select")

	w.SetSlices(testSlices(3))
	require.True(t, w.StartSpin(now, time.Second, rng))
	require.True(t, w.Spinning())
	require.False(t, w.StartSpin(now, time.Second, rng), "spin already running")

	// Slice changes mid-spin are ignored so the selection refers to the
	// list the spin started with.
	w.SetSlices(testSlices(7))
	require.Len(t, w.Slices(), 3)
}

func TestIdleFrozenDuringSpin(t *testing.T) {
	w := newWheel(nil)
	w.SetSlices(testSlices(4))

	now := time.Unix(0, 0)
	w.Advance(now)
	w.Advance(now.Add(time.Second))
	idleBefore := w.idle
	require.InDelta(t, 10.0, idleBefore, 1e-9)

	rng := rand.New(rand.NewSource(2))
	require.True(t, w.StartSpin(now.Add(time.Second), time.Second, rng))

	w.Advance(now.Add(1500 * time.Millisecond))
	assert.Equal(t, idleBefore, w.idle, "idle component frozen mid-spin")

	_, completed := w.Advance(now.Add(2 * time.Second))
	require.True(t, completed)
	assert.Equal(t, idleBefore, w.idle)

	// Drift resumes from completion time, not from spin start.
	w.Advance(now.Add(3 * time.Second))
	assert.InDelta(t, idleBefore+10.0, w.idle, 1e-9)
}

func TestSpinLandsOnTarget(t *testing.T) {
	w := newWheel(nil)
	w.SetSlices(testSlices(4))

	now := time.Unix(0, 0)
	w.Advance(now)

	rng := rand.New(rand.NewSource(3))
	require.True(t, w.StartSpin(now, time.Second, rng))

	selected, completed := w.Advance(now.Add(time.Second))
	require.True(t, completed)
	require.False(t, w.Spinning())

	total := w.Rotation()
	assert.GreaterOrEqual(t, total, float64(minRotations*360))
	assert.Less(t, total, float64(maxRotations*360))
	assert.Equal(t, selectedIndex(total, 4), selected)

	// A completed spin stays put until the next idle advance.
	again, completed := w.Advance(now.Add(time.Second))
	require.False(t, completed)
	require.Zero(t, again)
}

func TestSpinDeterministicSeed(t *testing.T) {
	run := func() (int, float64) {
		w := newWheel(nil)
		w.SetSlices(testSlices(6))

		now := time.Unix(0, 0)
		w.Advance(now)

		rng := rand.New(rand.NewSource(99))
		require.True(t, w.StartSpin(now, 5*time.Second, rng))

		selected, completed := w.Advance(now.Add(5 * time.Second))
		require.True(t, completed)

		return selected, w.Rotation()
	}

	firstIdx, firstRot := run()
	secondIdx, secondRot := run()
	assert.Equal(t, firstIdx, secondIdx)
	assert.Equal(t, firstRot, secondRot)
}

func TestSpinTicksOnBoundaries(t *testing.T) {
	ticks := 0
	w := newWheel(func() { ticks++ })
	w.SetSlices(testSlices(4))

	now := time.Unix(0, 0)
	w.Advance(now)

	rng := rand.New(rand.NewSource(4))
	require.True(t, w.StartSpin(now, time.Second, rng))

	for i := 1; i <= 20; i++ {
		w.Advance(now.Add(time.Duration(i) * 50 * time.Millisecond))
	}

	require.False(t, w.Spinning())

	// At least two full turns across four slices means at least eight
	// boundary crossings, whatever the easing does in between.
	assert.GreaterOrEqual(t, ticks, 8)
}

// TestSpinUniformity spins a few thousand times from drifting start angles
// and checks each slice is selected close to 1/N of the time.
func TestSpinUniformity(t *testing.T) {
	const (
		spins = 6000
		n     = 8
	)

	w := newWheel(nil)
	w.SetSlices(testSlices(n))

	rng := rand.New(rand.NewSource(7))
	now := time.Unix(0, 0)
	w.Advance(now)

	counts := make([]int, n)

	for i := 0; i < spins; i++ {
		// Let the wheel idle a random while so start angles vary.
		now = now.Add(time.Duration(rng.Intn(10000)) * time.Millisecond)
		w.Advance(now)

		require.True(t, w.StartSpin(now, 5*time.Second, rng))

		now = now.Add(5 * time.Second)
		selected, completed := w.Advance(now)
		require.True(t, completed)
		counts[selected]++
	}

	expected := float64(spins) / n
	for i, c := range counts {
		assert.InDelta(t, expected, float64(c), expected*0.2, "slice %d", i)
	}
}

func TestAnticipateEndpoints(t *testing.T) {
	assert.InDelta(t, 0.0, anticipate(0), 1e-9)
	assert.InDelta(t, 1.0, anticipate(1), 1e-3)

	// The wind-up dips below the start before releasing.
	dipped := false
	for p := 0.0; p < 0.5; p += 0.01 {
		if anticipate(p) < 0 {
			dipped = true
			break
		}
	}
	assert.True(t, dipped)
}

func TestTaskTiming(t *testing.T) {
	start := time.Unix(100, 0)
	tk := &task{start: start, duration: 4 * time.Second}

	assert.Zero(t, tk.fraction(start.Add(-time.Second)))
	assert.InDelta(t, 0.5, tk.fraction(start.Add(2*time.Second)), 1e-9)
	assert.Equal(t, 1.0, tk.fraction(start.Add(10*time.Second)))

	assert.False(t, tk.done(start.Add(3*time.Second)))
	assert.True(t, tk.done(start.Add(4*time.Second)))

	assert.Equal(t, time.Second, tk.remaining(start.Add(3*time.Second)))
	assert.Zero(t, tk.remaining(start.Add(5*time.Second)))
}
