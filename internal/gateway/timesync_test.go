package gateway

import (
	"testing"

	"github.com/dustnet/dustnet/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestAdjustTime(t *testing.T) {
	t.Parallel()
	base := clock.WallClock{Year: 24, Month: 3, Day: 30, Hour: 18, Minute: 25}
	with := func(f func(w *clock.WallClock)) clock.WallClock {
		w := base
		f(&w)
		return w
	}
	type Case struct {
		name   string
		now    clock.WallClock
		toSend clock.WallClock
		expect clock.WallClock
	}
	cases := []Case{
		{"seconds-carry-1",
			with(func(w *clock.WallClock) { w.Second = 10 }),
			with(func(w *clock.WallClock) { w.Second = 0 }),
			with(func(w *clock.WallClock) { w.Second = 21 })},
		{"tenths-6-no-extra-carry",
			with(func(w *clock.WallClock) { w.Second = 10; w.Ticks = 69 }),
			with(func(w *clock.WallClock) { w.Second = 0 }),
			with(func(w *clock.WallClock) { w.Second = 21 })},
		{"tenths-7-extra-carry",
			with(func(w *clock.WallClock) { w.Second = 10; w.Ticks = 70 }),
			with(func(w *clock.WallClock) { w.Second = 0 }),
			with(func(w *clock.WallClock) { w.Second = 22 })},
		{"one-second-latency",
			with(func(w *clock.WallClock) { w.Second = 11 }),
			with(func(w *clock.WallClock) { w.Second = 10 }),
			with(func(w *clock.WallClock) { w.Second = 13 })},
		{"seconds-modulo",
			with(func(w *clock.WallClock) { w.Second = 50 }),
			with(func(w *clock.WallClock) { w.Second = 20 }),
			with(func(w *clock.WallClock) { w.Second = 21 })},
		{"seconds-negative-wraps",
			with(func(w *clock.WallClock) { w.Second = 0 }),
			with(func(w *clock.WallClock) { w.Second = 59 }),
			with(func(w *clock.WallClock) { w.Second = 198 })},
		{"minute-doubled-delta",
			with(func(w *clock.WallClock) { w.Minute = 30 }),
			with(func(w *clock.WallClock) { w.Minute = 20 }),
			with(func(w *clock.WallClock) { w.Minute = 40; w.Second = 1 })},
		{"minute-negative-wraps",
			with(func(w *clock.WallClock) { w.Minute = 5 }),
			with(func(w *clock.WallClock) { w.Minute = 50 }),
			with(func(w *clock.WallClock) { w.Minute = 216; w.Second = 1 })},
		{"stale-zero-request",
			base,
			clock.WallClock{},
			clock.WallClock{Year: 48, Month: 6, Day: 60, Hour: 36, Minute: 50, Second: 1}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			got := AdjustTime(c.now, c.toSend)
			assert.Equal(t, c.expect, got)
			assert.Equal(t, uint8(0), got.Ticks)
		})
	}
}
