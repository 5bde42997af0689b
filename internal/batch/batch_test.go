package batch

import (
	"testing"

	"github.com/dustnet/dustnet/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload(t *testing.T) {
	t.Parallel()
	var p Payload
	p.Set(0, 308)
	assert.Equal(t, byte(0x34), p.Low[0])
	assert.Equal(t, byte(0x01), p.High[0])
	assert.Equal(t, uint16(308), p.Sample(0))

	p.Low[59], p.High[59] = 0xff, 0xff
	assert.Equal(t, uint16(0xffff), p.Sample(59))
}

func TestPushFull(t *testing.T) {
	t.Parallel()
	var b Buffer
	start := clock.WallClock{Year: 24, Month: 3, Day: 30, Hour: 18, Minute: 25}
	now := start
	for i := 0; i < Capacity-1; i++ {
		st, _ := b.Push(uint16(i*10), now)
		require.Equal(t, Collecting, st, "push=%d", i+1)
		now = clock.AdvanceOneSecond(now)
	}
	assert.Equal(t, Capacity-1, b.Len())

	st, full := b.Push(1023, now)
	require.Equal(t, Full, st)
	assert.Equal(t, 0, b.Len(), "reset after full")
	assert.Equal(t, Capacity, full.Len)
	assert.Equal(t, start, full.Time, "time of first sample")
	samples := full.Samples()
	assert.Equal(t, uint16(0), samples[0])
	assert.Equal(t, uint16(580), samples[58])
	assert.Equal(t, uint16(1023), samples[59])

	// next batch starts fresh with new time
	later := clock.AdvanceOneSecond(now)
	st, _ = b.Push(7, later)
	assert.Equal(t, Collecting, st)
	for i := 1; i < Capacity-1; i++ {
		b.Push(7, clock.WallClock{})
	}
	st, full = b.Push(7, clock.WallClock{})
	require.Equal(t, Full, st)
	assert.Equal(t, later, full.Time)
}

func TestFullExactlyOnce(t *testing.T) {
	t.Parallel()
	var b Buffer
	fulls := 0
	for i := 0; i < Capacity*3+59; i++ {
		if st, _ := b.Push(1, clock.WallClock{}); st == Full {
			fulls++
		}
	}
	assert.Equal(t, 3, fulls)
	assert.Equal(t, 59, b.Len())
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "full", Full.String())
}
