package gateway

import (
	"testing"

	"github.com/dustnet/dustnet/internal/batch"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstruct(t *testing.T) {
	t.Parallel()
	var p batch.Payload
	p.Low[0], p.High[0] = 0x34, 0x01
	p.Set(1, 1023)
	p.Set(2, 0)
	bt := clock.WallClock{Year: 24, Month: 3, Day: 30, Hour: 18, Minute: 25, Second: 0, Ticks: 55}

	rs, err := Reconstruct(bt, 3, &p, 1)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	expect := []string{
		`{"Raw": 308, "numSampl": 3, "date":"2024-03-30T18:25:00Z", "SensId":1}`,
		`{"Raw": 1023, "numSampl": 3, "date":"2024-03-30T18:25:01Z", "SensId":1}`,
		`{"Raw": 0, "numSampl": 3, "date":"2024-03-30T18:25:02Z", "SensId":1}`,
	}
	for i, r := range rs {
		assert.Equal(t, expect[i], r.String())
		assert.Equal(t, uint8(0), r.Time.Ticks)
	}
	assert.Equal(t, uint16(308), rs[0].Raw)
}

func TestReconstructRollover(t *testing.T) {
	t.Parallel()
	var p batch.Payload
	bt := clock.WallClock{Year: 24, Month: 2, Day: 28, Hour: 23, Minute: 59, Second: 30}
	rs, err := Reconstruct(bt, batch.Capacity, &p, 7)
	require.NoError(t, err)
	require.Len(t, rs, batch.Capacity)
	assert.Equal(t, "2024-02-28T23:59:59Z", rs[29].Time.DateString())
	assert.Equal(t, "2024-03-01T00:00:00Z", rs[30].Time.DateString())
	assert.Equal(t, "2024-03-01T00:00:29Z", rs[59].Time.DateString())
	for _, r := range rs {
		assert.Equal(t, uint8(60), r.SampleCount)
		assert.Equal(t, uint8(7), r.Sensor)
	}
}

func TestReconstructCount(t *testing.T) {
	t.Parallel()
	var p batch.Payload
	rs, err := Reconstruct(clock.WallClock{}, 0, &p, 1)
	require.NoError(t, err)
	assert.Len(t, rs, 0)

	_, err = Reconstruct(clock.WallClock{}, 61, &p, 1)
	assert.True(t, errors.IsNotValid(err))
	_, err = Reconstruct(clock.WallClock{}, -1, &p, 1)
	assert.True(t, errors.IsNotValid(err))
}

func BenchmarkRecordText(b *testing.B) {
	r := TelemetryRecord{Raw: 308, SampleCount: 60, Time: clock.WallClock{Year: 24, Month: 3, Day: 30, Hour: 18, Minute: 25}, Sensor: 1}
	buf := make([]byte, 0, 128)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = r.AppendText(buf[:0])
	}
}
