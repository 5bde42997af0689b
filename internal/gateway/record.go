package gateway

import (
	"strconv"

	"github.com/dustnet/dustnet/internal/batch"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/juju/errors"
)

// TelemetryRecord is one reconstructed sample, rendered as one uplink line.
type TelemetryRecord struct {
	Raw         uint16
	SampleCount uint8
	Time        clock.WallClock
	Sensor      uint8
}

// AppendText renders
// {"Raw": 308, "numSampl": 3, "date":"2024-03-30T18:25:00Z", "SensId":1}
// without newline. Field spacing is fixed, host parsers match it.
func (self TelemetryRecord) AppendText(b []byte) []byte {
	b = append(b, `{"Raw": `...)
	b = strconv.AppendUint(b, uint64(self.Raw), 10)
	b = append(b, `, "numSampl": `...)
	b = strconv.AppendUint(b, uint64(self.SampleCount), 10)
	b = append(b, `, "date":"`...)
	b = self.Time.AppendDate(b)
	b = append(b, `", "SensId":`...)
	b = strconv.AppendUint(b, uint64(self.Sensor), 10)
	b = append(b, '}')
	return b
}

func (self TelemetryRecord) String() string { return string(self.AppendText(nil)) }

// Reconstruct derives absolute time of every sample: sample j is batchTime
// advanced j seconds. Records come out in sample index order.
func Reconstruct(batchTime clock.WallClock, count int, payload *batch.Payload, sensor uint8) ([]TelemetryRecord, error) {
	if count < 0 || count > batch.Capacity {
		return nil, errors.NotValidf("sample_count=%d", count)
	}
	rs := make([]TelemetryRecord, count)
	t := batchTime.ClearTicks()
	for j := 0; j < count; j++ {
		if j > 0 {
			t = clock.AdvanceOneSecond(t)
		}
		rs[j] = TelemetryRecord{
			Raw:         payload.Sample(j),
			SampleCount: uint8(count),
			Time:        t,
			Sensor:      sensor,
		}
	}
	return rs, nil
}
