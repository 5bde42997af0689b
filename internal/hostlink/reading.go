// Package hostlink is the host side of the gateway uplink: it sends wall
// time to the gateway and stores telemetry records it prints.
package hostlink

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/juju/errors"
)

const DefaultScale = 1.0

// Reading is one parsed telemetry record line.
type Reading struct {
	SensorID    uint8
	Raw         uint16
	SampleCount uint8
	Value       float64
	TakenAt     time.Time
}

type recordJSON struct {
	Raw      *int   `json:"Raw"`
	NumSampl *int   `json:"numSampl"`
	Date     string `json:"date"`
	SensID   *int   `json:"SensId"`
}

// IsRecord is cheap check whether uplink line looks like a telemetry record.
// Host command echo and other lines are not records.
func IsRecord(line []byte) bool {
	line = bytes.TrimSpace(line)
	return len(line) > 1 && line[0] == '{' && line[len(line)-1] == '}'
}

// ParseRecord decodes record line, Value = Raw * scale.
func ParseRecord(line []byte, scale float64) (Reading, error) {
	var r Reading
	var j recordJSON
	if err := json.Unmarshal(bytes.TrimSpace(line), &j); err != nil {
		return r, errors.NewNotValid(err, "record json")
	}
	if j.Raw == nil || j.NumSampl == nil || j.SensID == nil || j.Date == "" {
		return r, errors.NotValidf("record=%q missing field", line)
	}
	if *j.Raw < 0 || *j.Raw > 0xffff {
		return r, errors.NotValidf("record Raw=%d", *j.Raw)
	}
	if *j.NumSampl < 0 || *j.NumSampl > 0xff {
		return r, errors.NotValidf("record numSampl=%d", *j.NumSampl)
	}
	if *j.SensID < 0 || *j.SensID > 0xff {
		return r, errors.NotValidf("record SensId=%d", *j.SensID)
	}
	t, err := time.Parse(time.RFC3339, j.Date)
	if err != nil {
		return r, errors.NewNotValid(err, "record date")
	}
	r = Reading{
		SensorID:    uint8(*j.SensID),
		Raw:         uint16(*j.Raw),
		SampleCount: uint8(*j.NumSampl),
		Value:       float64(*j.Raw) * scale,
		TakenAt:     t.UTC(),
	}
	return r, nil
}
