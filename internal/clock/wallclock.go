// Package clock is the calendar time model shared by leaf and gateway:
// WallClock value, one-second forward stepping and the real-time clock.
package clock

import (
	"fmt"
	"time"
)

const epochYear = 2000

// WallClock is an RTC calendar reading. Year is offset from 2000 (0-99),
// Ticks are hundredths of a second. Producers keep fields in range,
// nothing here rejects out-of-range values.
type WallClock struct {
	Year   uint8
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8
	Ticks  uint8
}

// Month lengths used for day rollover. February is always 28 days,
// deployed record consumers depend on this exact table.
var monthLength = [13]uint8{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func MonthLength(month uint8) uint8 {
	if month == 0 || int(month) >= len(monthLength) {
		return 0
	}
	return monthLength[month]
}

func (w WallClock) Tenths() uint8 { return w.Ticks / 10 }

func (w WallClock) ClearTicks() WallClock {
	w.Ticks = 0
	return w
}

// AdvanceOneSecond steps w forward by one second with table-driven
// calendar carry. Ticks are left untouched.
func AdvanceOneSecond(w WallClock) WallClock {
	w.Second++
	if w.Second < 60 {
		return w
	}
	w.Second = 0
	w.Minute++
	if w.Minute < 60 {
		return w
	}
	w.Minute = 0
	w.Hour++
	if w.Hour < 24 {
		return w
	}
	w.Hour = 0
	w.Day++
	if w.Day <= MonthLength(w.Month) {
		return w
	}
	w.Day = 1
	w.Month++
	if w.Month <= 12 {
		return w
	}
	w.Month = 1
	// two digit epoch
	w.Year = (w.Year + 1) % 100
	return w
}

// DateString renders 20YY-MM-DDThh:mm:ssZ, sub-second ticks are not rendered.
func (w WallClock) DateString() string {
	return string(w.AppendDate(make([]byte, 0, 20)))
}

func (w WallClock) AppendDate(b []byte) []byte {
	b = append(b, '2', '0')
	b = append2(b, w.Year)
	b = append(b, '-')
	b = append2(b, w.Month)
	b = append(b, '-')
	b = append2(b, w.Day)
	b = append(b, 'T')
	b = append2(b, w.Hour)
	b = append(b, ':')
	b = append2(b, w.Minute)
	b = append(b, ':')
	b = append2(b, w.Second)
	b = append(b, 'Z')
	return b
}

// append2 writes at least two decimal digits, like printf %02d.
func append2(b []byte, v uint8) []byte {
	if v >= 100 {
		b = append(b, '0'+v/100)
		v %= 100
	}
	return append(b, '0'+v/10, '0'+v%10)
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d/%02d/%02d %02d:%02d:%02d.%02d",
		w.Day, w.Month, w.Year, w.Hour, w.Minute, w.Second, w.Ticks)
}

// Time converts to UTC time.Time; invalid fields are normalized by time.Date.
func (w WallClock) Time() time.Time {
	return time.Date(epochYear+int(w.Year), time.Month(w.Month), int(w.Day),
		int(w.Hour), int(w.Minute), int(w.Second), int(w.Ticks)*int(10*time.Millisecond), time.UTC)
}

func FromTime(t time.Time) WallClock {
	return WallClock{
		Year:   uint8(t.Year() % 100),
		Month:  uint8(t.Month()),
		Day:    uint8(t.Day()),
		Hour:   uint8(t.Hour()),
		Minute: uint8(t.Minute()),
		Second: uint8(t.Second()),
		Ticks:  uint8(t.Nanosecond() / int(10*time.Millisecond)),
	}
}
