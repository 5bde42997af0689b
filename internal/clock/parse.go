package clock

import (
	"strings"

	"github.com/juju/errors"
)

// ParseHostTime parses the host time command YYYY-MM-DDThh:mm:ss[.fraction][Z].
// Fraction keeps hundredths, the rest is dropped. Trailing NUL, CR and
// spaces are ignored. Malformed input returns NotValid error.
func ParseHostTime(s string) (WallClock, error) {
	var w WallClock
	in := strings.TrimRight(s, "\x00\r\n\t ")
	if len(in) < 19 {
		return w, errors.NotValidf("host time=%q length=%d", s, len(in))
	}
	fail := func(what string) (WallClock, error) {
		return WallClock{}, errors.NotValidf("host time=%q %s", s, what)
	}
	if in[4] != '-' || in[7] != '-' || (in[10] != 'T' && in[10] != ' ') || in[13] != ':' || in[16] != ':' {
		return fail("layout")
	}
	year, ok := atoi(in[0:4])
	if !ok {
		return fail("year")
	}
	month, ok := atoi(in[5:7])
	if !ok || month < 1 || month > 12 {
		return fail("month")
	}
	day, ok := atoi(in[8:10])
	// real calendar may send Feb 29
	maxDay := int(MonthLength(uint8(month)))
	if month == 2 {
		maxDay = 29
	}
	if !ok || day < 1 || day > maxDay {
		return fail("day")
	}
	hour, ok := atoi(in[11:13])
	if !ok || hour > 23 {
		return fail("hour")
	}
	minute, ok := atoi(in[14:16])
	if !ok || minute > 59 {
		return fail("minute")
	}
	second, ok := atoi(in[17:19])
	if !ok || second > 59 {
		return fail("second")
	}

	rest := in[19:]
	ticks := 0
	if strings.HasPrefix(rest, ".") {
		rest = rest[1:]
		n := 0
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n == 0 {
			return fail("fraction")
		}
		frac := rest[:n] + "00"
		ticks, _ = atoi(frac[:2])
		rest = rest[n:]
	}
	if rest == "Z" {
		rest = ""
	}
	if rest != "" {
		return fail("trailing garbage")
	}

	w = WallClock{
		Year:   uint8(year % 100),
		Month:  uint8(month),
		Day:    uint8(day),
		Hour:   uint8(hour),
		Minute: uint8(minute),
		Second: uint8(second),
		Ticks:  uint8(ticks),
	}
	return w, nil
}

// FormatHostTime is inverse of ParseHostTime, milliseconds precision.
func FormatHostTime(w WallClock) string {
	b := make([]byte, 0, 23)
	b = w.AppendDate(b)
	b = b[:len(b)-1] // Z
	ms := int(w.Ticks) * 10
	b = append(b, '.', byte('0'+ms/100), byte('0'+ms/10%10), byte('0'+ms%10))
	return string(b)
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
