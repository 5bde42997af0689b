package gateway

import "github.com/dustnet/dustnet/internal/clock"

// AdjustTime computes time sent back to leaf in IdentityResponse.
//
// Deployed leaves expect this exact arithmetic: only seconds get latency
// carry and modulo 60, other fields are now+(now-toSend) stored into a
// byte, so far-off toSend produces out-of-range or wrapped values.
// Ticks are cleared.
func AdjustTime(now, toSend clock.WallClock) clock.WallClock {
	carry := 1
	if now.Tenths() > 6 {
		carry++
	}
	doubled := func(n, s uint8) uint8 { return uint8(int(n) + (int(n) - int(s))) }
	return clock.WallClock{
		Year:   doubled(now.Year, toSend.Year),
		Month:  doubled(now.Month, toSend.Month),
		Day:    doubled(now.Day, toSend.Day),
		Hour:   doubled(now.Hour, toSend.Hour),
		Minute: doubled(now.Minute, toSend.Minute),
		// Go remainder keeps sign of dividend, byte conversion wraps negatives
		Second: uint8((int(now.Second) + (int(now.Second) - int(toSend.Second)) + carry) % 60),
	}
}
