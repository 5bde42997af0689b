package helpers

import (
	"math/rand"
	"time"
)

// RandUnix is fresh time seeded source for randomized tests.
func RandUnix() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
