package tele

import (
	"context"

	"github.com/dustnet/dustnet/log2"
)

// Transporter contract:
// - Init fails only with invalid config, ignores network errors
// - SendRecord returns true when payload was accepted for delivery
// - application may start without network available
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, config Config) error
	SendRecord(payload []byte) bool
	Close()
}
