// Package tele forwards uplink record lines to MQTT through durable spool.
//
// Contract:
// - Init fails only with invalid config, network issues are ignored
// - Forward blocks at most for disk write
// - records are delivered at least once, in background
package tele

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/internal/metrics"
	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/spq"
)

const DefaultNetworkTimeout = 30 * time.Second

type Tele struct {
	config    Config
	log       *log2.Log
	metrics   *metrics.Metrics
	transport Transporter
	q         *spq.Queue
	alive     *alive.Alive
	backoff   helpers.Backoff
	pending   int32
}

func New(trans Transporter, m *metrics.Metrics) *Tele {
	return &Tele{transport: trans, metrics: m}
}

func (self *Tele) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.config = config
	self.log = log
	if self.config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.config.Enabled {
		return nil
	}
	if self.config.PersistPath == "" {
		return errors.NotValidf("tele enabled but persist_path=empty")
	}
	// test code sets .transport
	if self.transport == nil {
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, log, config); err != nil {
		return errors.Annotate(err, "tele transport")
	}

	var err error
	self.q, err = spq.Open(self.config.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}
	self.backoff = helpers.Backoff{
		Min: 100 * time.Millisecond,
		Max: helpers.IntSecondDefault(self.config.NetworkTimeoutSec, DefaultNetworkTimeout),
		K:   2,
	}
	self.alive = alive.NewAlive()
	self.alive.Add(1)
	go self.qworker()
	return nil
}

func (self *Tele) Enabled() bool { return self.q != nil }

// Forward queues copy of record line. No-op when disabled.
func (self *Tele) Forward(line []byte) error {
	if self.q == nil {
		return nil
	}
	if err := self.q.Push(line); err != nil {
		return errors.Annotate(err, "tele push")
	}
	self.metrics.SetForwardPending(int(atomic.AddInt32(&self.pending, 1)))
	return nil
}

func (self *Tele) Close() {
	if self.q == nil {
		return
	}
	self.alive.Stop()
	self.q.Close()
	self.alive.Wait()
	self.transport.Close()
}

func (self *Tele) qworker() {
	defer self.alive.Done()
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			b := box.Bytes()
			sent := true
			if len(b) == 0 {
				self.log.Errorf("tele spq peek=empty")
				err = self.q.Delete(box)
			} else if self.transport.SendRecord(b) {
				self.backoff.Reset()
				err = self.q.Delete(box)
			} else {
				// move to tail, retry later
				sent = false
				err = self.q.DeletePush(box)
				self.backoff.Failure()
			}
			if err != nil {
				self.log.Errorf("tele spq delete err=%v", err)
			}
			if sent {
				n := atomic.AddInt32(&self.pending, -1)
				if n < 0 {
					// records left from previous run
					atomic.StoreInt32(&self.pending, 0)
					n = 0
				}
				self.metrics.SetForwardPending(int(n))
				continue
			}
			select {
			case <-time.After(self.backoff.DelayBefore()):
			case <-self.alive.StopChan():
			}

		case spq.ErrClosed:
			if self.alive.IsRunning() {
				self.log.Errorf("CRITICAL tele spq closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele spq err=%v", err)
			select {
			case <-time.After(time.Second):
			case <-self.alive.StopChan():
				return
			}
		}
	}
}
