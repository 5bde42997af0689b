// Package loop is single-threaded run-to-completion task executor.
// Receivers and timers only post tasks, handlers never run concurrently.
package loop

import (
	"sync"
	"time"

	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

const DefaultQueue = 64

type Task func()

var ErrStopped = errors.New("loop stopped")

type Loop struct {
	alive *alive.Alive
	log   *log2.Log
	tasks chan Task
}

func New(log *log2.Log, queue int) *Loop {
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Loop{
		alive: alive.NewAlive(),
		log:   log,
		tasks: make(chan Task, queue),
	}
}

func (self *Loop) Alive() *alive.Alive { return self.alive }

// Post queues task in arrival order, blocks while queue is full.
func (self *Loop) Post(t Task) error {
	if !self.alive.IsRunning() {
		return ErrStopped
	}
	select {
	case self.tasks <- t:
		return nil
	case <-self.alive.StopChan():
		return ErrStopped
	}
}

// Run executes tasks until Stop. Panic in task is logged, loop continues.
func (self *Loop) Run() {
	if !self.alive.Add(1) {
		return
	}
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for {
		select {
		case t := <-self.tasks:
			self.exec(t)
		case <-stopch:
			return
		}
	}
}

func (self *Loop) exec(t Task) {
	defer func() {
		if x := recover(); x != nil {
			self.log.Errorf("loop task panic: %v", x)
		}
	}()
	t()
}

func (self *Loop) Stop() { self.alive.Stop() }
func (self *Loop) Wait() { self.alive.Wait() }

// Go runs f in background goroutine accounted in loop lifetime.
func (self *Loop) Go(f func(stopch <-chan struct{})) bool {
	if !self.alive.Add(1) {
		return false
	}
	go func() {
		defer self.alive.Done()
		f(self.alive.StopChan())
	}()
	return true
}

// Ticker posts task every period until Stop or loop stop.
type Ticker struct {
	once sync.Once
	stop chan struct{}
}

func (self *Ticker) Stop() {
	if self == nil {
		return
	}
	self.once.Do(func() { close(self.stop) })
}

func (self *Loop) Every(period time.Duration, t Task) *Ticker {
	tk := &Ticker{stop: make(chan struct{})}
	self.Go(func(stopch <-chan struct{}) {
		tmr := time.NewTicker(period)
		defer tmr.Stop()
		for {
			select {
			case <-tmr.C:
				select {
				case <-tk.stop:
					return
				default:
				}
				if self.Post(t) != nil {
					return
				}
			case <-tk.stop:
				return
			case <-stopch:
				return
			}
		}
	})
	return tk
}

// Alarm is single periodic callback; Arm replaces previous schedule.
type Alarm struct {
	loop *Loop
	mu   sync.Mutex
	tk   *Ticker
}

func NewAlarm(l *Loop) *Alarm { return &Alarm{loop: l} }

func (self *Alarm) Arm(period time.Duration, t Task) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.tk.Stop()
	self.tk = self.loop.Every(period, t)
}

func (self *Alarm) Disarm() {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.tk.Stop()
	self.tk = nil
}
