package board

import (
	"sync"
	"time"
)

// Invalidator coalesces bursts of change signals into a single reload. A trigger
// that arrives while a reload is already scheduled is absorbed by it; a trigger that
// arrives while a reload is running schedules the next one.
type Invalidator struct {
	delay  time.Duration
	reload func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewInvalidator(delay time.Duration, reload func()) *Invalidator {
	return &Invalidator{delay: delay, reload: reload}
}

func (i *Invalidator) Trigger() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped || i.timer != nil {
		return
	}
	i.timer = time.AfterFunc(i.delay, i.fire)
}

func (i *Invalidator) fire() {
	i.mu.Lock()
	i.timer = nil
	stopped := i.stopped
	i.mu.Unlock()

	if !stopped {
		i.reload()
	}
}

// Stop cancels any scheduled reload. Later triggers are ignored.
func (i *Invalidator) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped = true
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}
