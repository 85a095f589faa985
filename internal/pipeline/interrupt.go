package pipeline

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// Interrupts latches SIGINT so the pipeline can react at the next phase
// boundary instead of dying mid-phase
type Interrupts struct {
	pending atomic.Bool
	ch      chan os.Signal
	done    chan struct{}
	once    sync.Once
}

// NewInterrupts creates a latch that is not connected to any signal.
// Tests trigger it directly.
func NewInterrupts() *Interrupts {
	return &Interrupts{done: make(chan struct{})}
}

// WatchInterrupts latches SIGINT until Stop is called
func WatchInterrupts() *Interrupts {
	i := NewInterrupts()
	i.ch = make(chan os.Signal, 1)
	signal.Notify(i.ch, os.Interrupt)
	go func() {
		for {
			select {
			case <-i.ch:
				i.pending.Store(true)
			case <-i.done:
				return
			}
		}
	}()
	return i
}

// Trigger latches an interruption
func (i *Interrupts) Trigger() {
	i.pending.Store(true)
}

// Pending reports whether an interruption arrived since the last Clear
func (i *Interrupts) Pending() bool {
	return i != nil && i.pending.Load()
}

// Clear resets the latch
func (i *Interrupts) Clear() {
	i.pending.Store(false)
}

// Stop releases the signal handler
func (i *Interrupts) Stop() {
	i.once.Do(func() {
		if i.ch != nil {
			signal.Stop(i.ch)
		}
		close(i.done)
	})
}
