package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupted is the conventional exit code after SIGINT.
const ExitInterrupted = 130

// SignalContext is cancelled by the first SIGINT or SIGTERM and remembers
// which signal it was. The run then stops between items and still records
// its outcome. A second signal calls Force, which exits by default.
type SignalContext struct {
	context.Context
	Cancel func()

	// Force runs on the second signal.
	Force func()

	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
	once   sync.Once
}

// NewSignalContext starts listening for signals until Stop is called.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		Force:   func() { os.Exit(ExitInterrupted) },
		sigCh:   make(chan os.Signal, 2),
	}
	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go sc.loop()
	return sc
}

func (sc *SignalContext) loop() {
	for sig := range sc.sigCh {
		sc.mu.Lock()
		first := sc.sigVal == nil
		if first {
			sc.sigVal = sig
		}
		force := sc.Force
		sc.mu.Unlock()

		if first {
			sc.Cancel()
			continue
		}
		force()
		return
	}
}

// Stop releases the signal handler and cancels the context.
func (sc *SignalContext) Stop() {
	sc.once.Do(func() {
		signal.Stop(sc.sigCh)
		close(sc.sigCh)
		sc.Cancel()
	})
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// Interrupted reports whether err is the result of the user stopping the
// run.
func (sc *SignalContext) Interrupted(err error) bool {
	return err != nil && sc.Signal() != nil && errors.Is(err, context.Canceled)
}
