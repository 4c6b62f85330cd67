// Package lifecycle implements the shutdown-signalling contract from spec
// section 5: cooperative cancellation via an atomic flag checked at
// iteration boundaries, with a fixed grace window for draining buffered
// events before the process exits.
package lifecycle

import (
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// DrainWindow is the guaranteed grace period the driver gets to flush
// buffered events after a shutdown signal, per spec section 5.
const DrainWindow = 1 * time.Second

// Shutdown is the single piece of shared state a signal handler and the
// pipeline driver communicate through: an atomic flag, nothing else (spec
// section 5: "signal-to-driver communication uses only the atomic flag").
type Shutdown struct {
	flag   int32
	notify chan os.Signal
}

// New constructs a Shutdown and registers it to receive SIGINT/SIGTERM.
// Call Stop when the caller is done listening (normally via defer).
func New() *Shutdown {
	s := &Shutdown{notify: make(chan os.Signal, 1)}
	signal.Notify(s.notify, os.Interrupt, unix.SIGTERM)
	go s.watch()
	return s
}

func (s *Shutdown) watch() {
	if _, ok := <-s.notify; ok {
		atomic.StoreInt32(&s.flag, 1)
	}
}

// Requested reports whether a shutdown signal has been received. The
// pipeline driver polls this at each iteration boundary (spec section 5);
// it never blocks.
func (s *Shutdown) Requested() bool {
	return atomic.LoadInt32(&s.flag) == 1
}

// Request sets the shutdown flag programmatically, with the same effect as
// receiving an interrupt or termination signal.
func (s *Shutdown) Request() {
	atomic.StoreInt32(&s.flag, 1)
}

// Stop unregisters the signal handler. Safe to call once.
func (s *Shutdown) Stop() {
	signal.Stop(s.notify)
	close(s.notify)
}

// DrainDeadline returns the wall-clock instant by which draining must stop
// after shutdown was first observed, per DrainWindow.
func DrainDeadline(observedAt time.Time) time.Time {
	return observedAt.Add(DrainWindow)
}
