// Package supervisor wires OS signals into the cooperative flags the
// event loop polls once per iteration (§4.3 step 5, §5 "Signals").
//
// Grounded on the teacher's internal/supervisor, trimmed from a
// multi-instance JSON-config child-process supervisor down to the
// signal-flag essence the engine actually needs: unlike the tuner, which
// supervises a fleet of subprocess instances, the engine is its own single
// process, so there is nothing here to fork/restart — only SIGHUP/SIGTERM/
// SIGQUIT/SIGINT/SIGPIPE to translate into the loop's atomic flags. The
// os/signal.Notify wiring and log.Printf message shape are kept verbatim
// from the teacher's style.
package supervisor

import (
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Signals holds the cooperative flags the event loop polls. SigHUP is set
// by a SIGHUP delivery and cleared by the loop after invoking its reload
// hook; Exit is set by SIGINT/SIGTERM/SIGQUIT and observed by the loop (or
// its caller) to break out of Run.
type Signals struct {
	SigHUP *atomic.Bool
	Exit   *atomic.Bool
}

// Install registers signal handlers per §5: SIGHUP sets a cooperative
// flag (handler only sets a volatile boolean, race-free), SIGINT/SIGTERM/
// SIGQUIT set the exit flag, and SIGPIPE is ignored outright so a closed
// downstream socket never kills the process. Returns the flags and a
// stop function that stops relaying SIGHUP/SIGINT/SIGTERM/SIGQUIT to the
// flags (restoring their default handling); SIGPIPE stays ignored.
func Install() (*Signals, func()) {
	signal.Ignore(syscall.SIGPIPE)

	s := &Signals{
		SigHUP: &atomic.Bool{},
		Exit:   &atomic.Bool{},
	}

	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-ch:
				if !ok {
					return
				}
				switch sig {
				case syscall.SIGHUP:
					log.Printf("supervisor: SIGHUP received, requesting reload")
					s.SigHUP.Store(true)
				default:
					log.Printf("supervisor: %s received, requesting exit", sig)
					s.Exit.Store(true)
				}
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		close(done)
		signal.Stop(ch)
	}
	return s, stop
}
