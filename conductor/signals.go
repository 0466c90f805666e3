package conductor

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
)

// SignalReceiver latches the conductor's two observable signals: a
// stop request (SIGINT/SIGTERM) and a reload request (SIGHUP). Stop is
// closed once, the first time SIGINT or SIGTERM arrives. Reload is never
// closed: each SIGHUP is offered to it with a non-blocking send and is
// dropped if nobody is receiving at that moment.
type SignalReceiver struct {
	Stop   chan struct{}
	Reload chan struct{}
}

// WatchSignals spawns the conductor's signal handler and returns the
// channels it latches (spec.md §4.1: "SIGHUP: log and continue (no-op
// reload). SIGINT or SIGTERM: begin shutdown").
func WatchSignals(logger log.Logger) *SignalReceiver {
	r := &SignalReceiver{
		Stop:   make(chan struct{}),
		Reload: make(chan struct{}),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		stopped := false
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				logger.Info("received SIGHUP, reloading is currently not implemented")
				select {
				case r.Reload <- struct{}{}:
				default:
				}
			case syscall.SIGINT, syscall.SIGTERM:
				if !stopped {
					stopped = true
					logger.Info("received shutdown signal", "signal", sig.String())
					close(r.Stop)
				}
			}
		}
	}()

	return r
}
