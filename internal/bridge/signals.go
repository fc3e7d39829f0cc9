package bridge

import (
	"os"
	"os/signal"
	"syscall"
)

// SignalEvent maps an OS signal to an event. ok is false for signals the
// daemon does not handle.
func SignalEvent(sig os.Signal) (ev Event, ok bool) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		return Event{Kind: EventTerminate, Source: sig.String()}, true
	case syscall.SIGHUP:
		return Event{Kind: EventReload, Source: sig.String()}, true
	default:
		return Event{}, false
	}
}

// RelaySignals forwards INT, TERM and HUP to the bridge until the returned
// stop function is called. Posting never blocks: a burst of identical
// signals collapses when the buffer is full.
func (b *Bridge) RelaySignals() (stop func()) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	quit := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case sig := <-sigCh:
				ev, ok := SignalEvent(sig)
				if !ok {
					continue
				}
				b.logger.Debug("received signal", "signal", sig)
				b.TryPost(ev)
			case <-quit:
				return
			case <-b.done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		select {
		case <-quit:
		default:
			close(quit)
		}
		<-finished
	}
}
