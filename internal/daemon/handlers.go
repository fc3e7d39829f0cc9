package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/thor/internal/bridge"
	"github.com/jmylchreest/thor/internal/display"
	"github.com/jmylchreest/thor/internal/metrics"
	"github.com/jmylchreest/thor/internal/proto"
)

// loop is the only goroutine that touches the display manager, the
// queue and the themes.
func (d *Daemon) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case msg := <-d.incoming:
			if err := d.handleMessage(msg, "socket"); err != nil {
				return err
			}

		case ev := <-d.bridge.Events():
			stop, err := d.handleEvent(ev)
			if stop || err != nil {
				return err
			}
		}
		d.metrics.SetDisplay(d.manager.QueueLen(), d.manager.Visible())
	}
}

// handleEvent acts on one bridge event. stop asks the loop to shut down;
// err is set when the shutdown is caused by a fault.
func (d *Daemon) handleEvent(ev bridge.Event) (stop bool, err error) {
	switch ev.Kind {
	case bridge.EventTerminate:
		d.logger.Info("shutdown requested", "source", ev.Source)
		return true, nil

	case bridge.EventReload:
		d.logger.Info("reload requested", "source", ev.Source)
		return false, d.reload(metrics.CauseSignal, false)

	case bridge.EventConfigChanged:
		d.logger.Info("config file changed", "path", ev.Path)
		return false, d.reload(metrics.CauseWatcher, true)

	case bridge.EventTimeout:
		if _, err := d.manager.HandleTimeout(ev.Slot, ev.Generation); err != nil {
			if display.IsFatal(err) {
				return true, err
			}
			d.logger.Warn("failed to release popup", "slot", ev.Slot, "error", err)
		}

	case bridge.EventBackendLost:
		err := ev.Err
		if err == nil {
			err = display.ErrBackendLost
		}
		d.logger.Error("display backend lost", "error", err)
		return true, err

	case bridge.EventIncoming:
		if ev.Message == nil {
			return false, nil
		}
		d.metrics.Received(ev.Message.Kind().String())
		return false, d.handleMessage(ev.Message, ev.Source)

	default:
		d.logger.Debug("ignoring event", "kind", ev.Kind, "source", ev.Source)
	}
	return false, nil
}

// handleMessage renders, queues or drops msg. Only a fatal backend error
// is returned; every other failure is logged and counted.
func (d *Daemon) handleMessage(msg *proto.Message, source string) error {
	id, kind := msg.ID, msg.Kind()

	outcome, err := d.manager.Show(msg)
	switch {
	case err == nil:
		d.logger.Debug("message handled", "msg_id", id, "kind", kind, "source", source, "outcome", outcome)
	case errors.Is(err, display.ErrNothingToRender):
		d.metrics.Dropped(metrics.ReasonNothingDraw)
		d.drop(metrics.ReasonNothingDraw).log(slog.LevelDebug, "nothing to draw",
			"msg_id", id, "kind", kind, "source", source)
	case errors.Is(err, display.ErrQueueFull):
		d.metrics.Dropped(metrics.ReasonQueueFull)
		d.drop(metrics.ReasonQueueFull).log(slog.LevelWarn, "pending queue full, dropping message",
			"msg_id", id, "source", source, "queue_len", d.manager.QueueLen())
	case display.IsFatal(err):
		return err
	default:
		d.metrics.Dropped(metrics.ReasonRenderError)
		d.logger.Warn("failed to render message", "msg_id", id, "kind", kind, "source", source, "error", err)
	}
	return nil
}

func (d *Daemon) drop(reason string) *dropLimiter {
	l, ok := d.drops[reason]
	if !ok {
		l = newDropLimiter(d.logger)
		d.drops[reason] = l
	}
	return l
}

func (d *Daemon) onRender(kind proto.Kind, msg *proto.Message) {
	if msg.Silent {
		d.logger.Debug("render sound suppressed", "msg_id", msg.ID)
		return
	}
	d.audio.PlayFor(kind)
}

// showNotice renders an internal notice. Notices raised while no display
// is up are dropped.
func (d *Daemon) showNotice(msg *proto.Message) {
	if d.manager == nil {
		msg.Release()
		return
	}
	if err := d.handleMessage(msg, "notice"); err != nil {
		d.logger.Warn("failed to show notice", "error", err)
	}
}

// accept serves connections one at a time until ctx is cancelled.
func (d *Daemon) accept(ctx context.Context) error {
	l := d.opts.Listener
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}
			d.logger.Warn("failed to accept connection", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}
		d.serve(ctx, conn)
	}
}

// serve reads one request from conn. PID queries are answered here; any
// other message is handed to the loop.
func (d *Daemon) serve(ctx context.Context, conn net.Conn) {
	msg, err := d.receive(conn)
	if err != nil {
		d.protocolError(err)
		return
	}
	if msg == nil {
		return
	}

	d.metrics.Received(msg.Kind().String())
	d.logger.Debug("received message",
		"msg_id", msg.ID,
		"kind", msg.Kind(),
		"flags", msg.Flags,
		"payload", humanize.Bytes(uint64(msg.PayloadLen())),
		"timeout", msg.Timeout,
	)

	select {
	case d.incoming <- msg:
	case <-ctx.Done():
		msg.Release()
	}
}

// receive decodes one request and closes conn. It returns a nil message
// after answering a PID query.
func (d *Daemon) receive(conn net.Conn) (*proto.Message, error) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(ReceiveTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	msg, err := proto.Receive(conn)
	if err != nil {
		return nil, err
	}
	if msg.IsQuery() {
		msg.Release()
		if err := proto.WritePID(conn, d.opts.PID); err != nil {
			return nil, err
		}
		d.logger.Debug("answered pid query")
		return nil, nil
	}
	return msg, nil
}

func (d *Daemon) protocolError(err error) {
	switch {
	case errors.Is(err, proto.ErrConnectionAborted):
		d.metrics.ProtocolError("aborted")
		d.logger.Debug("client closed connection before sending", "error", err)
	case errors.Is(err, proto.ErrTimeout):
		d.metrics.ProtocolError("timeout")
		d.logger.Warn("client timed out", "error", err)
	case errors.Is(err, proto.ErrMalformed):
		d.metrics.ProtocolError("malformed")
		d.logger.Warn("malformed message", "error", err)
	default:
		d.metrics.ProtocolError("io")
		d.logger.Warn("failed to read message", "error", err)
	}
}
