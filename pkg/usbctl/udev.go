package usbctl

import (
	"context"

	"github.com/pilebones/go-udev/netlink"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// RawEvent is the subset of a udev event the controller cares about: an
// action ("add"/"remove") and the property bag udev attaches to it.
type RawEvent struct {
	Action     string
	Properties map[string]string
}

// EventSource yields udev events one at a time. The production
// implementation wraps a netlink-backed udev monitor; tests substitute a
// canned source so the dispatch logic can be exercised without a kernel.
type EventSource interface {
	Next(ctx context.Context) (RawEvent, error)
	Close() error
}

// udevEventSource is the netlink-backed EventSource used in production,
// filtered to subsystem=block (spec §4.F: "a udev monitor filtered to
// subsystem=block").
type udevEventSource struct {
	conn  *netlink.UEventConn
	queue chan netlink.UEvent
	errs  chan error
	quit  chan struct{}
}

// NewUdevEventSource opens a udev monitor filtered to the block subsystem.
func NewUdevEventSource() (EventSource, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, kerrors.New(kerrors.ConfigFatal, "usbctl.NewUdevEventSource.connect", err)
	}

	matcher := &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{Env: map[string]string{"SUBSYSTEM": "block"}},
		},
	}
	if err := matcher.Compile(); err != nil {
		conn.Close()
		return nil, kerrors.New(kerrors.ConfigFatal, "usbctl.NewUdevEventSource.compile", err)
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, matcher)

	return &udevEventSource{conn: conn, queue: queue, errs: errs, quit: quit}, nil
}

// Next blocks until a udev event, a monitor error, or ctx cancellation
// occurs — the single suspension point of the controller loop (spec §5).
func (s *udevEventSource) Next(ctx context.Context) (RawEvent, error) {
	select {
	case ev := <-s.queue:
		return RawEvent{Action: string(ev.Action), Properties: ev.Env}, nil
	case err := <-s.errs:
		return RawEvent{}, kerrors.New(kerrors.IoTransient, "usbctl.udevEventSource.Next", err)
	case <-ctx.Done():
		return RawEvent{}, ctx.Err()
	}
}

func (s *udevEventSource) Close() error {
	close(s.quit)
	return s.conn.Close()
}
