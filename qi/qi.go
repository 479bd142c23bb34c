// Package qi is a client for the robot process bus. It opens a session to
// the bus, looks up remote services by name and delivers memory events to
// local signals. Every subscriber delivers on its own goroutine, in
// arrival order.
package qi

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Session is a connection to the robot process bus.
type Session interface {
	// Name is the caller id the session registered under.
	Name() string
	// URL is the bus endpoint.
	URL() string
	// Service looks up a remote service. Lookups are not cached.
	Service(name string) (Object, error)
	// Subscribe registers for a memory event. The given slots are
	// connected to the subscriber's signal before the bus is asked to
	// deliver, so no early event is missed.
	Subscribe(event string, slots ...func(payload []byte)) (Subscriber, error)

	OK() bool
	Spin()
	Shutdown()

	Logger() *logrus.Entry
}

// Object is a handle on a remote service.
type Object interface {
	Name() string
	Call(method string, args ...interface{}) (interface{}, error)
	CallContext(ctx context.Context, method string, args ...interface{}) (interface{}, error)
}

// Subscriber receives the payloads of one memory event.
type Subscriber interface {
	Event() string
	ID() string
	Signal() *Signal
	// Done is closed once delivery has stopped, by Unsubscribe or by the
	// session shutting down.
	Done() <-chan struct{}
	// Unsubscribe stops delivery and disconnects every slot. Calling it
	// again is a no-op.
	Unsubscribe() error
}
