package qi

import (
	"context"
	"sync"
)

// defaultSubscriber owns a delivery goroutine. Payloads are queued by the
// session's eventUpdate handler and emitted on that goroutine in arrival
// order, so a slot that blocks only holds up its own subscriber.
type defaultSubscriber struct {
	session *defaultSession
	event   string
	id      string
	signal  Signal

	queueMutex sync.Mutex
	queue      [][]byte
	wakeChan   chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
	once       sync.Once
}

func newDefaultSubscriber(session *defaultSession, event string, id string) *defaultSubscriber {
	return &defaultSubscriber{
		session:  session,
		event:    event,
		id:       id,
		wakeChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

func (sub *defaultSubscriber) Event() string {
	return sub.event
}

func (sub *defaultSubscriber) ID() string {
	return sub.id
}

func (sub *defaultSubscriber) Signal() *Signal {
	return &sub.signal
}

func (sub *defaultSubscriber) Done() <-chan struct{} {
	return sub.stopChan
}

// enqueue never blocks. It reports false once the subscriber is stopped.
func (sub *defaultSubscriber) enqueue(payload []byte) bool {
	select {
	case <-sub.stopChan:
		return false
	default:
	}
	sub.queueMutex.Lock()
	sub.queue = append(sub.queue, payload)
	sub.queueMutex.Unlock()

	select {
	case sub.wakeChan <- struct{}{}:
	default:
	}
	return true
}

func (sub *defaultSubscriber) next() ([]byte, bool) {
	sub.queueMutex.Lock()
	defer sub.queueMutex.Unlock()
	if len(sub.queue) == 0 {
		return nil, false
	}
	payload := sub.queue[0]
	sub.queue[0] = nil
	sub.queue = sub.queue[1:]
	return payload, true
}

func (sub *defaultSubscriber) deliver() {
	for {
		select {
		case <-sub.wakeChan:
		case <-sub.stopChan:
			return
		}
		for {
			select {
			case <-sub.stopChan:
				return
			default:
			}
			payload, ok := sub.next()
			if !ok {
				break
			}
			sub.signal.emit(payload)
		}
	}
}

// stop ends delivery. A slot already running is not interrupted.
func (sub *defaultSubscriber) stop() {
	sub.stopOnce.Do(func() {
		close(sub.stopChan)
		sub.queueMutex.Lock()
		sub.queue = nil
		sub.queueMutex.Unlock()
	})
}

func (sub *defaultSubscriber) Unsubscribe() error {
	var err error
	sub.once.Do(func() {
		sub.stop()
		sub.signal.DisconnectAll()
		if !sub.session.removeSubscriber(sub.id) {
			return
		}
		logger := sub.session.logger
		logger.Debugf("%s : unsubscribing %s", sub.event, sub.id)
		_, err = callBusAPI(context.Background(), sub.session.busURI, "unsubscribeEvent",
			sub.session.name, sub.event, sub.id)
		if err != nil {
			logger.Warnf("%s : %s", sub.event, err)
		}
	})
	return err
}
