package qi

import (
	"sync"
)

// SignalLink identifies one connection to a Signal.
type SignalLink uint64

type signalSlot struct {
	link SignalLink
	fn   func(payload []byte)
}

// Signal fans event payloads out to connected slots in connection order.
type Signal struct {
	mutex sync.Mutex
	next  SignalLink
	slots []signalSlot
}

// Connect adds fn to the signal and returns its link.
func (s *Signal) Connect(fn func(payload []byte)) SignalLink {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.next++
	s.slots = append(s.slots, signalSlot{link: s.next, fn: fn})
	return s.next
}

// Disconnect removes the slot behind link. It reports whether the link
// was connected.
func (s *Signal) Disconnect(link SignalLink) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for i, slot := range s.slots {
		if slot.link == link {
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			return true
		}
	}
	return false
}

// DisconnectAll removes every slot.
func (s *Signal) DisconnectAll() {
	s.mutex.Lock()
	s.slots = nil
	s.mutex.Unlock()
}

func (s *Signal) NumConnections() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.slots)
}

// emit calls every slot connected at the time of the call. Slots may
// connect or disconnect from inside a callback.
func (s *Signal) emit(payload []byte) {
	s.mutex.Lock()
	slots := make([]signalSlot, len(s.slots))
	copy(slots, s.slots)
	s.mutex.Unlock()
	for _, slot := range slots {
		slot.fn(payload)
	}
}
