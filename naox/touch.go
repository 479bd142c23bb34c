package naox

import (
	"bytes"
	"context"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/edwinhayes/naox/qi"
	"github.com/pkg/errors"
)

// TouchChangedEvent is the memory event carrying touch sensor batches.
const TouchChangedEvent = "TouchChanged"

// Touch sensor identifiers.
const (
	HeadFrontTouch  = "Head/Touch/Front"
	HeadMiddleTouch = "Head/Touch/Middle"
	HeadRearTouch   = "Head/Touch/Rear"
	LHandBackTouch  = "LHand/Touch/Back"
	RHandBackTouch  = "RHand/Touch/Back"
	LArm            = "LArm"
	RArm            = "RArm"
)

// ErrTouchWaitAborted is returned by AwaitTouch when delivery stopped
// before a matching touch, because the session shut down.
var ErrTouchWaitAborted = errors.New("touch wait aborted: subscription closed")

// TouchUpdate is one entry of a TouchChanged batch.
type TouchUpdate struct {
	Part   string
	Active bool
	// Extra is the raw JSON of the third element, if any.
	Extra []byte
}

// decodeTouchUpdates parses a TouchChanged payload such as
// [["Head/Touch/Front", true, []], ["LArm", false, []]]. A payload that is
// not an array is an error. Malformed entries are passed to skip, which may
// be nil, and left out; the others are returned in batch order.
func decodeTouchUpdates(payload []byte, skip func(index int, err error)) ([]TouchUpdate, error) {
	if err := expectArray(payload); err != nil {
		return nil, errors.Wrap(err, "touch batch")
	}
	var updates []TouchUpdate
	index := 0
	_, err := jsonparser.ArrayEach(payload, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		defer func() { index++ }()
		if err == nil && dataType != jsonparser.Array {
			err = errors.Errorf("touch update is %s, not an array", dataType)
		}
		var update TouchUpdate
		if err == nil {
			update, err = decodeTouchUpdate(value)
		}
		if err != nil {
			if skip != nil {
				skip(index, err)
			}
			return
		}
		updates = append(updates, update)
	})
	if err != nil {
		return nil, errors.Wrap(err, "touch batch")
	}
	return updates, nil
}

func decodeTouchUpdate(value []byte) (TouchUpdate, error) {
	var update TouchUpdate
	var decodeErr error
	index := 0
	_, err := jsonparser.ArrayEach(value, func(element []byte, dataType jsonparser.ValueType, _ int, err error) {
		defer func() { index++ }()
		if decodeErr != nil || err != nil {
			if decodeErr == nil {
				decodeErr = err
			}
			return
		}
		switch index {
		case 0:
			if dataType != jsonparser.String {
				decodeErr = errors.Errorf("touch part is %s, not a string", dataType)
				return
			}
			update.Part, decodeErr = jsonparser.ParseString(element)
		case 1:
			update.Active = truthy(element, dataType)
		case 2:
			update.Extra = append([]byte(nil), element...)
		}
	})
	if err != nil {
		return TouchUpdate{}, errors.Wrap(err, "touch update")
	}
	if decodeErr != nil {
		return TouchUpdate{}, errors.Wrap(decodeErr, "touch update")
	}
	if index < 2 {
		return TouchUpdate{}, errors.Errorf("touch update has %d elements, want at least 2", index)
	}
	return update, nil
}

func expectArray(payload []byte) error {
	_, dataType, _, err := jsonparser.Get(payload)
	if err != nil {
		return err
	}
	if dataType != jsonparser.Array {
		return errors.Errorf("payload is %s, not an array", dataType)
	}
	return nil
}

// truthy reports whether a JSON value counts as set: true, non-zero
// numbers, non-empty strings, arrays and objects.
func truthy(value []byte, dataType jsonparser.ValueType) bool {
	switch dataType {
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		return err == nil && b
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		return err == nil && f != 0
	case jsonparser.String:
		return len(value) > 0
	case jsonparser.Array, jsonparser.Object:
		inner := bytes.TrimSpace(value[1 : len(value)-1])
		return len(inner) > 0
	}
	return false
}

// filterTouches calls callback for every active update matching bodyPart,
// in batch order. An empty bodyPart matches every part.
func filterTouches(updates []TouchUpdate, bodyPart string, callback func(part string)) {
	for _, update := range updates {
		if !update.Active {
			continue
		}
		if bodyPart != "" && bodyPart != update.Part {
			continue
		}
		callback(update.Part)
	}
}

// Subscription is a live event subscription held by a behavior.
type Subscription struct {
	subscriber qi.Subscriber
	release    func() error
	once       sync.Once
	err        error
}

// Event is the memory event subscribed to.
func (s *Subscription) Event() string {
	return s.subscriber.Event()
}

// Cancel stops delivery. Only the first call does any work.
func (s *Subscription) Cancel() error {
	s.once.Do(func() {
		s.err = s.subscriber.Unsubscribe()
		if s.release != nil {
			if err := s.release(); err != nil && s.err == nil {
				s.err = err
			}
		}
	})
	return s.err
}

func (b *Behavior) touchSlot(bodyPart string, callback func(part string)) func(payload []byte) {
	return func(payload []byte) {
		updates, err := decodeTouchUpdates(payload, func(index int, err error) {
			b.logger.WithError(err).Warnf("Skipping touch update %d", index)
		})
		if err != nil {
			b.logger.WithError(err).Error("Dropping touch batch")
			return
		}
		filterTouches(updates, bodyPart, callback)
	}
}

func (b *Behavior) subscribeTouch(bodyPart string, callback func(part string)) (*Subscription, error) {
	subscriber, err := b.memory.Subscriber(TouchChangedEvent, b.touchSlot(bodyPart, callback))
	if err != nil {
		return nil, err
	}
	return &Subscription{subscriber: subscriber}, nil
}

func (b *Behavior) keep(subscription *Subscription) {
	b.mutex.Lock()
	b.subscriptions = append(b.subscriptions, subscription)
	b.mutex.Unlock()
}

// OnBodyTouched calls callback with the part identifier of every active
// touch update, restricted to bodyPart unless it is empty. Callbacks of one
// subscription run one at a time in delivery order; a callback may block,
// for instance in AwaitTouch, without holding up other subscriptions. The
// subscription stays registered until cancelled or ClearSubscriptions.
func (b *Behavior) OnBodyTouched(callback func(part string), bodyPart string) (*Subscription, error) {
	subscription, err := b.subscribeTouch(bodyPart, callback)
	if err != nil {
		return nil, err
	}
	b.keep(subscription)
	return subscription, nil
}

// AwaitTouch blocks until bodyPart is touched, or any part if bodyPart is
// empty, and returns the touched part. There is no timeout, but the wait
// ends with ErrTouchWaitAborted if the session shuts down first. It may be
// called from a touch callback.
func (b *Behavior) AwaitTouch(bodyPart string) (string, error) {
	return b.AwaitTouchContext(context.Background(), bodyPart)
}

// AwaitTouchContext is AwaitTouch bounded by ctx. The subscription it
// creates is removed before it returns, whatever the outcome. If the
// removal fails after a touch, the touched part is returned with the
// error.
func (b *Behavior) AwaitTouchContext(ctx context.Context, bodyPart string) (string, error) {
	touched := make(chan string, 1)
	var once sync.Once
	subscription, err := b.subscribeTouch(bodyPart, func(part string) {
		once.Do(func() { touched <- part })
	})
	if err != nil {
		return "", err
	}

	select {
	case part := <-touched:
		return part, subscription.Cancel()
	case <-subscription.subscriber.Done():
		select {
		case part := <-touched:
			return part, subscription.Cancel()
		default:
		}
		subscription.Cancel()
		return "", ErrTouchWaitAborted
	case <-ctx.Done():
		if err := subscription.Cancel(); err != nil {
			b.logger.WithError(err).Warn("Failed to unsubscribe touch wait")
		}
		return "", ctx.Err()
	}
}

// ClearSubscriptions cancels every subscription made through
// OnBodyTouched and OnMarkDetected. It returns the first error met.
func (b *Behavior) ClearSubscriptions() error {
	b.mutex.Lock()
	subscriptions := b.subscriptions
	b.subscriptions = nil
	b.mutex.Unlock()

	var first error
	for _, subscription := range subscriptions {
		if err := subscription.Cancel(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NumSubscriptions counts the subscriptions ClearSubscriptions would
// cancel.
func (b *Behavior) NumSubscriptions() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.subscriptions)
}
