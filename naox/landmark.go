package naox

import (
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// LandmarkDetectedEvent is raised by the landmark extractor.
const LandmarkDetectedEvent = "LandmarkDetected"

// Extractor settings used by OnMarkDetected.
const (
	landmarkPeriodMs  = 500
	landmarkPrecision = 0.0
)

// MarkInfo describes one detected Naomark. Angles are in radians in the
// camera frame.
type MarkInfo struct {
	ID      int
	Alpha   float64
	Beta    float64
	SizeX   float64
	SizeY   float64
	Heading float64
}

// MarkDetection is one LandmarkDetected value.
type MarkDetection struct {
	Time  time.Time
	Marks []MarkInfo
}

// decodeMarkDetection parses a LandmarkDetected payload:
//
//	[[sec, usec], [[[1, alpha, beta, sizeX, sizeY, heading], [id]], ...], ...]
//
// The extractor raises an empty array once marks are lost; that decodes to
// a detection with no marks.
func decodeMarkDetection(payload []byte) (MarkDetection, error) {
	var detection MarkDetection
	if err := expectArray(payload); err != nil {
		return detection, errors.Wrap(err, "landmark detection")
	}
	if _, dataType, _, err := jsonparser.Get(payload, "[0]"); err != nil || dataType == jsonparser.NotExist {
		return detection, nil
	}

	sec, err := jsonparser.GetInt(payload, "[0]", "[0]")
	if err != nil {
		return detection, errors.Wrap(err, "landmark timestamp")
	}
	usec, err := jsonparser.GetInt(payload, "[0]", "[1]")
	if err != nil {
		return detection, errors.Wrap(err, "landmark timestamp")
	}
	detection.Time = time.Unix(sec, usec*int64(time.Microsecond))

	var decodeErr error
	_, err = jsonparser.ArrayEach(payload, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if decodeErr != nil {
			return
		}
		if err != nil {
			decodeErr = errors.Wrap(err, "mark info")
			return
		}
		if dataType != jsonparser.Array {
			decodeErr = errors.Errorf("mark info is %s, not an array", dataType)
			return
		}
		mark, err := decodeMarkInfo(value)
		if err != nil {
			decodeErr = err
			return
		}
		detection.Marks = append(detection.Marks, mark)
	}, "[1]")
	if err != nil {
		return detection, errors.Wrap(err, "landmark marks")
	}
	return detection, decodeErr
}

func decodeMarkInfo(value []byte) (MarkInfo, error) {
	var mark MarkInfo
	id, err := jsonparser.GetInt(value, "[1]", "[0]")
	if err != nil {
		return mark, errors.Wrap(err, "mark id")
	}
	mark.ID = int(id)

	fields := []*float64{&mark.Alpha, &mark.Beta, &mark.SizeX, &mark.SizeY, &mark.Heading}
	for i, field := range fields {
		f, err := jsonparser.GetFloat(value, "[0]", fmt.Sprintf("[%d]", i+1))
		if err != nil {
			return mark, errors.Wrapf(err, "mark %d shape", mark.ID)
		}
		*field = f
	}
	return mark, nil
}

// OnMarkDetected starts a landmark extractor and calls callback for every
// detection holding at least one mark. Cancelling the subscription stops
// the extractor.
func (b *Behavior) OnMarkDetected(callback func(MarkDetection)) (*Subscription, error) {
	service, err := UseService(b, ServiceLandmarkDetection)
	if err != nil {
		return nil, err
	}
	landmarks, ok := service.(*LandmarkDetection)
	if !ok {
		return nil, errors.Errorf("%s is %T", service.Name(), service)
	}

	subscriber, err := b.memory.Subscriber(LandmarkDetectedEvent, func(payload []byte) {
		detection, err := decodeMarkDetection(payload)
		if err != nil {
			b.logger.WithError(err).Error("Dropping landmark detection")
			return
		}
		if len(detection.Marks) == 0 {
			return
		}
		callback(detection)
	})
	if err != nil {
		return nil, err
	}

	extractor := fmt.Sprintf("%s/%s", b.session.Name(), subscriber.ID())
	if err := landmarks.Subscribe(extractor, landmarkPeriodMs, landmarkPrecision); err != nil {
		subscriber.Unsubscribe()
		return nil, err
	}

	subscription := &Subscription{
		subscriber: subscriber,
		release:    func() error { return landmarks.Unsubscribe(extractor) },
	}
	b.keep(subscription)
	return subscription, nil
}
