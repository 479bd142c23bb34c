package naox

import (
	"github.com/edwinhayes/naox/qi"
)

// Service names on the robot bus.
const (
	ServiceTextToSpeech      = "ALTextToSpeech"
	ServiceMemory            = "ALMemory"
	ServiceLandmarkDetection = "ALLandMarkDetection"
)

// Service is a remote service fetched through an Application's cache. The
// concrete type is one of *TextToSpeech, *Memory, *LandmarkDetection or
// *GenericService.
type Service interface {
	Name() string
	Object() qi.Object
}

func newService(session qi.Session, object qi.Object) Service {
	switch object.Name() {
	case ServiceTextToSpeech:
		return &TextToSpeech{object: object}
	case ServiceMemory:
		return &Memory{object: object, session: session}
	case ServiceLandmarkDetection:
		return &LandmarkDetection{object: object}
	}
	return &GenericService{object: object}
}

// UseService returns the named service, fetching it from the session only
// the first time the behavior's application asks for it.
func UseService(b *Behavior, name string) (Service, error) {
	return b.application.Service(name)
}

// TextToSpeech speaks through the robot.
type TextToSpeech struct {
	object qi.Object
}

func (s *TextToSpeech) Name() string      { return s.object.Name() }
func (s *TextToSpeech) Object() qi.Object { return s.object }

// Say speaks text and returns once the robot accepted it.
func (s *TextToSpeech) Say(text string) error {
	_, err := s.object.Call("say", text)
	return err
}

func (s *TextToSpeech) SetLanguage(language string) error {
	_, err := s.object.Call("setLanguage", language)
	return err
}

// Memory is the robot's key/value store and event bus.
type Memory struct {
	object  qi.Object
	session qi.Session
}

func (s *Memory) Name() string      { return s.object.Name() }
func (s *Memory) Object() qi.Object { return s.object }

// Subscriber subscribes to event, connecting slots before delivery starts.
func (s *Memory) Subscriber(event string, slots ...func(payload []byte)) (qi.Subscriber, error) {
	return s.session.Subscribe(event, slots...)
}

func (s *Memory) GetData(key string) (interface{}, error) {
	return s.object.Call("getData", key)
}

func (s *Memory) InsertData(key string, value interface{}) error {
	_, err := s.object.Call("insertData", key, value)
	return err
}

// RaiseEvent stores value under event and notifies its subscribers.
func (s *Memory) RaiseEvent(event string, value interface{}) error {
	_, err := s.object.Call("raiseEvent", event, value)
	return err
}

// LandmarkDetection controls the Naomark extractor.
type LandmarkDetection struct {
	object qi.Object
}

func (s *LandmarkDetection) Name() string      { return s.object.Name() }
func (s *LandmarkDetection) Object() qi.Object { return s.object }

// Subscribe starts the extractor for name; detections are raised as the
// LandmarkDetected memory event every periodMs.
func (s *LandmarkDetection) Subscribe(name string, periodMs int, precision float64) error {
	_, err := s.object.Call("subscribe", name, periodMs, precision)
	return err
}

func (s *LandmarkDetection) Unsubscribe(name string) error {
	_, err := s.object.Call("unsubscribe", name)
	return err
}

// GenericService is any service without a typed wrapper.
type GenericService struct {
	object qi.Object
}

func (s *GenericService) Name() string      { return s.object.Name() }
func (s *GenericService) Object() qi.Object { return s.object }

func (s *GenericService) Call(method string, args ...interface{}) (interface{}, error) {
	return s.object.Call(method, args...)
}
