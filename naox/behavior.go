package naox

import (
	"sync"

	"github.com/edwinhayes/naox/qi"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Hooks are the overridable parts of a behavior.
type Hooks interface {
	// OnActivate runs on the inactive → active transition.
	OnActivate()
	// OnDeactivate runs on the active → inactive transition.
	OnDeactivate()
}

// NopHooks can be embedded by behaviors that only need one hook.
type NopHooks struct{}

func (NopHooks) OnActivate()   {}
func (NopHooks) OnDeactivate() {}

// Behavior is a unit of robot logic with an activate/deactivate lifecycle.
// Authors embed *Behavior in their own type and pass that type as the
// hooks:
//
//	type greeter struct {
//		*naox.Behavior
//	}
//
//	func (g *greeter) OnActivate()   { g.Say("Hello") }
//	func (g *greeter) OnDeactivate() {}
//
//	g := &greeter{}
//	g.Behavior, err = naox.NewBehavior(app, g)
type Behavior struct {
	application *Application
	session     qi.Session
	hooks       Hooks
	logger      *logrus.Entry

	memory *Memory
	tts    *TextToSpeech

	mutex         sync.Mutex
	active        bool
	subscriptions []*Subscription
}

// NewBehavior resolves the memory and speech services through the
// application's cache. A nil hooks behaves like NopHooks.
func NewBehavior(app *Application, hooks Hooks) (*Behavior, error) {
	if hooks == nil {
		hooks = NopHooks{}
	}
	b := &Behavior{
		application: app,
		session:     app.Session(),
		hooks:       hooks,
		logger:      qi.ModuleLogger(nil, "naox.behavior"),
	}
	if app.logger != nil {
		b.logger = app.logger.WithField("module", "naox.behavior")
	}
	b.logger.Info("Initializing behavior...")

	memory, err := UseService(b, ServiceMemory)
	if err != nil {
		return nil, err
	}
	if b.memory, err = asMemory(memory); err != nil {
		return nil, err
	}
	tts, err := UseService(b, ServiceTextToSpeech)
	if err != nil {
		return nil, err
	}
	if b.tts, err = asTextToSpeech(tts); err != nil {
		return nil, err
	}
	return b, nil
}

func asMemory(service Service) (*Memory, error) {
	memory, ok := service.(*Memory)
	if !ok {
		return nil, errors.Errorf("%s is %T", service.Name(), service)
	}
	return memory, nil
}

func asTextToSpeech(service Service) (*TextToSpeech, error) {
	tts, ok := service.(*TextToSpeech)
	if !ok {
		return nil, errors.Errorf("%s is %T", service.Name(), service)
	}
	return tts, nil
}

func (b *Behavior) Application() *Application {
	return b.application
}

func (b *Behavior) Session() qi.Session {
	return b.session
}

func (b *Behavior) Logger() *logrus.Entry {
	return b.logger
}

func (b *Behavior) Memory() *Memory {
	return b.memory
}

func (b *Behavior) TextToSpeech() *TextToSpeech {
	return b.tts
}

// Active reports whether the behavior is active.
func (b *Behavior) Active() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.active
}

// Activate moves the behavior to active and runs OnActivate. It does
// nothing if the behavior is already active.
func (b *Behavior) Activate() {
	b.logger.Info("Activating behavior...")
	b.mutex.Lock()
	if b.active {
		b.mutex.Unlock()
		return
	}
	b.active = true
	b.mutex.Unlock()

	b.logger.Info("Behavior activated")
	b.hooks.OnActivate()
}

// Deactivate moves the behavior to inactive and runs OnDeactivate. It does
// nothing if the behavior is not active.
func (b *Behavior) Deactivate() {
	b.mutex.Lock()
	if !b.active {
		b.mutex.Unlock()
		return
	}
	b.active = false
	b.mutex.Unlock()

	b.logger.Info("Behavior deactivated")
	b.hooks.OnDeactivate()
}

// Say speaks message through the speech service.
func (b *Behavior) Say(message string) error {
	return b.tts.Say(message)
}
