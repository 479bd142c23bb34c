package naox

import (
	"sync"

	"github.com/edwinhayes/naox/qi"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Activity is what Run drives. *Behavior implements it, and so does any
// type embedding one.
type Activity interface {
	Activate()
	Deactivate()
}

// Application owns the session to the robot, the service cache and the
// currently running behavior.
type Application struct {
	name    string
	address string
	config  Config
	qiApp   *qi.Application
	session qi.Session
	logger  *logrus.Entry

	mutex    sync.Mutex
	services map[string]Service
	current  Activity
}

// New opens a session to the bus at address.
func New(name string, address string) (*Application, error) {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Address = address
	return NewWithConfig(cfg)
}

// NewWithConfig opens a session as described by cfg.
func NewWithConfig(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root := qi.NewLogger(cfg.LogLevel)
	logger := qi.ModuleLogger(root, "naox.application").WithField("application", cfg.Name)
	logger.Info("Starting application...")

	qiApp := qi.NewApplication(qi.Config{
		URL:             cfg.Address,
		Name:            cfg.Name,
		ExitOnInterrupt: cfg.ExitOnInterrupt,
		SpinInterval:    cfg.SpinInterval,
		Logger:          root,
	})
	if err := qiApp.Start(); err != nil {
		return nil, err
	}

	return &Application{
		name:     cfg.Name,
		address:  cfg.Address,
		config:   cfg,
		qiApp:    qiApp,
		session:  qiApp.Session(),
		logger:   logger,
		services: make(map[string]Service),
	}, nil
}

func (app *Application) Name() string {
	return app.name
}

func (app *Application) Address() string {
	return app.address
}

func (app *Application) Session() qi.Session {
	return app.session
}

func (app *Application) Logger() *logrus.Entry {
	return app.logger
}

// Current returns the behavior passed to Run, or nil.
func (app *Application) Current() Activity {
	app.mutex.Lock()
	defer app.mutex.Unlock()
	return app.current
}

// Service returns the named service from the cache, fetching and caching
// it on first use. Session errors are returned unchanged. Concurrent first
// requests may both fetch, but all callers get the same cached instance.
func (app *Application) Service(name string) (Service, error) {
	app.mutex.Lock()
	service, ok := app.services[name]
	app.mutex.Unlock()
	if ok {
		return service, nil
	}

	object, err := app.session.Service(name)
	if err != nil {
		return nil, err
	}

	app.mutex.Lock()
	defer app.mutex.Unlock()
	if cached, ok := app.services[name]; ok {
		return cached, nil
	}
	service = newService(app.session, object)
	app.services[name] = service
	app.logger.Debugf("Cached service %s", name)
	return service, nil
}

// Run makes activity the current behavior, activates it and then blocks
// until the session ends. Activity is not deactivated on return.
func (app *Application) Run(activity Activity) error {
	app.logger.Info("Running application...")
	app.mutex.Lock()
	app.current = activity
	app.mutex.Unlock()

	if app.config.Announcement != "" {
		service, err := app.Service(ServiceTextToSpeech)
		if err != nil {
			return err
		}
		tts, ok := service.(*TextToSpeech)
		if !ok {
			return errors.Errorf("%s is %T", ServiceTextToSpeech, service)
		}
		if err := tts.Say(app.config.Announcement); err != nil {
			return err
		}
	}

	activity.Activate()
	return app.qiApp.Run()
}

// Stop makes Run return. It may be called from a touch callback.
func (app *Application) Stop() {
	app.qiApp.Stop()
}

// Close shuts the session down without running. Use it when Run is never
// called.
func (app *Application) Close() {
	app.session.Shutdown()
}
