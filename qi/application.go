package qi

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultSpinInterval is how often Run checks whether the session is
// still OK.
const DefaultSpinInterval = 100 * time.Millisecond

// Config configures an Application.
type Config struct {
	// URL of the bus, e.g. "tcp://127.0.0.1:9559".
	URL string
	// Name prefixes the caller id the session registers under.
	Name string
	// ExitOnInterrupt stops Run on SIGINT.
	ExitOnInterrupt bool
	// SpinInterval defaults to DefaultSpinInterval.
	SpinInterval time.Duration
	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Application owns one session to the bus and runs its event loop.
type Application struct {
	config  Config
	mutex   sync.Mutex
	session *defaultSession
	logger  *logrus.Entry
}

// NewApplication returns an application that is not yet connected.
func NewApplication(cfg Config) *Application {
	if cfg.Name == "" {
		cfg.Name = "naox"
	}
	if cfg.SpinInterval <= 0 {
		cfg.SpinInterval = DefaultSpinInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Application{
		config: cfg,
		logger: ModuleLogger(cfg.Logger, "qi.application"),
	}
}

// Start opens the session. An unreachable bus is returned as an error.
func (app *Application) Start() error {
	app.mutex.Lock()
	defer app.mutex.Unlock()
	if app.session != nil {
		return nil
	}
	session, err := newDefaultSession(app.config)
	if err != nil {
		return err
	}
	app.session = session
	app.logger.Debugf("Connected to %s as %s", session.busURI, session.name)
	return nil
}

// Session returns the open session, or nil before Start.
func (app *Application) Session() Session {
	app.mutex.Lock()
	defer app.mutex.Unlock()
	if app.session == nil {
		return nil
	}
	return app.session
}

// Run blocks until the session stops being OK, then shuts it down.
func (app *Application) Run() error {
	app.mutex.Lock()
	session := app.session
	app.mutex.Unlock()
	if session == nil {
		return errors.New("application is not started")
	}

	if app.config.ExitOnInterrupt {
		interruptChan := make(chan os.Signal, 1)
		signal.Notify(interruptChan, os.Interrupt)
		defer signal.Stop(interruptChan)
		go func() {
			select {
			case <-interruptChan:
				app.logger.Info("Interrupted")
				session.setOK(false)
			case <-session.doneChan:
			}
		}()
	}

	session.Spin()
	session.Shutdown()
	return nil
}

// Stop makes Run return. It is safe to call from a signal slot.
func (app *Application) Stop() {
	app.mutex.Lock()
	session := app.session
	app.mutex.Unlock()
	if session != nil {
		session.setOK(false)
	}
}
