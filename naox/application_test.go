package naox

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/edwinhayes/naox/qi/qitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBus(t *testing.T) *qitest.Bus {
	t.Helper()
	bus, err := qitest.NewBus()
	require.NoError(t, err)
	t.Cleanup(bus.Close)
	return bus
}

func testConfig(bus *qitest.Bus) Config {
	cfg := DefaultConfig()
	cfg.Name = "naoxtest"
	cfg.Address = "tcp://" + bus.Address()
	cfg.LogLevel = "warn"
	cfg.SpinInterval = 5 * time.Millisecond
	cfg.ExitOnInterrupt = false
	return cfg
}

func startApplication(t *testing.T, bus *qitest.Bus, cfg Config) *Application {
	t.Helper()
	app, err := NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

// countingHooks records hook calls and signals the first activation.
type countingHooks struct {
	activated   int32
	deactivated int32
	started     chan struct{}
}

func newCountingHooks() *countingHooks {
	return &countingHooks{started: make(chan struct{})}
}

func (h *countingHooks) OnActivate() {
	if atomic.AddInt32(&h.activated, 1) == 1 {
		close(h.started)
	}
}

func (h *countingHooks) OnDeactivate() {
	atomic.AddInt32(&h.deactivated, 1)
}

func (h *countingHooks) counts() (int, int) {
	return int(atomic.LoadInt32(&h.activated)), int(atomic.LoadInt32(&h.deactivated))
}

func TestNewRegistersWithBus(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))

	assert.Equal(t, "naoxtest", app.Name())
	assert.Equal(t, []string{app.Session().Name()}, bus.Clients())
	assert.Nil(t, app.Current())
}

func TestNewFailsWhenBusUnreachable(t *testing.T) {
	_, err := New("unreachable", "127.0.0.1:1")
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = ""
	_, err := NewWithConfig(cfg)
	assert.Error(t, err)
}

func TestRunActivatesAndStops(t *testing.T) {
	bus := startBus(t)
	cfg := testConfig(bus)
	cfg.Announcement = "Application started"
	app := startApplication(t, bus, cfg)

	hooks := newCountingHooks()
	behavior, err := NewBehavior(app, hooks)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(behavior) }()

	select {
	case <-hooks.started:
	case <-time.After(2 * time.Second):
		t.Fatal("behavior was not activated")
	}
	assert.Equal(t, Activity(behavior), app.Current())
	assert.True(t, behavior.Active())

	app.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.Equal(t, []string{"Application started"}, bus.Said())
	assert.Empty(t, bus.Clients())
	activated, deactivated := hooks.counts()
	assert.Equal(t, 1, activated)
	assert.Equal(t, 0, deactivated)
}

func TestRemoteShutdownEndsRun(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))

	hooks := newCountingHooks()
	behavior, err := NewBehavior(app, hooks)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(behavior) }()
	<-hooks.started

	bus.Shutdown("robot going to sleep")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, bus.Said())
}

// headGate waits for a head touch before finishing activation.
type headGate struct {
	behavior *Behavior
	touched  chan string
}

func (g *headGate) OnActivate() {
	part, err := g.behavior.AwaitTouch(HeadFrontTouch)
	if err != nil {
		close(g.touched)
		return
	}
	g.touched <- part
}

func (g *headGate) OnDeactivate() {}

func TestRunWithAwaitTouchInOnActivate(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))

	gate := &headGate{touched: make(chan string, 1)}
	var err error
	gate.behavior, err = NewBehavior(app, gate)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(gate.behavior) }()
	require.True(t, bus.WaitForSubscribers(TouchChangedEvent, 1, 2*time.Second))

	require.NoError(t, bus.Emit(TouchChangedEvent, `[["LArm", true, []], ["Head/Touch/Front", true, []]]`))
	select {
	case part, ok := <-gate.touched:
		require.True(t, ok, "AwaitTouch failed")
		assert.Equal(t, HeadFrontTouch, part)
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitTouch in OnActivate did not return")
	}
	assert.Equal(t, 0, bus.NumSubscribers(TouchChangedEvent))

	select {
	case err := <-done:
		t.Fatalf("Run returned %v before Stop", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, app.Session().OK())

	app.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
