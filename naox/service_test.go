package naox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceIsCached(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))

	first, err := app.Service(ServiceTextToSpeech)
	require.NoError(t, err)
	second, err := app.Service(ServiceTextToSpeech)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, bus.Lookups(ServiceTextToSpeech))
	assert.IsType(t, &TextToSpeech{}, first)
}

func TestUseServiceSharesApplicationCache(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))

	first, err := NewBehavior(app, nil)
	require.NoError(t, err)
	second, err := NewBehavior(app, nil)
	require.NoError(t, err)

	memory, err := UseService(second, ServiceMemory)
	require.NoError(t, err)
	assert.Same(t, first.Memory(), memory)
	assert.Same(t, first.Memory(), second.Memory())
	assert.Equal(t, 1, bus.Lookups(ServiceMemory))
	assert.Equal(t, 1, bus.Lookups(ServiceTextToSpeech))
}

func TestUnknownServiceIsNotCached(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))

	_, err := app.Service("ALNothing")
	assert.Error(t, err)
	_, err = app.Service("ALNothing")
	assert.Error(t, err)
	assert.Equal(t, 2, bus.Lookups("ALNothing"))
}

func TestGenericService(t *testing.T) {
	bus := startBus(t)
	bus.AddService("ALEcho", func(method string, args []interface{}) (interface{}, error) {
		return args[0], nil
	})
	app := startApplication(t, bus, testConfig(bus))

	service, err := app.Service("ALEcho")
	require.NoError(t, err)
	echo, ok := service.(*GenericService)
	require.True(t, ok, "got %T", service)

	value, err := echo.Call("echo", "ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", value)
}

func TestMemoryData(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))
	behavior, err := NewBehavior(app, nil)
	require.NoError(t, err)
	memory := behavior.Memory()

	_, err = memory.GetData("Demo/Missing")
	assert.Error(t, err)

	require.NoError(t, memory.InsertData("Demo/Greeting", "hello"))
	value, err := memory.GetData("Demo/Greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestMemoryRaiseEvent(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))
	behavior, err := NewBehavior(app, nil)
	require.NoError(t, err)

	received := make(chan string, 1)
	subscriber, err := behavior.Memory().Subscriber("Demo/Event", func(payload []byte) {
		received <- string(payload)
	})
	require.NoError(t, err)
	defer subscriber.Unsubscribe()

	require.NoError(t, behavior.Memory().RaiseEvent("Demo/Event", "hello"))
	select {
	case payload := <-received:
		assert.Equal(t, `"hello"`, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestLandmarkDetectionExtractor(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))

	service, err := app.Service(ServiceLandmarkDetection)
	require.NoError(t, err)
	landmarks, ok := service.(*LandmarkDetection)
	require.True(t, ok, "got %T", service)

	require.NoError(t, landmarks.Subscribe("demo", 500, 0.0))
	assert.Equal(t, []string{"demo"}, bus.Extractors())
	require.NoError(t, landmarks.Unsubscribe("demo"))
	assert.Empty(t, bus.Extractors())
	assert.Error(t, landmarks.Unsubscribe("demo"))
}
