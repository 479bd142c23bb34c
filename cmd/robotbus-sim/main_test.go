package main

import (
	"strings"
	"testing"
	"time"

	"github.com/buger/jsonparser"
	"github.com/edwinhayes/naox/qi"
	"github.com/edwinhayes/naox/qi/qitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	command, rest := splitCommand("  emit Demo/Event  [1, 2] ")
	assert.Equal(t, "emit", command)
	assert.Equal(t, "Demo/Event  [1, 2]", rest)

	command, rest = splitCommand("quit")
	assert.Equal(t, "quit", command)
	assert.Equal(t, "", rest)
}

func TestExecuteRejectsBadCommands(t *testing.T) {
	bus, err := qitest.NewBus()
	require.NoError(t, err)
	defer bus.Close()

	for _, line := range []string{"dance", "touch", "mark", "mark sixty", "emit Demo/Event", "emit Demo/Event [1,"} {
		quit, err := execute(bus, line)
		assert.Error(t, err, line)
		assert.False(t, quit, line)
	}
}

func TestServeStopsOnQuit(t *testing.T) {
	bus, err := qitest.NewBus()
	require.NoError(t, err)
	defer bus.Close()

	logger := qi.ModuleLogger(qi.NewLogger("error"), "robotbus-sim")
	input := strings.NewReader("# comment\n\nbogus\ntouch LArm\nlost\nquit\ntouch RArm\n")
	assert.NoError(t, serve(bus, input, logger))
}

func TestMarkDetection(t *testing.T) {
	now := time.Unix(42, 7000)
	detection, err := markDetection(now, []string{"64", "68"})
	require.NoError(t, err)

	require.Len(t, detection, 5)
	marks := detection[1].([]interface{})
	require.Len(t, marks, 2)
	second := marks[1].([]interface{})
	assert.Equal(t, []interface{}{68}, second[1])
	assert.Equal(t, []interface{}{int64(42), 7}, detection[0])
}

func TestTouchCommandEmitsBatch(t *testing.T) {
	bus, err := qitest.NewBus()
	require.NoError(t, err)
	defer bus.Close()

	app := qi.NewApplication(qi.Config{URL: bus.Address(), Name: "sim", Logger: qi.NewLogger("error")})
	require.NoError(t, app.Start())
	defer app.Session().Shutdown()

	received := make(chan []byte, 1)
	_, err = app.Session().Subscribe("TouchChanged", func(payload []byte) {
		received <- payload
	})
	require.NoError(t, err)

	quit, err := execute(bus, "release Head/Touch/Front")
	require.NoError(t, err)
	assert.False(t, quit)

	select {
	case payload := <-received:
		part, err := jsonparser.GetString(payload, "[0]", "[0]")
		require.NoError(t, err)
		assert.Equal(t, "Head/Touch/Front", part)
		active, err := jsonparser.GetBoolean(payload, "[0]", "[1]")
		require.NoError(t, err)
		assert.False(t, active)
	case <-time.After(2 * time.Second):
		t.Fatal("touch batch was not delivered")
	}
}
