package naox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoMarks = `[[10, 500], [[[1, 0.1, -0.2, 0.05, 0.05, 0.0], [64]], [[1, 0.3, 0.1, 0.04, 0.04, 1.5], [68]]], [0, 0, 0, 0, 0, 0], [0, 0, 0, 0, 0, 0], 0]`

func TestDecodeMarkDetection(t *testing.T) {
	detection, err := decodeMarkDetection([]byte(twoMarks))
	require.NoError(t, err)

	assert.True(t, detection.Time.Equal(time.Unix(10, 500*int64(time.Microsecond))))
	require.Len(t, detection.Marks, 2)
	assert.Equal(t, MarkInfo{ID: 64, Alpha: 0.1, Beta: -0.2, SizeX: 0.05, SizeY: 0.05, Heading: 0}, detection.Marks[0])
	assert.Equal(t, 68, detection.Marks[1].ID)
	assert.Equal(t, 1.5, detection.Marks[1].Heading)
}

func TestDecodeMarksLost(t *testing.T) {
	detection, err := decodeMarkDetection([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, detection.Marks)
}

func TestDecodeMarkDetectionRejectsMalformed(t *testing.T) {
	for _, payload := range []string{
		`{"marks": []}`,
		`[[10, 0], [[[1, 0.1], [64]]]]`,
		`[[10, 0], [[[1, 0.1, 0.2, 0.3, 0.4, 0.5], []]]]`,
		`[[10, 0], [5]]`,
		`[["ten", 0], []]`,
		`[[10, 0], [[[1, 0.1, 0.2, 0.3, 0.4, 0.5], [64]] [[1, 0.1, 0.2, 0.3, 0.4, 0.5], [68]]]]`,
	} {
		_, err := decodeMarkDetection([]byte(payload))
		assert.Error(t, err, payload)
	}
}

func TestOnMarkDetected(t *testing.T) {
	bus := startBus(t)
	app := startApplication(t, bus, testConfig(bus))
	behavior, err := NewBehavior(app, nil)
	require.NoError(t, err)

	detected := make(chan MarkDetection, 10)
	subscription, err := behavior.OnMarkDetected(func(detection MarkDetection) {
		detected <- detection
	})
	require.NoError(t, err)
	assert.Equal(t, LandmarkDetectedEvent, subscription.Event())

	extractors := bus.Extractors()
	require.Len(t, extractors, 1)
	assert.True(t, strings.HasPrefix(extractors[0], app.Session().Name()+"/"), extractors[0])

	require.NoError(t, bus.Emit(LandmarkDetectedEvent, `[]`))
	require.NoError(t, bus.Emit(LandmarkDetectedEvent, twoMarks))
	select {
	case detection := <-detected:
		require.Len(t, detection.Marks, 2)
		assert.Equal(t, 64, detection.Marks[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("detection was not delivered")
	}

	require.NoError(t, behavior.ClearSubscriptions())
	assert.Empty(t, bus.Extractors())
	assert.Equal(t, 0, bus.NumSubscribers(LandmarkDetectedEvent))
	assert.Empty(t, detected)
}
