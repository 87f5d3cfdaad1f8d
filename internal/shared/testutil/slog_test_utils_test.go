package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler_Captures(t *testing.T) {
	logger, h := NewTestLogger(t)

	logger.Info("table loaded", slog.Int("wells", 96))
	logger.Error("fit failed", slog.String("well", "A1"))

	require.Equal(t, 2, h.Count())
	assert.True(t, h.ContainsMessage("table loaded"))
	assert.True(t, h.ContainsAttr("well", "A1"))
	assert.EqualValues(t, 96, h.GetRecords()[0].Attrs["wells"])
	assert.Len(t, h.GetRecordsByLevel(slog.LevelError), 1)

	h.Clear()
	assert.Zero(t, h.Count())
}

func TestBufferedSlogHandler_BoundAttrs(t *testing.T) {
	logger, h := NewTestLogger(t)

	svc := logger.With(slog.String("component", "analysis_service"))
	svc.Info("run started")
	svc.WithGroup("params").Info("updated", slog.Int("baseline", 15))
	logger.Info("unscoped")

	scoped := h.ByComponent("analysis_service")
	require.Len(t, scoped, 2)
	assert.Equal(t, "run started", scoped[0].Message)
	assert.EqualValues(t, 15, scoped[1].Attrs["params.baseline"])
	assert.Empty(t, h.GetRecords()[2].Component())
}

func TestBufferedSlogHandler_Assertions(t *testing.T) {
	logger, h := NewTestLogger(nil)

	logger.Info("layout saved", slog.String("component", "layout"))
	logger.Warn("short baseline", slog.Int("frames", 3))

	AssertLogContains(t, h, slog.LevelInfo, "saved")
	AssertLogAttr(t, h, "component", "layout")
	AssertNoErrors(t, h)
}

func TestBufferedSlogHandler_Concurrent(t *testing.T) {
	logger, h := NewTestLogger(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.With(slog.Int("worker", n)).Info("well processed")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, h.Count())
}
