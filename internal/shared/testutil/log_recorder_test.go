package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failRecorder struct{ failed bool }

func (f *failRecorder) Helper()                 {}
func (f *failRecorder) Errorf(string, ...any) { f.failed = true }

func TestLogRecorder(t *testing.T) {
	t.Run("captures records and attributes", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		logger.Info("table loaded", slog.String("source", "jan.csv"), slog.Int("rows", 3))
		logger.Warn("non-numeric cells", slog.Float64("share", 0.5))

		require.Equal(t, 2, logs.Count())
		rec, ok := logs.Find("table loaded")
		require.True(t, ok)
		assert.Equal(t, slog.LevelInfo, rec.Level)
		assert.Equal(t, "jan.csv", rec.Attrs["source"])
		assert.Equal(t, int64(3), rec.Attrs["rows"])
		assert.Equal(t, []string{"non-numeric cells"}, logs.Messages(slog.LevelWarn))
	})

	t.Run("keeps attributes added with With", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		workflow := logger.With(slog.String("component", "workflow"))
		workflow.Info("starting analysis")
		logger.Info("unrelated")

		rec, ok := logs.Find("starting analysis")
		require.True(t, ok)
		assert.Equal(t, "workflow", rec.Attrs["component"])

		rec, ok = logs.Find("unrelated")
		require.True(t, ok)
		assert.NotContains(t, rec.Attrs, "component")
		assert.Equal(t, 2, logs.Count(), "derived loggers share one store")
	})

	t.Run("flattens groups", func(t *testing.T) {
		logger, logs := NewTestLogger(t)

		logger.WithGroup("paths").Info("resolved",
			slog.String("base", "/tmp"),
			slog.Group("files", slog.String("log", "verdiff.log")))

		AssertLogAttr(t, logs, "paths.base", "/tmp")
		AssertLogAttr(t, logs, "paths.files.log", "verdiff.log")
	})

	t.Run("assertions", func(t *testing.T) {
		logger, logs := NewTestLogger(t)
		logger.Info("trace table built", slog.Int("changed", 2))

		AssertLogContains(t, logs, slog.LevelInfo, "table built")
		AssertLogAttr(t, logs, "changed", int64(2))

		inner := &failRecorder{}
		AssertLogContains(inner, logs, slog.LevelError, "table built")
		assert.True(t, inner.failed, "message at another level must not match")

		inner = &failRecorder{}
		AssertLogAttr(inner, logs, "changed", 2)
		assert.True(t, inner.failed, "int attributes are captured as int64")
	})

	t.Run("concurrent writers", func(t *testing.T) {
		logger, logs := NewTestLogger(nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					logger.Debug("tick")
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 200, logs.Count())
	})
}
