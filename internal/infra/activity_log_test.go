package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

func sampleEntry() domain.ActivityEntry {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return domain.ActivityEntry{
		Observation: domain.Observation{
			Key:          domain.RuleKey("Firefox"),
			FocusStart:   start,
			Now:          start.Add(90 * time.Second),
			PrevLastSeen: start.Add(89 * time.Second),
			Duration:     90,
		},
		Attributes: domain.WindowAttributes{
			Window:  0x3a0000b,
			Classes: []string{"Navigator", "firefox"},
			PID:     4242,
			HasPID:  true,
			Name:    "Mozilla Firefox",
			HasName: true,
			Machine: "desk",
		},
		SessionID: "s-1",
	}
}

func TestActivityLog_Record(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewActivityLog(zap.New(core))

	sink.Record(sampleEntry())

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "2026-10-19T12:00:00Z", fields["start_time"])
	assert.Equal(t, int64(1792411200), fields["start_time_unix"])
	assert.Equal(t, "2026-10-19T12:01:30Z", fields["current_time"])
	assert.Equal(t, int64(1792411290), fields["current_time_unix"])
	assert.Equal(t, "2026-10-19T12:01:29Z", fields["last_active_window"])
	assert.Equal(t, int64(1792411289), fields["last_active_window_unix"])
	assert.Equal(t, int64(90), fields["active_seconds"])
	assert.Equal(t, "0x03a0000b", fields["wid"])
	assert.Equal(t, []interface{}{"Navigator", "firefox"}, fields["window_class"])
	assert.Equal(t, "Navigator", fields["short_current_window"])
	assert.Equal(t, "rule:Firefox", fields["key"])
	assert.Equal(t, "s-1", fields["session_id"])
}

func TestActivityLog_OneEntryPerPollAtInfo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewActivityLog(zap.New(core))

	for i := 0; i < 3; i++ {
		sink.Record(sampleEntry())
	}

	require.Equal(t, 3, logs.Len())
	for _, e := range logs.All() {
		assert.Equal(t, zapcore.InfoLevel, e.Level)
		assert.Equal(t, "active window", e.Message)
	}
}
