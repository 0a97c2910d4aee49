package infra

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

// ActivityLog implements domain.ActivitySink by writing one info entry per poll.
type ActivityLog struct {
	logger *zap.Logger
}

// NewActivityLog creates an activity sink on logger.
func NewActivityLog(logger *zap.Logger) *ActivityLog {
	return &ActivityLog{logger: logger}
}

// Record logs the observation together with the window it was made for.
func (a *ActivityLog) Record(entry domain.ActivityEntry) {
	attrs := entry.Attributes
	a.logger.Info("active window",
		isoTime("start_time", entry.FocusStart),
		zap.Int64("start_time_unix", entry.FocusStart.Unix()),
		isoTime("current_time", entry.Now),
		zap.Int64("current_time_unix", entry.Now.Unix()),
		isoTime("last_active_window", entry.PrevLastSeen),
		zap.Int64("last_active_window_unix", entry.PrevLastSeen.Unix()),
		zap.Int("active_seconds", entry.Duration),
		zap.Bool("refocused", entry.Refocused),
		zap.String("wid", windowHex(attrs.Window)),
		zap.Int("window_pid", attrs.PID),
		zap.String("window_name", attrs.Name),
		zap.Strings("window_class", attrs.Classes),
		zap.String("window_machine", attrs.Machine),
		zap.String("short_current_window", attrs.ShortName()),
		zap.Stringer("key", entry.Key),
		zap.String("session_id", entry.SessionID),
	)
}

func isoTime(key string, t time.Time) zap.Field {
	return zap.String(key, t.UTC().Format(time.RFC3339))
}

func windowHex(id domain.WindowID) string {
	return fmt.Sprintf("0x%08x", uint32(id))
}

// Ensure ActivityLog implements domain.ActivitySink.
var _ domain.ActivitySink = (*ActivityLog)(nil)
