package goRelay

import "log/slog"

// LevelTrace sits below Debug and carries per-broadcast detail.
const LevelTrace = slog.LevelDebug - 4

// LevelForVerbosity maps the 0..4 verbosity scale onto slog levels:
// 0 warnings only, 1 session connects and disconnects, 2 channel changes,
// 3 protocol detail, 4 per-broadcast counts.
func LevelForVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	case v <= 3:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}
