package shlog

import "time"

// RouteLogger reports statements whose routing took longer than a threshold.
// A negative threshold disables reporting.
type RouteLogger struct {
	logMinDuration time.Duration
}

func NewRouteLogger(logMinDuration time.Duration) *RouteLogger {
	return &RouteLogger{
		logMinDuration: logMinDuration,
	}
}

func (s *RouteLogger) shouldLog(t time.Duration) bool {
	return s.logMinDuration >= 0 && t > s.logMinDuration
}

func (s *RouteLogger) ReportRoute(stmtType string, engine string, units int, t time.Duration) {
	if s == nil || !s.shouldLog(t) {
		return
	}
	Zero.Info().
		Str("stmt_type", stmtType).
		Str("engine", engine).
		Int("route_units", units).
		Dur("duration", t).
		Msg("slow routing")
}
