package audit

import "log/slog"

// SlogSink writes each entry as a structured JSON line via log/slog,
// matching the teacher's ambient logging idiom throughout the rest of this
// repo (see cmd/proxy/main.go for the handler construction).
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps an existing slog.Logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Record(e Entry) {
	s.logger.Info("pipeline call",
		"timestamp", e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		"request_id", e.RequestID,
		"provider", e.Provider,
		"model", e.Model,
		"session_id", e.SessionID,
		"interceptors", e.Interceptors,
		"violations", e.Violations,
		"outcome", e.Outcome,
		"input_tokens", e.InputTokens,
		"output_tokens", e.OutputTokens,
		"cost_usd", e.CostUSD,
		"duration_ms", e.DurationMS,
	)
}
