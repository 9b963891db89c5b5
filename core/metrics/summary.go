package metrics

import (
	"maps"
	"time"
)

type StageUsage struct {
	Count         int
	TotalLatency  time.Duration
	TotalDuration time.Duration
	InputTokens   int
	OutputTokens  int
	Characters    int
	AudioDuration time.Duration
}

func (u StageUsage) AverageLatency() time.Duration {
	if u.Count == 0 {
		return 0
	}
	return u.TotalLatency / time.Duration(u.Count)
}

// UsageSummary aggregates every sample collected during a session.
type UsageSummary struct {
	Stages  map[Stage]StageUsage
	Dropped int64
}

func (s *UsageSummary) add(sample Sample) {
	if s.Stages == nil {
		s.Stages = map[Stage]StageUsage{}
	}
	usage := s.Stages[sample.Stage]
	usage.Count++
	usage.TotalLatency += sample.Latency
	usage.TotalDuration += sample.Duration
	usage.InputTokens += sample.InputTokens
	usage.OutputTokens += sample.OutputTokens
	usage.Characters += sample.Characters
	usage.AudioDuration += sample.AudioDuration
	s.Stages[sample.Stage] = usage
}

func (s UsageSummary) clone() UsageSummary {
	return UsageSummary{Stages: maps.Clone(s.Stages), Dropped: s.Dropped}
}
