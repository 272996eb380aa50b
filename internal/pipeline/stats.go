package pipeline

import (
	"sync/atomic"

	"logtrigger/pkg/metrics"
)

// Stats holds monotonically increasing counters that are safe to read while
// the pipeline runs. Each counter is mirrored to Prometheus.
type Stats struct {
	linesProcessed    atomic.Uint64
	linesDropped      atomic.Uint64
	firingsMatched    atomic.Uint64
	firingsExecuted   atomic.Uint64
	firingsFailed     atomic.Uint64
	firingsSuppressed atomic.Uint64
	firingsDropped    atomic.Uint64
	actionsExecuted   atomic.Uint64
	actionsFailed     atomic.Uint64
	workerPanics      atomic.Uint64
}

type StatsSnapshot struct {
	LinesProcessed    uint64 `json:"lines_processed"`
	LinesDropped      uint64 `json:"lines_dropped"`
	FiringsMatched    uint64 `json:"firings_matched"`
	FiringsExecuted   uint64 `json:"firings_executed"`
	FiringsFailed     uint64 `json:"firings_failed"`
	FiringsSuppressed uint64 `json:"firings_suppressed"`
	FiringsDropped    uint64 `json:"firings_dropped"`
	ActionsExecuted   uint64 `json:"actions_executed"`
	ActionsFailed     uint64 `json:"actions_failed"`
	WorkerPanics      uint64 `json:"worker_panics"`
}

func NewStats() *Stats {
	return &Stats{}
}

// RecordStep counts the outcome of a single action step.
func (s *Stats) RecordStep(actionType string, ok bool) {
	if ok {
		s.actionsExecuted.Add(1)
		metrics.IncActionStep(actionType, "success")
		return
	}
	s.actionsFailed.Add(1)
	metrics.IncActionStep(actionType, "failure")
}

func (s *Stats) lineProcessed() {
	s.linesProcessed.Add(1)
	metrics.IncLinesProcessed()
}

func (s *Stats) lineDropped() {
	s.linesDropped.Add(1)
}

func (s *Stats) firing(rule, outcome string) {
	switch outcome {
	case outcomeExecuted:
		s.firingsExecuted.Add(1)
	case outcomeFailed:
		s.firingsFailed.Add(1)
	case outcomeSuppressed:
		s.firingsSuppressed.Add(1)
	case outcomeDropped:
		s.firingsDropped.Add(1)
	}
	metrics.IncFiring(rule, outcome)
}

func (s *Stats) matchedFirings(n int) {
	s.firingsMatched.Add(uint64(n))
}

func (s *Stats) workerPanic() {
	s.workerPanics.Add(1)
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		LinesProcessed:    s.linesProcessed.Load(),
		LinesDropped:      s.linesDropped.Load(),
		FiringsMatched:    s.firingsMatched.Load(),
		FiringsExecuted:   s.firingsExecuted.Load(),
		FiringsFailed:     s.firingsFailed.Load(),
		FiringsSuppressed: s.firingsSuppressed.Load(),
		FiringsDropped:    s.firingsDropped.Load(),
		ActionsExecuted:   s.actionsExecuted.Load(),
		ActionsFailed:     s.actionsFailed.Load(),
		WorkerPanics:      s.workerPanics.Load(),
	}
}

const (
	outcomeExecuted   = "executed"
	outcomeFailed     = "failed"
	outcomeSuppressed = "suppressed"
	outcomeDropped    = "dropped"
)
