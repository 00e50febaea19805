package queryfilter

import "github.com/prometheus/client_golang/prometheus"

// ConstructionMetrics is an optional, per-filter set of observational
// counters. No component's correctness depends on them; a filter built
// with a nil Registerer simply doesn't record anything, and every
// method on a nil *ConstructionMetrics is a safe no-op.
type ConstructionMetrics struct {
	tasksTotal           prometheus.Counter
	tasksCompleted       prometheus.Counter
	segmentsCoarsePruned prometheus.Counter
	segmentsIndexEmpty   prometheus.Counter
	rowsVisitedLeftover  prometheus.Counter
	rowsSurvived         prometheus.Counter
}

// newConstructionMetrics registers the counter family against reg, or
// returns nil if reg is nil.
func newConstructionMetrics(reg prometheus.Registerer) *ConstructionMetrics {
	if reg == nil {
		return nil
	}
	m := &ConstructionMetrics{
		tasksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queryfilter", Name: "tasks_total", Help: "segment construction tasks scheduled",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queryfilter", Name: "tasks_completed", Help: "segment construction tasks completed",
		}),
		segmentsCoarsePruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queryfilter", Name: "segments_coarse_pruned", Help: "segments skipped by the coarse filter",
		}),
		segmentsIndexEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queryfilter", Name: "segments_index_empty", Help: "segments whose index pass matched zero rows",
		}),
		rowsVisitedLeftover: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queryfilter", Name: "rows_visited_leftover", Help: "rows evaluated by the leftover pass",
		}),
		rowsSurvived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "queryfilter", Name: "rows_survived", Help: "rows surviving construction across all segments",
		}),
	}
	reg.MustRegister(m.tasksTotal, m.tasksCompleted, m.segmentsCoarsePruned,
		m.segmentsIndexEmpty, m.rowsVisitedLeftover, m.rowsSurvived)
	return m
}

func (m *ConstructionMetrics) addTasksTotal(n int) {
	if m != nil {
		m.tasksTotal.Add(float64(n))
	}
}

func (m *ConstructionMetrics) incTasksCompleted() {
	if m != nil {
		m.tasksCompleted.Inc()
	}
}

func (m *ConstructionMetrics) incSegmentsCoarsePruned() {
	if m != nil {
		m.segmentsCoarsePruned.Inc()
	}
}

func (m *ConstructionMetrics) incSegmentsIndexEmpty() {
	if m != nil {
		m.segmentsIndexEmpty.Inc()
	}
}

func (m *ConstructionMetrics) addRowsSurvived(n uint64) {
	if m != nil {
		m.rowsSurvived.Add(float64(n))
	}
}

func (m *ConstructionMetrics) addRowsVisitedLeftover(n int) {
	if m != nil {
		m.rowsVisitedLeftover.Add(float64(n))
	}
}
