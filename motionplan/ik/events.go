package ik

import (
	"github.com/samber/lo"

	"github.com/kinetree/kinetree/logging"
)

// EventKind identifies what a solver reports to an EventSink.
type EventKind int

// solver events.
const (
	EventRotationsChanged EventKind = iota
	EventExplore
	EventConverged
	EventTreeRealigned
	EventTreeIteration
)

func (k EventKind) String() string {
	switch k {
	case EventRotationsChanged:
		return "rotations_changed"
	case EventExplore:
		return "explore"
	case EventConverged:
		return "converged"
	case EventTreeRealigned:
		return "tree_realigned"
	case EventTreeIteration:
		return "tree_iteration"
	default:
		return "unknown"
	}
}

// Event is a notification about a change of solver state.
type Event struct {
	Kind      EventKind
	Chain     string
	Iteration int
	Error     float64
}

// EventSink observes solver progress, for example to redraw a skeleton. Sinks must not mutate
// the chains they are notified about.
type EventSink interface {
	Notify(Event)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(Event)

// Notify calls f.
func (f EventSinkFunc) Notify(e Event) {
	f(e)
}

type multiEventSink []EventSink

// NewMultiEventSink returns a sink forwarding every event to each non-nil sink in order.
func NewMultiEventSink(sinks ...EventSink) EventSink {
	return multiEventSink(lo.Filter(sinks, func(s EventSink, _ int) bool { return s != nil }))
}

func (m multiEventSink) Notify(e Event) {
	for _, s := range m {
		s.Notify(e)
	}
}

type loggingEventSink struct {
	logger logging.Logger
}

// NewLoggingEventSink returns a sink writing every event to logger at debug level.
func NewLoggingEventSink(logger logging.Logger) EventSink {
	return &loggingEventSink{logger: logger}
}

func (s *loggingEventSink) Notify(e Event) {
	s.logger.Debugw("solver event", "kind", e.Kind.String(), "chain", e.Chain, "iteration", e.Iteration, "error", e.Error)
}

// Stats counts the work done by one solver.
type Stats struct {
	Iterations      int
	Improvements    int
	Explorations    int
	SearchCalls     int
	LeavesEvaluated int
}
