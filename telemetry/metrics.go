package telemetry

// Metrics is the fixed set of server-wide counters/gauges updated by
// the server package, constructed once at startup and
// passed down by reference (mirrors the teacher's pattern of building
// named metrics up front rather than looking them up by string at call
// sites).
type Metrics struct {
	ConnectionsAccepted Counter
	ConnectionsActive   Gauge
	StatementsExecuted  Counter
	StatementErrors     Counter
	WriteLockWaits      Counter
	BusyTimeouts        Counter
	StatementLatency    Histogram
}

// NewMetrics builds a Metrics bound to the current registry, or an
// all-noop Metrics if telemetry was never enabled.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsAccepted: NewCounter("connections_accepted_total", "total accepted client connections"),
		ConnectionsActive:   NewGauge("connections_active", "currently active client connections"),
		StatementsExecuted:  NewCounter("statements_executed_total", "total statements executed successfully"),
		StatementErrors:     NewCounter("statement_errors_total", "total statements that returned an error"),
		WriteLockWaits:      NewCounter("write_lock_waits_total", "total times a statement parked waiting for the write lock"),
		BusyTimeouts:        NewCounter("busy_timeouts_total", "total statements that surfaced Busy after their wait timed out"),
		StatementLatency:    NewHistogram("statement_latency_seconds", "statement execution latency", []float64{.001, .005, .01, .05, .1, .5, 1, 5}),
	}
}
