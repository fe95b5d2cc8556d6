package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSignUp is a no-op.
func (n *NoopRecorder) IncSignUp(status string) {}

// IncSignIn is a no-op.
func (n *NoopRecorder) IncSignIn(status string) {}

// IncSubOrgCreated is a no-op.
func (n *NoopRecorder) IncSubOrgCreated(status string) {}

// ObserveCustodyRequest is a no-op.
func (n *NoopRecorder) ObserveCustodyRequest(path, status string, duration time.Duration) {}

// IncRPCRequest is a no-op.
func (n *NoopRecorder) IncRPCRequest(method, status string) {}

// ObserveRPCDuration is a no-op.
func (n *NoopRecorder) ObserveRPCDuration(method string, duration time.Duration) {}
