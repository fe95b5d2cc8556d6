// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusDenied  = "denied"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Authentication metrics
	IncSignUp(status string)
	IncSignIn(status string)
	IncSubOrgCreated(status string)

	// Custody API metrics
	ObserveCustodyRequest(path, status string, duration time.Duration)

	// Wallet provider metrics
	IncRPCRequest(method, status string)
	ObserveRPCDuration(method string, duration time.Duration)
}
