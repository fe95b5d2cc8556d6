package metrics

import (
	"sync"
	"time"
)

// Snapshot captures current in-memory counters, keyed by label values
// joined with "|".
type Snapshot struct {
	SignUps          map[string]uint64
	SignIns          map[string]uint64
	SubOrgsCreated   map[string]uint64
	CustodyRequests  map[string]uint64
	RPCRequests      map[string]uint64
	RPCDurationCount uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu               sync.Mutex
	signUps          map[string]uint64
	signIns          map[string]uint64
	subOrgsCreated   map[string]uint64
	custodyRequests  map[string]uint64
	rpcRequests      map[string]uint64
	rpcDurationCount uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		signUps:         make(map[string]uint64),
		signIns:         make(map[string]uint64),
		subOrgsCreated:  make(map[string]uint64),
		custodyRequests: make(map[string]uint64),
		rpcRequests:     make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		SignUps:          copyCounts(m.signUps),
		SignIns:          copyCounts(m.signIns),
		SubOrgsCreated:   copyCounts(m.subOrgsCreated),
		CustodyRequests:  copyCounts(m.custodyRequests),
		RPCRequests:      copyCounts(m.rpcRequests),
		RPCDurationCount: m.rpcDurationCount,
	}
}

// IncSignUp counts a sign-up attempt.
func (m *InMemoryRecorder) IncSignUp(status string) {
	m.inc(m.signUps, status)
}

// IncSignIn counts a sign-in attempt.
func (m *InMemoryRecorder) IncSignIn(status string) {
	m.inc(m.signIns, status)
}

// IncSubOrgCreated counts a sub-organization creation.
func (m *InMemoryRecorder) IncSubOrgCreated(status string) {
	m.inc(m.subOrgsCreated, status)
}

// ObserveCustodyRequest counts a custody API call. Durations are not kept.
func (m *InMemoryRecorder) ObserveCustodyRequest(path, status string, _ time.Duration) {
	m.inc(m.custodyRequests, path+"|"+status)
}

// IncRPCRequest counts a wallet provider request.
func (m *InMemoryRecorder) IncRPCRequest(method, status string) {
	m.inc(m.rpcRequests, method+"|"+status)
}

// ObserveRPCDuration counts a wallet provider duration sample.
func (m *InMemoryRecorder) ObserveRPCDuration(_ string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rpcDurationCount++
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts[key]++
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Recorder = (*InMemoryRecorder)(nil)
