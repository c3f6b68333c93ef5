package status

import (
	"sort"
	"sync"
	"time"
)

// Status is the last observed verdict for a monitored host.
type Status string

const (
	Running          Status = "Running"
	Restarted        Status = "Restarted"
	ConnectionFailed Status = "Connection Failed"
	Error            Status = "Error"
)

// Record is the last-known state for one host. It is replaced wholesale
// every pass; fields are never mutated in place after the record is stored.
// Detail carries a human-readable cause when Status is Error.
type Record struct {
	Index     int       `json:"index"`
	Hostname  string    `json:"hostname"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	LastCheck time.Time `json:"last_check"`
	Username  string    `json:"username"`
}

// StatusText renders the status for table output, folding the error
// detail into the text the way the JSON API does not.
func (r Record) StatusText() string {
	if r.Status == Error && r.Detail != "" {
		return string(r.Status) + ": " + r.Detail
	}
	return string(r.Status)
}

// Store maps hostname to the latest Record. The reconciliation loop writes
// it while the HTTP server reads it concurrently, so all access goes through
// the mutex. Records are never deleted; a host removed from configuration
// keeps its last record until process restart.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Set replaces the record for rec.Hostname atomically.
func (s *Store) Set(rec Record) {
	s.mu.Lock()
	s.records[rec.Hostname] = rec
	s.mu.Unlock()
}

// Get returns the record for hostname, reporting whether one exists.
func (s *Store) Get(hostname string) (Record, bool) {
	s.mu.RLock()
	rec, ok := s.records[hostname]
	s.mu.RUnlock()
	return rec, ok
}

// Snapshot returns a copy of all records ordered by Index. The copy is
// detached from the store; later writes do not affect it.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
