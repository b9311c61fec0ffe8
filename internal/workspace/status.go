package workspace

import "time"

// Status is a point-in-time view of the store's save pipeline.
type Status struct {
	Backend      string    `json:"backend"`
	MaxSnapshots int       `json:"max_snapshots"`
	Pending      int       `json:"pending"`
	Seq          int64     `json:"seq"`
	LastSaveAt   time.Time `json:"last_save_at,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastErrorAt  time.Time `json:"last_error_at,omitempty"`
}

// Status returns the current queue depth, save counters and last error.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Backend:      string(s.kv.Name()),
		MaxSnapshots: s.maxSnapshots,
		Pending:      s.queue.Pending(),
		Seq:          s.seq,
		LastSaveAt:   s.lastSaveAt,
		LastErrorAt:  s.lastErrAt,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
