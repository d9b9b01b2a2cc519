package contracts

import "time"

// RankingSnapshot is a precomputed, TTL-bound ordered ranking for one period.
// It is derived state: rebuildable at any time from the record store.
type RankingSnapshot struct {
	Period       string    `json:"period"`
	Records      []Record  `json:"records"`
	TotalRecords int       `json:"total_records"`
	ComputedAt   time.Time `json:"computed_at"`
	RefreshCount int       `json:"refresh_count"`
}

// Expired reports whether the snapshot is older than ttl
func (s *RankingSnapshot) Expired(ttl time.Duration) bool {
	return time.Since(s.ComputedAt) > ttl
}

// Page returns the records in [offset, offset+limit), clamped to bounds
func (s *RankingSnapshot) Page(limit, offset int) []Record {
	if offset < 0 || offset >= len(s.Records) {
		return nil
	}
	end := offset + limit
	if end > len(s.Records) {
		end = len(s.Records)
	}
	return s.Records[offset:end]
}

// RefreshStatus is the lifecycle state of a background refresh job
type RefreshStatus string

const (
	RefreshIdle      RefreshStatus = "idle"
	RefreshRunning   RefreshStatus = "running"
	RefreshCompleted RefreshStatus = "completed"
	RefreshFailed    RefreshStatus = "failed"
)

// RefreshJob reports the state of the background refresh. At most one job is
// running system-wide at any time.
type RefreshJob struct {
	ID        string        `json:"id,omitempty"`
	Status    RefreshStatus `json:"status"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	LastError string        `json:"last_error,omitempty"`

	LastUpdate    *time.Time `json:"last_update,omitempty"`
	NextScheduled *time.Time `json:"next_scheduled,omitempty"`
	StoredCount   int        `json:"stored_count,omitempty"`
}
