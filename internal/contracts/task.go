package contracts

import "time"

// TaskStatus is the lifecycle state of an enrichment task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the task will not run again
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// MaxTaskAttempts caps how often a task may be retried
const MaxTaskAttempts = 3

// EnrichmentTask is a scheduled backfill of missing or stale fields for one
// symbol. At most one pending/in-progress task exists per symbol.
type EnrichmentTask struct {
	ID       string     `json:"id"`
	Symbol   string     `json:"symbol"`
	Priority int        `json:"priority"` // 1=high, 2=medium, 3=low
	Status   TaskStatus `json:"status"`

	MissingFields    []string     `json:"missing_fields,omitempty"`
	PreferredSources []DataSource `json:"preferred_sources,omitempty"`

	Attempts int `json:"attempts"`

	CreatedAt    time.Time  `json:"created_at"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Success        bool     `json:"success"`
	FieldsEnriched []string `json:"fields_enriched,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
}

// SourceMetrics tracks per-(source,symbol) call outcomes, used to pick the
// best sources for future enrichment.
type SourceMetrics struct {
	Symbol string     `json:"symbol"`
	Source DataSource `json:"source"`

	SuccessfulCalls int `json:"successful_calls"`
	FailedCalls     int `json:"failed_calls"`

	LastSuccessfulCall *time.Time `json:"last_successful_call,omitempty"`
	LastFailedCall     *time.Time `json:"last_failed_call,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// SuccessRate returns the fraction of calls that succeeded
func (m *SourceMetrics) SuccessRate() float64 {
	total := m.SuccessfulCalls + m.FailedCalls
	if total == 0 {
		return 0
	}
	return float64(m.SuccessfulCalls) / float64(total)
}
