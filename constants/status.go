package constants

// JobStatus is the canonical status for validation job records.
type JobStatus string

// Stable values (store these exact strings in the job store).
const (
	JobStatusQueued     JobStatus = "QUEUED"     // accepted, waiting for a worker
	JobStatusExtracting JobStatus = "EXTRACTING" // stage 1 in progress (text + regions)
	JobStatusAnalyzing  JobStatus = "ANALYZING"  // stage 2 in progress (field matching)
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal success, result persisted
	JobStatusFailed     JobStatus = "FAILED"     // terminal failure, last_error set
)

// Terminal reports whether no further automatic transition occurs.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusExtracting, JobStatusAnalyzing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
