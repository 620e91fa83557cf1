package unit

// RunStatus is the lifecycle state of one reconstructed execution.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

// Trigger classifies what started an execution. It is inferred from
// log message keywords, so treat it as best-effort metadata rather
// than an authoritative signal.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// ExecutionRecord is one discrete run of a unit's underlying service,
// reconstructed from journal lines sharing an invocation id or from a
// per-run log file.
//
// Timestamps are "2006-01-02 15:04:05" strings in UTC.
// DurationSeconds is nil while the run is still in flight or when no
// usable end marker was observed.
type ExecutionRecord struct {
	InvocationID    string    `json:"invocation_id"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time,omitempty"`
	DurationSeconds *int64    `json:"duration_seconds,omitempty"`
	Status          RunStatus `json:"status"`
	ExitCode        *int      `json:"exit_code,omitempty"`
	Trigger         Trigger   `json:"trigger"`
}

// ExecutionDetail is an ExecutionRecord plus the full captured output.
type ExecutionDetail struct {
	ExecutionRecord
	Output []string `json:"output"`
}
