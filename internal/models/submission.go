package models

import "time"

// Submission lifecycle states as persisted on the submission record.
const (
	SubmissionStatusPending           = "pending"
	SubmissionStatusRunning           = "running"
	SubmissionStatusAccepted          = "accepted"
	SubmissionStatusWrongAnswer       = "wrong_answer"
	SubmissionStatusTimeLimitExceeded = "time_limit_exceeded"
	SubmissionStatusRuntimeError      = "runtime_error"
	SubmissionStatusCompilationError  = "compilation_error"
)

// Fault identifies an infrastructure-level grading condition, distinct from
// the score-derived statuses so callers cannot confuse "scored zero" with
// "could not be graded".
type Fault string

// Fault values raised by the orchestrator.
const (
	FaultNone              Fault = ""
	FaultCompilationError  Fault = "compilation_error"
	FaultTimeLimitExceeded Fault = "time_limit_exceeded"
	FaultRuntimeError      Fault = "runtime_error"
)

// Submission records one grading attempt. It is append-only: once grading
// completes the row is never mutated.
type Submission struct {
	ID                   uint         `gorm:"primaryKey" json:"id"`
	UserID               uint         `gorm:"not null;index" json:"user_id"`
	ContestID            uint         `gorm:"index" json:"contest_id"`
	ProblemID            uint         `gorm:"not null;index" json:"problem_id"`
	Language             string       `gorm:"size:32;not null" json:"language"`
	Code                 string       `gorm:"type:text" json:"code"`
	Status               string       `gorm:"size:32;not null" json:"status"`
	Score                int          `gorm:"default:0" json:"score"`
	MaxScore             int          `gorm:"default:0" json:"max_score"`
	TotalExecutionTimeMs int64        `gorm:"default:0" json:"total_execution_time_ms"`
	TotalMemoryUsedMb    float64      `gorm:"default:0" json:"total_memory_used_mb"`
	TestResults          []TestResult `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"test_results"`
	CreatedAt            time.Time    `json:"created_at"`
}

// TestResult holds the outcome of one test case run. A graded submission
// carries exactly one entry per test case, in problem order.
type TestResult struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	SubmissionID    uint    `gorm:"index" json:"submission_id"`
	TestCaseID      uint    `gorm:"not null" json:"test_case_id"`
	Passed          bool    `gorm:"default:false" json:"passed"`
	ExecutionTimeMs int64   `gorm:"default:0" json:"execution_time_ms"`
	MemoryUsedMb    float64 `gorm:"default:0" json:"memory_used_mb"`
	Output          string  `gorm:"type:text" json:"output"`
	Error           string  `gorm:"type:text" json:"error"`
}
