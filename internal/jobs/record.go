package jobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bindery/internal/doc"
)

// State represents the current state of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition may leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Record is a job record as persisted in the store. It is owned by the
// controller and mutated only through store transition methods.
type Record struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	Request doc.Request `json:"request"`

	// Output artifact locations, empty until produced.
	DOCXPath string `json:"docx_path,omitempty"`
	PDFPath  string `json:"pdf_path,omitempty"`

	// Error detail, set only when State == StateFailed.
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Warnings accumulates recoverable degradations; surfaced on
	// status queries even for completed jobs.
	Warnings []string `json:"warnings,omitempty"`

	CancelRequested bool `json:"cancel_requested,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewRecord creates a queued job record for a request.
func NewRecord(req doc.Request) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        uuid.New().String(),
		State:     StateQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
