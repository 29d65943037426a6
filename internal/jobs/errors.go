package jobs

import "errors"

// Sentinel errors for caller-facing queries. They never mutate job
// state.
var (
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("job not found")

	// ErrNotReady is returned when an artifact is requested before the
	// job has completed.
	ErrNotReady = errors.New("job artifacts not ready")

	// ErrUnknownFormat is returned for an unrecognized artifact format.
	ErrUnknownFormat = errors.New("unknown artifact format")
)

// Error kinds recorded on a failed job.
const (
	KindGenerationFailed = "generation_failed"
	KindAssemblyError    = "assembly_error"
	KindExtractionError  = "extraction_error"
	KindRenderFailed     = "render_failed"
	KindTooManyDegraded  = "too_many_degraded_images"
)
