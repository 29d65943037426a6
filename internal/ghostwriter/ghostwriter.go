// Package ghostwriter abstracts the content producer behind a
// single-method capability with swappable backends selected by
// configuration.
package ghostwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrGeneration indicates the content producer failed; the job
// surfaces it as a GenerationFailed terminal error.
var ErrGeneration = errors.New("content generation failed")

// Instructions describes what to write. The producer returns markdown
// text with `#` heading markers delimiting sections.
type Instructions struct {
	Title        string
	Subtitle     string
	Prompt       string
	SectionCount int // desired number of sections (0 = producer's choice)
}

// Producer is the content-producer capability consumed by the job
// pipeline. Implementations must be safe for concurrent use.
type Producer interface {
	// Generate produces the document body as markdown text.
	Generate(ctx context.Context, ins Instructions) (string, error)

	// Name returns the backend identifier (e.g. "mock", "openai").
	Name() string
}

// Backend identifiers accepted in configuration.
const (
	BackendMock   = "mock"
	BackendOpenAI = "openai"
)

// Config selects and configures a producer backend.
type Config struct {
	Backend    string
	Model      string
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// New creates the configured producer backend.
func New(cfg Config, logger *slog.Logger) (Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", BackendMock:
		return NewMock(), nil
	case BackendOpenAI:
		return NewOpenAI(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ghostwriter backend: %s", cfg.Backend)
	}
}
