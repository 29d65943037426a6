package ghostwriter

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Mock is a deterministic Producer for testing and offline use.
type Mock struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // fail after N requests (0 = never)
	ResponseText string

	// State
	requestCount atomic.Int64
}

// NewMock creates a mock producer with sensible defaults.
func NewMock() *Mock {
	return &Mock{}
}

// Name returns the backend identifier.
func (m *Mock) Name() string {
	return BackendMock
}

// Generate produces deterministic markdown sections.
func (m *Mock) Generate(ctx context.Context, ins Instructions) (string, error) {
	count := m.requestCount.Add(1)

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.ShouldFail || (m.FailAfter > 0 && count > int64(m.FailAfter)) {
		return "", fmt.Errorf("%w: mock failure", ErrGeneration)
	}

	if m.ResponseText != "" {
		return m.ResponseText, nil
	}

	sections := ins.SectionCount
	if sections <= 0 {
		sections = 3
	}

	var sb strings.Builder
	for i := 1; i <= sections; i++ {
		fmt.Fprintf(&sb, "# Section %d\n\n", i)
		fmt.Fprintf(&sb, "Generated body for %q, section %d of %d.\n\n", ins.Title, i, sections)
	}
	return sb.String(), nil
}
