// Package images extracts raster images from generation sources and
// normalizes them for embedding.
package images

import (
	"errors"
	"fmt"
)

// ErrExtraction indicates the entire source was unreadable.
// Per-page failures inside a readable source are reported as warnings
// instead.
var ErrExtraction = errors.New("image extraction failed")

// Canonical formats produced by normalization.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// DefaultMaxEdge is the longest-edge pixel limit applied during
// normalization when no override is configured.
const DefaultMaxEdge = 2000

// Normalized is a post-extraction image ready for embedding.
// Values are immutable once produced.
type Normalized struct {
	Data   []byte
	Format string
	Width  int
	Height int

	// SourceIndex is the image's position in the original source
	// order. Document image blocks reference this index.
	SourceIndex int
}

// Set is an indexed lookup over a job's normalized images.
type Set map[int]Normalized

// NewSet builds a Set keyed by source index.
func NewSet(imgs []Normalized) Set {
	s := make(Set, len(imgs))
	for _, img := range imgs {
		s[img.SourceIndex] = img
	}
	return s
}

// Resolve looks up an image by source index.
func (s Set) Resolve(idx int) (Normalized, bool) {
	img, ok := s[idx]
	return img, ok
}

func pageWarning(page int, err error) string {
	return fmt.Sprintf("page_extraction_warning: page %d: %v", page, err)
}

func bufferWarning(idx int, err error) string {
	return fmt.Sprintf("page_extraction_warning: buffer %d: %v", idx, err)
}
