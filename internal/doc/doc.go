// Package doc defines the format-agnostic document model shared by the
// DOCX and PDF renderers, and the assembler that builds it.
package doc

import (
	"github.com/jackzampolin/bindery/internal/cover"
)

// BlockKind identifies the type of a document block.
type BlockKind string

const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
)

// Block is a single unit of section content: either a text paragraph
// or a reference to a normalized image by its source index.
type Block struct {
	Kind BlockKind

	// Text holds the paragraph content for BlockText.
	Text string

	// ImageIndex references a normalized image for BlockImage.
	// Resolution happens at render time via the job's image set.
	ImageIndex int
}

// Section is an ordered run of blocks under a heading.
type Section struct {
	Title  string
	Blocks []Block
}

// Document is the logical document built once per job and read by both
// renderers. It is never mutated after assembly.
type Document struct {
	Title    string
	Subtitle string

	// Cover is set when the request asked for a cover page.
	Cover *cover.Artifact

	// TOC holds section titles when a table of contents was requested.
	// The TOC page itself is excluded from its own listing.
	TOC []string

	Sections []Section

	// Captions maps image index to caption text. Missing entries mean
	// the image renders without a caption.
	Captions map[int]string
}

// ImageCount returns the number of image blocks across all sections.
func (d *Document) ImageCount() int {
	n := 0
	for _, s := range d.Sections {
		for _, b := range s.Blocks {
			if b.Kind == BlockImage {
				n++
			}
		}
	}
	return n
}

// Caption returns the caption for an image index, if one exists.
func (d *Document) Caption(idx int) (string, bool) {
	c, ok := d.Captions[idx]
	return c, ok
}
