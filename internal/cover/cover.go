// Package cover builds the title/cover page descriptor consumed by
// both renderers.
package cover

import (
	"github.com/jackzampolin/bindery/internal/images"
)

// PositionCenteredTop is the only placement position currently
// produced; the image sits horizontally centered in the upper portion
// of the page.
const PositionCenteredTop = "centered-top"

// Placement describes where and how large the cover image renders.
// Dimensions are source pixels; renderers scale to fit page margins.
type Placement struct {
	Position string

	// ImageIndex references the normalized image by source index.
	ImageIndex int

	Width  int
	Height int

	// MaxWidthFrac and MaxHeightFrac bound the rendered size as a
	// fraction of the page content area.
	MaxWidthFrac  float64
	MaxHeightFrac float64
}

// Artifact is a deterministic cover descriptor: a title block plus an
// optional image placement. Same inputs always produce the same value.
type Artifact struct {
	Title    string
	Subtitle string
	Image    *Placement
}

// Compose builds a cover artifact from a title, optional subtitle and
// optional cover image. It performs no I/O and no randomness.
func Compose(title, subtitle string, img *images.Normalized) Artifact {
	a := Artifact{
		Title:    title,
		Subtitle: subtitle,
	}
	if img != nil {
		a.Image = &Placement{
			Position:      PositionCenteredTop,
			ImageIndex:    img.SourceIndex,
			Width:         img.Width,
			Height:        img.Height,
			MaxWidthFrac:  0.8,
			MaxHeightFrac: 0.5,
		}
	}
	return a
}
