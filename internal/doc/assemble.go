package doc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackzampolin/bindery/internal/images"
)

// ErrAssembly indicates a malformed document structure or a dangling
// image reference. It is raised before any rendering work starts.
var ErrAssembly = errors.New("document assembly failed")

// Assemble builds the logical document from a request and the
// externally produced content text. Sections are split on markdown
// heading markers; image blocks are interleaved at their declared
// anchors. The dangling-reference invariant is validated before the
// document is returned.
func Assemble(req Request, content string, set images.Set) (*Document, error) {
	d := &Document{
		Title:    req.Title,
		Subtitle: req.Subtitle,
		Sections: splitSections(content),
		Captions: copyCaptions(req.Captions),
	}

	if len(d.Sections) == 0 {
		d.Sections = []Section{{Title: req.Title}}
	}

	if err := placeImages(d, req, set); err != nil {
		return nil, err
	}

	if req.IncludeTOC {
		for _, s := range d.Sections {
			if s.Title != "" {
				d.TOC = append(d.TOC, s.Title)
			}
		}
	}

	if err := Validate(d, set); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks that every image reference in the document resolves
// to exactly one normalized image in the job's set.
func Validate(d *Document, set images.Set) error {
	for si, s := range d.Sections {
		for _, b := range s.Blocks {
			if b.Kind != BlockImage {
				continue
			}
			if _, ok := set.Resolve(b.ImageIndex); !ok {
				return fmt.Errorf("%w: dangling image reference %d in section %d", ErrAssembly, b.ImageIndex, si)
			}
		}
	}
	if d.Cover != nil && d.Cover.Image != nil {
		if _, ok := set.Resolve(d.Cover.Image.ImageIndex); !ok {
			return fmt.Errorf("%w: dangling cover image reference %d", ErrAssembly, d.Cover.Image.ImageIndex)
		}
	}
	return nil
}

// placeImages appends image blocks to their target sections in source
// order. Anchored images go to their declared section; an unanchored
// image follows the section of its nearest preceding anchored image,
// defaulting to the final section.
func placeImages(d *Document, req Request, set images.Set) error {
	indices := make([]int, 0, len(set))
	for idx := range set {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	// Anchors that reference an image missing from the set are
	// dangling references, a hard pre-render failure.
	for idx := range req.Anchors {
		if _, ok := set.Resolve(idx); !ok {
			return fmt.Errorf("%w: anchor references unknown image %d", ErrAssembly, idx)
		}
	}
	if req.IncludeCover && req.CoverImage >= 0 {
		if _, ok := set.Resolve(req.CoverImage); !ok {
			return fmt.Errorf("%w: cover references unknown image %d", ErrAssembly, req.CoverImage)
		}
	}

	cur := len(d.Sections) - 1
	for _, idx := range indices {
		// The cover image is consumed by the cover composer, not the body.
		if req.IncludeCover && idx == req.CoverImage {
			continue
		}
		if anchor, ok := req.Anchors[idx]; ok {
			if anchor < 0 || anchor >= len(d.Sections) {
				return fmt.Errorf("%w: image %d anchored to section %d of %d", ErrAssembly, idx, anchor, len(d.Sections))
			}
			cur = anchor
		}
		d.Sections[cur].Blocks = append(d.Sections[cur].Blocks, Block{
			Kind:       BlockImage,
			ImageIndex: idx,
		})
	}
	return nil
}

// splitSections splits content into sections on markdown heading
// markers. Text before the first heading becomes an untitled lead
// section; paragraphs split on blank lines.
func splitSections(content string) []Section {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var (
		sections []Section
		cur      *Section
		para     strings.Builder
	)

	flushPara := func() {
		text := strings.TrimSpace(para.String())
		para.Reset()
		if text == "" || cur == nil {
			return
		}
		cur.Blocks = append(cur.Blocks, Block{Kind: BlockText, Text: text})
	}

	openSection := func(title string) {
		flushPara()
		sections = append(sections, Section{Title: title})
		cur = &sections[len(sections)-1]
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if title, ok := headingTitle(trimmed); ok {
			openSection(title)
			continue
		}

		if trimmed == "" {
			flushPara()
			continue
		}

		if cur == nil {
			openSection("")
		}
		if para.Len() > 0 {
			para.WriteByte(' ')
		}
		para.WriteString(trimmed)
	}
	flushPara()

	return sections
}

// headingTitle reports whether a line is a markdown heading marker and
// returns its title.
func headingTitle(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	rest := strings.TrimLeft(line, "#")
	if !strings.HasPrefix(rest, " ") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func copyCaptions(src map[int]string) map[int]string {
	out := make(map[int]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
