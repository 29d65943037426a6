package doc

// Request is the immutable generation request a job is created from.
// It is frozen when the job is submitted and persisted alongside the
// job record.
type Request struct {
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle,omitempty"`
	Instructions string `json:"instructions"`

	IncludeCover bool `json:"include_cover"`
	IncludeTOC   bool `json:"include_toc"`

	// SourcePDF is an optional document whose embedded images are
	// extracted as the job's image sources.
	SourcePDF []byte `json:"source_pdf,omitempty"`

	// Images is an explicit ordered list of raw image buffers,
	// used when SourcePDF is empty.
	Images [][]byte `json:"images,omitempty"`

	// Captions maps image index to caption text.
	Captions map[int]string `json:"captions,omitempty"`

	// Anchors maps image index to the section index the image is
	// anchored to. An image without an anchor follows its nearest
	// preceding anchored image's section.
	Anchors map[int]int `json:"anchors,omitempty"`

	// CoverImage is the source index of the image used on the cover,
	// or -1 for a text-only cover.
	CoverImage int `json:"cover_image"`
}

// NewRequest returns a Request with no cover image selected.
func NewRequest() Request {
	return Request{CoverImage: -1}
}
