package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/bindery/internal/cover"
	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/ghostwriter"
	"github.com/jackzampolin/bindery/internal/images"
	"github.com/jackzampolin/bindery/internal/render/docx"
	"github.com/jackzampolin/bindery/internal/render/pdf"
)

// run drives a claimed job through the full pipeline. Every exit path
// lands the record in a terminal state.
func (c *Controller) run(ctx context.Context, id string) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		c.logger.Error("failed to load claimed job", "id", id, "error", err)
		return
	}

	defer func() {
		if err := c.home.RemoveJobWorkDir(id); err != nil {
			c.logger.Warn("failed to clean job work dir", "id", id, "error", err)
		}
	}()

	if c.cancelled(ctx, id) {
		return
	}

	warnings := []string{}

	// Stage 1: content production.
	content, err := c.producer.Generate(ctx, ghostwriter.Instructions{
		Title:    rec.Request.Title,
		Subtitle: rec.Request.Subtitle,
		Prompt:   rec.Request.Instructions,
	})
	if err != nil {
		c.fail(ctx, id, KindGenerationFailed, err, warnings)
		return
	}

	if c.cancelled(ctx, id) {
		return
	}

	// Stage 2: image extraction and normalization. A failed page or
	// buffer is a warning; an unreadable source fails the job.
	var extracted []images.Normalized
	if len(rec.Request.SourcePDF) > 0 {
		imgs, warns, err := c.extractor.FromPDF(rec.Request.SourcePDF)
		if err != nil {
			c.fail(ctx, id, KindExtractionError, err, warnings)
			return
		}
		extracted = imgs
		warnings = append(warnings, warns...)
	} else if len(rec.Request.Images) > 0 {
		imgs, warns, err := c.extractor.FromBuffers(rec.Request.Images)
		if err != nil {
			c.fail(ctx, id, KindExtractionError, err, warnings)
			return
		}
		extracted = imgs
		warnings = append(warnings, warns...)
	}
	set := images.NewSet(extracted)

	// Stage 3: assembly. Dangling references surface here, before any
	// rendering starts.
	document, err := doc.Assemble(rec.Request, content, set)
	if err != nil {
		c.fail(ctx, id, KindAssemblyError, err, warnings)
		return
	}

	// Stage 4: cover composition.
	if rec.Request.IncludeCover {
		var coverImg *images.Normalized
		if rec.Request.CoverImage >= 0 {
			if img, ok := set.Resolve(rec.Request.CoverImage); ok {
				coverImg = &img
			}
		}
		art := cover.Compose(rec.Request.Title, rec.Request.Subtitle, coverImg)
		document.Cover = &art
	}

	if c.cancelled(ctx, id) {
		return
	}

	// Stage 5: render both formats from the same assembled document.
	// Builders write into the job's work dir; artifacts move to the
	// exports dir only once both renders succeed, so the exports dir
	// never holds a partial document.
	if err := c.home.EnsureJobWorkDir(id); err != nil {
		c.fail(ctx, id, KindRenderFailed, err, warnings)
		return
	}
	workDOCX := filepath.Join(c.home.JobWorkDir(id), "document.docx")
	workPDF := filepath.Join(c.home.JobWorkDir(id), "document.pdf")

	docxBuilder := docx.NewBuilder(document, set, c.logger)
	pdfBuilder := pdf.NewBuilder(document, set, c.logger)

	var g errgroup.Group
	g.Go(func() error { return docxBuilder.Build(workDOCX) })
	g.Go(func() error { return pdfBuilder.Build(workPDF) })
	if err := g.Wait(); err != nil {
		c.fail(ctx, id, KindRenderFailed, err, warnings)
		return
	}

	warnings = append(warnings, docxBuilder.Warnings()...)
	warnings = append(warnings, pdfBuilder.Warnings()...)

	if c.maxDegraded > 0 {
		degraded := len(docxBuilder.Warnings()) + len(pdfBuilder.Warnings())
		if degraded > c.maxDegraded {
			c.fail(ctx, id, KindTooManyDegraded,
				fmt.Errorf("%d images degraded to caption-only, limit is %d", degraded, c.maxDegraded),
				warnings)
			return
		}
	}

	docxPath := c.home.DOCXPath(id)
	pdfPath := c.home.PDFPath(id)
	if err := c.home.EnsureJobExportsDir(id); err != nil {
		c.fail(ctx, id, KindRenderFailed, err, warnings)
		return
	}
	if err := os.Rename(workDOCX, docxPath); err != nil {
		os.RemoveAll(c.home.JobExportsDir(id))
		c.fail(ctx, id, KindRenderFailed, err, warnings)
		return
	}
	if err := os.Rename(workPDF, pdfPath); err != nil {
		os.RemoveAll(c.home.JobExportsDir(id))
		c.fail(ctx, id, KindRenderFailed, err, warnings)
		return
	}

	if err := c.store.MarkCompleted(ctx, id, docxPath, pdfPath, warnings); err != nil {
		c.logger.Error("failed to record completion", "id", id, "error", err)
		return
	}
	c.logger.Info("job completed", "id", id, "warnings", len(warnings))
}

// cancelled checks the cooperative cancel flag and, when set, lands
// the job in the cancelled state.
func (c *Controller) cancelled(ctx context.Context, id string) bool {
	if ctx.Err() != nil {
		// Shutdown. Leave the record running; the dispatcher rescan
		// cannot reclaim it, but an operator restart will requeue via
		// Claim only for queued jobs, so log it for visibility.
		c.logger.Warn("job interrupted by shutdown", "id", id)
		return true
	}
	flagged, err := c.store.CancelRequested(ctx, id)
	if err != nil {
		c.logger.Error("failed to check cancel flag", "id", id, "error", err)
		return false
	}
	if !flagged {
		return false
	}
	if err := c.store.MarkCancelled(ctx, id); err != nil {
		c.logger.Error("failed to mark job cancelled", "id", id, "error", err)
	}
	c.logger.Info("job cancelled", "id", id)
	return true
}

// fail records a terminal failure, mapping pipeline sentinel errors to
// their public kinds when the caller passed a generic kind.
func (c *Controller) fail(ctx context.Context, id, kind string, cause error, warnings []string) {
	switch {
	case errors.Is(cause, ghostwriter.ErrGeneration):
		kind = KindGenerationFailed
	case errors.Is(cause, images.ErrExtraction):
		kind = KindExtractionError
	case errors.Is(cause, doc.ErrAssembly):
		kind = KindAssemblyError
	}
	if err := c.store.MarkFailed(ctx, id, kind, cause.Error(), warnings); err != nil {
		c.logger.Error("failed to record job failure", "id", id, "error", err)
		return
	}
	c.logger.Warn("job failed", "id", id, "kind", kind, "error", cause)
}
