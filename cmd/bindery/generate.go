package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/internal/config"
	"github.com/jackzampolin/bindery/internal/cover"
	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/ghostwriter"
	"github.com/jackzampolin/bindery/internal/images"
	"github.com/jackzampolin/bindery/internal/render/docx"
	"github.com/jackzampolin/bindery/internal/render/pdf"
)

var (
	genTitle        string
	genSubtitle     string
	genInstructions string
	genCover        bool
	genTOC          bool
	genSourcePDF    string
	genImages       []string
	genOutDir       string
	genVerbose      bool
)

// generateResult is printed after a successful one-shot run.
type generateResult struct {
	DOCX     string   `json:"docx" yaml:"docx"`
	PDF      string   `json:"pdf" yaml:"pdf"`
	Sections int      `json:"sections" yaml:"sections"`
	Images   int      `json:"images" yaml:"images"`
	Warnings []string `json:"warnings" yaml:"warnings"`
	Elapsed  string   `json:"elapsed" yaml:"elapsed"`
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the pipeline once, locally, without a server",
	Long: `Generate runs a single request through the full pipeline in-process
and writes both artifacts to the output directory.

Examples:
  bindery generate --title "Field Notes" --toc
  bindery generate --title "Report" --source-pdf scan.pdf --cover
  bindery generate --title "Album" --image a.png --image b.jpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		logWriter := io.Discard
		if genVerbose {
			logWriter = os.Stderr
		}
		logger := slog.New(slog.NewTextHandler(logWriter, nil))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		req := doc.NewRequest()
		req.Title = genTitle
		req.Subtitle = genSubtitle
		req.Instructions = genInstructions
		req.IncludeCover = genCover
		req.IncludeTOC = genTOC

		if genSourcePDF != "" && len(genImages) > 0 {
			return fmt.Errorf("--source-pdf and --image are mutually exclusive")
		}
		if genSourcePDF != "" {
			data, err := os.ReadFile(genSourcePDF)
			if err != nil {
				return fmt.Errorf("failed to read source PDF: %w", err)
			}
			req.SourcePDF = data
		}
		for _, path := range genImages {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read image %s: %w", path, err)
			}
			req.Images = append(req.Images, data)
		}
		if req.IncludeCover && len(req.Images) > 0 {
			req.CoverImage = 0
		}

		producer, err := ghostwriter.New(ghostwriter.Config{
			Backend:    cfg.Ghostwriter.Backend,
			Model:      cfg.Ghostwriter.Model,
			APIKey:     cfg.GhostwriterAPIKey(),
			BaseURL:    cfg.Ghostwriter.BaseURL,
			MaxRetries: cfg.Ghostwriter.MaxRetries,
		}, logger)
		if err != nil {
			return err
		}

		content, err := producer.Generate(ctx, ghostwriter.Instructions{
			Title:    req.Title,
			Subtitle: req.Subtitle,
			Prompt:   req.Instructions,
		})
		if err != nil {
			return fmt.Errorf("content generation failed: %w", err)
		}

		extractor := images.NewExtractor(images.ExtractorConfig{
			MaxEdge: cfg.Images.MaxEdge,
			Logger:  logger,
		})
		var (
			extracted []images.Normalized
			warnings  []string
		)
		switch {
		case len(req.SourcePDF) > 0:
			extracted, warnings, err = extractor.FromPDF(req.SourcePDF)
		case len(req.Images) > 0:
			extracted, warnings, err = extractor.FromBuffers(req.Images)
		}
		if err != nil {
			return fmt.Errorf("image extraction failed: %w", err)
		}
		set := images.NewSet(extracted)

		document, err := doc.Assemble(req, content, set)
		if err != nil {
			return fmt.Errorf("assembly failed: %w", err)
		}

		if req.IncludeCover {
			var coverImg *images.Normalized
			if req.CoverImage >= 0 {
				if img, ok := set.Resolve(req.CoverImage); ok {
					coverImg = &img
				}
			}
			art := cover.Compose(req.Title, req.Subtitle, coverImg)
			document.Cover = &art
		}

		if err := os.MkdirAll(genOutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		docxPath := filepath.Join(genOutDir, "document.docx")
		pdfPath := filepath.Join(genOutDir, "document.pdf")

		docxBuilder := docx.NewBuilder(document, set, logger)
		pdfBuilder := pdf.NewBuilder(document, set, logger)

		var g errgroup.Group
		g.Go(func() error { return docxBuilder.Build(docxPath) })
		g.Go(func() error { return pdfBuilder.Build(pdfPath) })
		if err := g.Wait(); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}

		warnings = append(warnings, docxBuilder.Warnings()...)
		warnings = append(warnings, pdfBuilder.Warnings()...)
		if warnings == nil {
			warnings = []string{}
		}

		return api.Output(generateResult{
			DOCX:     docxPath,
			PDF:      pdfPath,
			Sections: len(document.Sections),
			Images:   len(set),
			Warnings: warnings,
			Elapsed:  time.Since(start).Round(time.Millisecond).String(),
		})
	},
}

func init() {
	generateCmd.Flags().StringVar(&genTitle, "title", "", "document title (required)")
	generateCmd.Flags().StringVar(&genSubtitle, "subtitle", "", "document subtitle")
	generateCmd.Flags().StringVar(&genInstructions, "instructions", "", "content instructions for the producer")
	generateCmd.Flags().BoolVar(&genCover, "cover", false, "include a cover page")
	generateCmd.Flags().BoolVar(&genTOC, "toc", false, "include a table of contents")
	generateCmd.Flags().StringVar(&genSourcePDF, "source-pdf", "", "path to a PDF to extract images from")
	generateCmd.Flags().StringArrayVar(&genImages, "image", nil, "image file to embed (repeatable)")
	generateCmd.Flags().StringVar(&genOutDir, "out", ".", "output directory")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "log pipeline progress to stderr")
	generateCmd.MarkFlagRequired("title")

	rootCmd.AddCommand(generateCmd)
}
