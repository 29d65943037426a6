package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/svcctx"
)

// CreateJobResponse is the response for submitting a job.
type CreateJobResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// CreateJobEndpoint handles POST /jobs.
type CreateJobEndpoint struct{}

func (e *CreateJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/jobs", e.handler
}

func (e *CreateJobEndpoint) RequiresInit() bool { return true }

func (e *CreateJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	req := doc.NewRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(req.SourcePDF) > 0 && len(req.Images) > 0 {
		writeError(w, http.StatusBadRequest, "source_pdf and images are mutually exclusive")
		return
	}

	c := svcctx.ControllerFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "job controller not initialized")
		return
	}

	id, err := c.Submit(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, CreateJobResponse{ID: id, State: "queued"})
}

func (e *CreateJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		title        string
		subtitle     string
		instructions string
		includeCover bool
		includeTOC   bool
		sourcePDF    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a document generation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := doc.NewRequest()
			req.Title = title
			req.Subtitle = subtitle
			req.Instructions = instructions
			req.IncludeCover = includeCover
			req.IncludeTOC = includeTOC

			if sourcePDF != "" {
				data, err := os.ReadFile(sourcePDF)
				if err != nil {
					return fmt.Errorf("failed to read source PDF: %w", err)
				}
				req.SourcePDF = data
			}

			client := api.NewClient(getServerURL())
			var resp CreateJobResponse
			if err := client.Post(cmd.Context(), "/jobs", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "document title (required)")
	cmd.Flags().StringVar(&subtitle, "subtitle", "", "document subtitle")
	cmd.Flags().StringVar(&instructions, "instructions", "", "content instructions for the producer")
	cmd.Flags().BoolVar(&includeCover, "cover", false, "include a cover page")
	cmd.Flags().BoolVar(&includeTOC, "toc", false, "include a table of contents")
	cmd.Flags().StringVar(&sourcePDF, "source-pdf", "", "path to a PDF to extract images from")
	cmd.MarkFlagRequired("title")

	return cmd
}
