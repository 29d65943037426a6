package endpoints

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/internal/jobs"
	"github.com/jackzampolin/bindery/internal/svcctx"
)

// JobStatusResponse is the public view of a job record.
type JobStatusResponse struct {
	ID        string      `json:"id"`
	State     string      `json:"state"`
	Warnings  []string    `json:"warnings"`
	Outputs   *JobOutputs `json:"outputs,omitempty"`
	Error     *JobError   `json:"error,omitempty"`
	CreatedAt string      `json:"created_at"`
}

// JobOutputs lists the artifact formats of a completed job.
type JobOutputs struct {
	Formats []string `json:"formats"`
}

// JobError is the terminal error detail of a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusResponse(rec *jobs.Record) JobStatusResponse {
	resp := JobStatusResponse{
		ID:        rec.ID,
		State:     string(rec.State),
		Warnings:  rec.Warnings,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if rec.State == jobs.StateCompleted {
		resp.Outputs = &JobOutputs{Formats: []string{"docx", "pdf"}}
	}
	if rec.State == jobs.StateFailed {
		resp.Error = &JobError{Kind: rec.ErrorKind, Message: rec.ErrorMessage}
	}
	return resp
}

// GetJobEndpoint handles GET /jobs/{id}.
type GetJobEndpoint struct{}

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	c := svcctx.ControllerFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "job controller not initialized")
		return
	}

	rec, err := c.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse(rec))
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobStatusResponse
			if err := client.Get(cmd.Context(), "/jobs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
