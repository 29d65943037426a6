package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/internal/jobs"
	"github.com/jackzampolin/bindery/internal/svcctx"
)

var artifactContentTypes = map[string]string{
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pdf":  "application/pdf",
}

// ArtifactEndpoint handles GET /jobs/{id}/artifact/{format}.
type ArtifactEndpoint struct{}

func (e *ArtifactEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}/artifact/{format}", e.handler
}

func (e *ArtifactEndpoint) RequiresInit() bool { return true }

func (e *ArtifactEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	format := r.PathValue("format")

	c := svcctx.ControllerFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "job controller not initialized")
		return
	}

	path, err := c.Artifact(r.Context(), id, format)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrNotReady):
			writeError(w, http.StatusConflict, "artifact not ready")
		case errors.Is(err, jobs.ErrUnknownFormat):
			writeError(w, http.StatusBadRequest, "unknown format: "+format)
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", artifactContentTypes[format])
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "document."+format))
	http.ServeFile(w, r, path)
}

func (e *ArtifactEndpoint) Command(getServerURL func() string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "artifact <id> <format>",
		Short: "Download a completed job's artifact (docx or pdf)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, format := args[0], args[1]

			client := api.NewClient(getServerURL())
			data, err := client.GetRaw(cmd.Context(), "/jobs/"+id+"/artifact/"+format)
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = "document." + format
			}
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				return fmt.Errorf("failed to write artifact: %w", err)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", dest, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file path")
	return cmd
}
