package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the bindery home directory.
	DefaultDirName = ".bindery"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// JobsDBFileName is the sqlite database holding job records.
	JobsDBFileName = "jobs.db"
)

// Dir represents the bindery home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.bindery).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// JobsDBPath returns the path to the job record database.
func (d *Dir) JobsDBPath() string {
	return filepath.Join(d.path, JobsDBFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.ExportsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}
	if err := os.MkdirAll(d.WorkDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ExportsDir returns the directory holding finished artifacts.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, "exports")
}

// JobExportsDir returns the artifact directory for a specific job.
func (d *Dir) JobExportsDir(jobID string) string {
	return filepath.Join(d.ExportsDir(), jobID)
}

// DOCXPath returns the DOCX artifact path for a job.
func (d *Dir) DOCXPath(jobID string) string {
	return filepath.Join(d.JobExportsDir(jobID), "document.docx")
}

// PDFPath returns the PDF artifact path for a job.
func (d *Dir) PDFPath(jobID string) string {
	return filepath.Join(d.JobExportsDir(jobID), "document.pdf")
}

// EnsureJobExportsDir creates the artifact directory for a job.
func (d *Dir) EnsureJobExportsDir(jobID string) error {
	return os.MkdirAll(d.JobExportsDir(jobID), 0o755)
}

// WorkDir returns the directory for per-job temporary working storage.
func (d *Dir) WorkDir() string {
	return filepath.Join(d.path, "work")
}

// JobWorkDir returns the temporary working directory for a job.
// It holds intermediate images and is removed when the job reaches a
// terminal state.
func (d *Dir) JobWorkDir(jobID string) string {
	return filepath.Join(d.WorkDir(), jobID)
}

// EnsureJobWorkDir creates the working directory for a job.
func (d *Dir) EnsureJobWorkDir(jobID string) error {
	return os.MkdirAll(d.JobWorkDir(jobID), 0o755)
}

// RemoveJobWorkDir deletes the working directory for a job.
func (d *Dir) RemoveJobWorkDir(jobID string) error {
	return os.RemoveAll(d.JobWorkDir(jobID))
}
