package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackzampolin/bindery/internal/doc"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreCreateGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	req := doc.NewRequest()
	req.Title = "Field Notes"
	req.Instructions = "three sections on soil"

	rec, err := s.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected non-empty id")
	}
	if rec.State != StateQueued {
		t.Fatalf("expected queued, got %s", rec.State)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Request.Title != "Field Notes" {
		t.Fatalf("request round-trip lost title: %q", got.Request.Title)
	}
	if got.Request.CoverImage != -1 {
		t.Fatalf("expected cover image -1, got %d", got.Request.CoverImage)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Fatal("queued job should have no start or completion time")
	}
}

func TestStoreGetUnknown(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreClaim(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, doc.NewRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := s.Claim(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !ok {
		t.Fatal("first claim should succeed")
	}

	// A second claim must lose: the job is no longer queued.
	ok, err = s.Claim(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if ok {
		t.Fatal("second claim should fail")
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != StateRunning {
		t.Fatalf("expected running, got %s", got.State)
	}
	if got.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}
}

func TestStoreCompleteLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec, _ := s.Create(ctx, doc.NewRequest())
	if _, err := s.Claim(ctx, rec.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	warnings := []string{"embed_warning: image 2 degraded to caption-only in docx"}
	if err := s.MarkCompleted(ctx, rec.ID, "/tmp/a.docx", "/tmp/a.pdf", warnings); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != StateCompleted {
		t.Fatalf("expected completed, got %s", got.State)
	}
	if got.DOCXPath != "/tmp/a.docx" || got.PDFPath != "/tmp/a.pdf" {
		t.Fatalf("unexpected artifact paths: %q %q", got.DOCXPath, got.PDFPath)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != warnings[0] {
		t.Fatalf("warnings did not round-trip: %v", got.Warnings)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	// Completed is terminal: completing again must not match a row.
	if err := s.MarkCompleted(ctx, rec.ID, "x", "y", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double completion, got %v", err)
	}
}

func TestStoreMarkFailed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec, _ := s.Create(ctx, doc.NewRequest())
	s.Claim(ctx, rec.ID)

	if err := s.MarkFailed(ctx, rec.ID, KindAssemblyError, "dangling image reference", nil); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, _ := s.Get(ctx, rec.ID)
	if got.State != StateFailed {
		t.Fatalf("expected failed, got %s", got.State)
	}
	if got.ErrorKind != KindAssemblyError {
		t.Fatalf("expected kind %q, got %q", KindAssemblyError, got.ErrorKind)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected error message")
	}
	if got.DOCXPath != "" || got.PDFPath != "" {
		t.Fatal("failed job must expose no artifact paths")
	}
}

func TestStoreCancel(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	t.Run("queued job cancels directly", func(t *testing.T) {
		rec, _ := s.Create(ctx, doc.NewRequest())
		if err := s.MarkCancelled(ctx, rec.ID); err != nil {
			t.Fatalf("MarkCancelled: %v", err)
		}
		got, _ := s.Get(ctx, rec.ID)
		if got.State != StateCancelled {
			t.Fatalf("expected cancelled, got %s", got.State)
		}

		// A cancelled job can no longer be claimed.
		ok, err := s.Claim(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if ok {
			t.Fatal("cancelled job should not be claimable")
		}
	})

	t.Run("running job gets a cancel flag", func(t *testing.T) {
		rec, _ := s.Create(ctx, doc.NewRequest())
		s.Claim(ctx, rec.ID)

		if err := s.RequestCancel(ctx, rec.ID); err != nil {
			t.Fatalf("RequestCancel: %v", err)
		}
		flagged, err := s.CancelRequested(ctx, rec.ID)
		if err != nil {
			t.Fatalf("CancelRequested: %v", err)
		}
		if !flagged {
			t.Fatal("expected cancel flag to be set")
		}
	})

	t.Run("terminal job ignores cancel request", func(t *testing.T) {
		rec, _ := s.Create(ctx, doc.NewRequest())
		s.Claim(ctx, rec.ID)
		s.MarkCompleted(ctx, rec.ID, "a", "b", nil)

		if err := s.RequestCancel(ctx, rec.ID); err != nil {
			t.Fatalf("RequestCancel on terminal job: %v", err)
		}
		got, _ := s.Get(ctx, rec.ID)
		if got.CancelRequested {
			t.Fatal("terminal job should not carry a cancel flag")
		}
	})
}

func TestStoreQueuedIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, doc.NewRequest())
	b, _ := s.Create(ctx, doc.NewRequest())
	s.Claim(ctx, a.ID)

	ids, err := s.QueuedIDs(ctx)
	if err != nil {
		t.Fatalf("QueuedIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("expected only %s queued, got %v", b.ID, ids)
	}
}

func TestStoreList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Create(ctx, doc.NewRequest()); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	rec, _ := s.Create(ctx, doc.NewRequest())
	s.Claim(ctx, rec.ID)

	all, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(all))
	}

	queued, err := s.List(ctx, StateQueued, 0)
	if err != nil {
		t.Fatalf("List queued: %v", err)
	}
	if len(queued) != 3 {
		t.Fatalf("expected 3 queued jobs, got %d", len(queued))
	}
}
