package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestRun(t *testing.T, db *DB, name, submittedBy string, createdAt time.Time) *model.Run {
	t.Helper()
	run := &model.Run{
		Name:        name,
		Package:     "com.sandbox.components",
		SubmittedBy: submittedBy,
		CreatedAt:   createdAt,
		Outcome: model.NewOutcome([]model.StageResult{
			{Stage: model.StageValidate, Status: model.StatusFailure, Diagnostic: "';' expected", ExitCode: 1},
		}, 6),
	}
	run.FailedStage = run.Outcome.FailedStage
	if err := db.Create(context.Background(), run); err != nil {
		t.Fatalf("failed to create test run: %v", err)
	}
	return run
}

func TestCreate_SetsIDAndTimestamp(t *testing.T) {
	db := newTestDB(t)

	run := &model.Run{Name: "TestComponent"}
	if err := db.Create(context.Background(), run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if run.ID == "" {
		t.Error("Create() did not set run.ID")
	}
	if run.CreatedAt.IsZero() {
		t.Error("Create() did not set run.CreatedAt")
	}
}

func TestCreate_KeepsGivenID(t *testing.T) {
	db := newTestDB(t)

	run := &model.Run{ID: "cv37rs3pp9olc6atsptg", Name: "TestComponent"}
	if err := db.Create(context.Background(), run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if run.ID != "cv37rs3pp9olc6atsptg" {
		t.Errorf("ID = %q, want the caller's id", run.ID)
	}

	if err := db.Create(context.Background(), run); err == nil {
		t.Error("second Create() with the same id should fail")
	}
}

func TestGetByID_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	original := &model.Run{
		Name:          "TestComponent",
		Package:       "com.sandbox.components",
		Workspace:     "/tmp/java-sandbox/abc",
		Success:       true,
		JobDescriptor: "/tmp/java-sandbox/abc/jenkins-job.xml",
		PublishedKeys: []string{"runs/abc/TestComponent-1.0.0.jar"},
		SubmittedBy:   "alice",
		Outcome: model.NewOutcome([]model.StageResult{
			{Stage: model.StageVerify, Status: model.StatusSuccess, Artifact: "/tmp/a.jar", Duration: time.Second},
		}, 1),
	}
	if err := db.Create(context.Background(), original); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.GetByID(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Name != original.Name || got.Workspace != original.Workspace || !got.Success {
		t.Errorf("GetByID() = %+v, want %+v", got, original)
	}
	if got.SubmittedBy != "alice" {
		t.Errorf("SubmittedBy = %q, want %q", got.SubmittedBy, "alice")
	}
	if len(got.PublishedKeys) != 1 || got.PublishedKeys[0] != "runs/abc/TestComponent-1.0.0.jar" {
		t.Errorf("PublishedKeys = %v", got.PublishedKeys)
	}
	if got.Outcome == nil || got.Outcome.Artifact() != "/tmp/a.jar" {
		t.Errorf("Outcome = %+v, want the stored artifact", got.Outcome)
	}
	if got.Outcome.Results[0].Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", got.Outcome.Results[0].Duration)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	createTestRun(t, db, "First", "alice", base)
	createTestRun(t, db, "Second", "bob", base.Add(time.Minute))
	createTestRun(t, db, "Third", "alice", base.Add(2*time.Minute))

	tests := []struct {
		name      string
		opts      repository.ListOptions
		wantNames []string
	}{
		{name: "newest first", opts: repository.ListOptions{}, wantNames: []string{"Third", "Second", "First"}},
		{name: "limit", opts: repository.ListOptions{Limit: 1}, wantNames: []string{"Third"}},
		{name: "offset", opts: repository.ListOptions{Limit: 2, Offset: 2}, wantNames: []string{"First"}},
		{name: "negative offset", opts: repository.ListOptions{Offset: -5}, wantNames: []string{"Third", "Second", "First"}},
		{name: "by submitter", opts: repository.ListOptions{SubmittedBy: "alice"}, wantNames: []string{"Third", "First"}},
		{name: "unknown submitter", opts: repository.ListOptions{SubmittedBy: "carol"}, wantNames: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := db.List(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			got := make([]string, len(runs))
			for i, r := range runs {
				got[i] = r.Name
			}
			if len(got) != len(tt.wantNames) {
				t.Fatalf("List() names = %v, want %v", got, tt.wantNames)
			}
			for i := range got {
				if got[i] != tt.wantNames[i] {
					t.Errorf("List()[%d] = %s, want %s", i, got[i], tt.wantNames[i])
				}
			}
		})
	}
}

func TestList_DecodesFailedStage(t *testing.T) {
	db := newTestDB(t)
	createTestRun(t, db, "Broken", "", time.Now())

	runs, err := db.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if runs[0].FailedStage != model.StageValidate {
		t.Errorf("FailedStage = %q, want %q", runs[0].FailedStage, model.StageValidate)
	}
	if runs[0].Outcome.Failed().Diagnostic != "';' expected" {
		t.Errorf("Diagnostic = %q", runs[0].Outcome.Failed().Diagnostic)
	}
}

func TestNew_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sandbox.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	createTestRun(t, db, "Persisted", "", time.Now())
	db.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Name != "Persisted" {
		t.Errorf("List() after reopen = %+v", runs)
	}
}
