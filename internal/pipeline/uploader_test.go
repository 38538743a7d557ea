package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/store"
)

func TestUploader_UploadsTreeAndSentinel(t *testing.T) {
	root := filepath.Join(t.TempDir(), "course")
	writeTree(t, root,
		"week1/lesson1/video1.mp4",
		"week1/lesson1/video2.mp4",
		"week2/lesson3/video1.mp4",
		"week1/lesson1/notes.md",
	)
	mem := objectstore.NewMemory(videoBucket, transcriptBucket)
	runs := &fakeRuns{}

	report, err := NewUploader(testConfig(t), mem, quiet(), WithRunStore(runs)).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"week1/lesson1/video1.mp4", "week1/lesson1/video2.mp4", "week2/lesson3/video1.mp4"}
	if !slices.Equal(report.Processed, want) {
		t.Errorf("processed = %v, want %v", report.Processed, want)
	}
	if len(report.Failed) != 0 {
		t.Errorf("failed = %v, want none", report.Failed)
	}
	if !strings.HasPrefix(report.BatchID, "batch-") {
		t.Errorf("unexpected batch ID %q", report.BatchID)
	}

	body, err := mem.Get(context.Background(), videoBucket, SentinelKey)
	if err != nil {
		t.Fatalf("sentinel not uploaded: %v", err)
	}
	if string(body) != report.BatchID {
		t.Errorf("sentinel body = %q, want batch ID %q", body, report.BatchID)
	}
	if got := mem.Keys(videoBucket); len(got) != 4 {
		t.Errorf("video bucket keys = %v", got)
	}

	if len(runs.recs) != 1 || runs.recs[0].Stage != store.StageUpload || runs.recs[0].BatchID != report.BatchID {
		t.Errorf("unexpected run records %+v", runs.recs)
	}
}

func TestUploader_InvalidPathStopsBatch(t *testing.T) {
	root := t.TempDir()
	// Walk order is lexical: "a" is uploaded, "b" is invalid, "c" is never reached.
	writeTree(t, root,
		"a/week1/lesson1/video1.mp4",
		"b/week1/video2.mp4",
		"c/week1/lesson1/video3.mp4",
	)
	mem := objectstore.NewMemory(videoBucket, transcriptBucket)

	report, err := NewUploader(testConfig(t), mem, quiet()).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !slices.Equal(report.Processed, []string{"week1/lesson1/video1.mp4"}) {
		t.Errorf("processed = %v", report.Processed)
	}
	if mem.Has(videoBucket, "week1/lesson1/video3.mp4") {
		t.Error("upload continued past an invalid path")
	}
	if !mem.Has(videoBucket, SentinelKey) {
		t.Error("sentinel must be uploaded even when the batch stops")
	}
	if !strings.Contains(report.Message, "lesson##") {
		t.Errorf("message should carry the validation reason, got %q", report.Message)
	}
}

func TestUploader_UploadFailureContinues(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"week1/lesson1/video1.mp4",
		"week1/lesson1/video2.mp4",
		"week1/lesson1/video3.mp4",
	)
	mem := objectstore.NewMemory(videoBucket, transcriptBucket)
	mem.FailOn("put", videoBucket, "week1/lesson1/video2.mp4", errors.New("throttled"))

	report, err := NewUploader(testConfig(t), mem, quiet()).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !slices.Equal(report.Processed, []string{"week1/lesson1/video1.mp4", "week1/lesson1/video3.mp4"}) {
		t.Errorf("processed = %v", report.Processed)
	}
	if !slices.Equal(report.Failed, []string{"week1/lesson1/video2.mp4"}) {
		t.Errorf("failed = %v", report.Failed)
	}
	if !mem.Has(videoBucket, SentinelKey) {
		t.Error("sentinel missing after partial failure")
	}
}

func TestUploader_UnreadableFileIsFatal(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced")
	}
	root := t.TempDir()
	writeTree(t, root, "week1/lesson1/video1.mp4")
	path := filepath.Join(root, "week1", "lesson1", "video1.mp4")
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatal(err)
	}
	mem := objectstore.NewMemory(videoBucket, transcriptBucket)

	if _, err := NewUploader(testConfig(t), mem, quiet()).Run(context.Background(), root); err == nil {
		t.Fatal("expected an error for an unreadable file")
	}
	if mem.Has(videoBucket, SentinelKey) {
		t.Error("sentinel must not be uploaded after a fatal error")
	}
}

func TestUploader_CheckTargets(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "video1.mp4")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ok := NewUploader(testConfig(t), objectstore.NewMemory(videoBucket, transcriptBucket), quiet())
	if err := ok.CheckTargets(ctx, dir); err != nil {
		t.Errorf("CheckTargets: %v", err)
	}
	if err := ok.CheckTargets(ctx, file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}
	if err := ok.CheckTargets(ctx, filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing root")
	}

	noTranscripts := NewUploader(testConfig(t), objectstore.NewMemory(videoBucket), quiet())
	err := noTranscripts.CheckTargets(ctx, dir)
	if err == nil || !strings.Contains(err.Error(), transcriptBucket) {
		t.Errorf("expected missing transcript bucket error, got %v", err)
	}
}
