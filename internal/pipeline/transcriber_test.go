package pipeline

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/transcribe"
)

func items(keys ...string) []Item {
	out := make([]Item, len(keys))
	for i, k := range keys {
		out[i] = Item{Key: k, Etag: `"etag"`, Size: 10, StorageClass: "STANDARD"}
	}
	return out
}

func newTranscriberFixture(t *testing.T, keys ...string) (*objectstore.Memory, *mirrorTool, *Transcriber) {
	t.Helper()
	cfg := testConfig(t)
	mem := objectstore.NewMemory(videoBucket, transcriptBucket)
	for _, k := range keys {
		mem.Seed(videoBucket, k, []byte("video "+k))
	}
	_, transcripts := StagingDirs(cfg.StagingDir)
	tool := &mirrorTool{outputDir: transcripts}
	return mem, tool, NewTranscriber(cfg, mem, tool, quiet())
}

func TestTranscriber_UploadsTranscripts(t *testing.T) {
	keys := []string{"week1/lesson1/video1.mp4", "week1/lesson1/video2.mp4", "week2/lesson1/video1.mp4"}
	mem, tool, tr := newTranscriberFixture(t, keys...)

	req := TranscribeRequest{Items: items(append(keys, SentinelKey)...), BatchID: "batch-7"}
	report, err := tr.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	want := []string{"week1/lesson1/video1.txt", "week1/lesson1/video2.txt", "week2/lesson1/video1.txt"}
	if !slices.Equal(report.Processed, want) {
		t.Errorf("processed = %v, want %v", report.Processed, want)
	}
	if len(report.Failed) != 0 {
		t.Errorf("failed = %v", report.Failed)
	}
	if report.Message != "DONE! Transcripts available in S3 Bucket: "+transcriptBucket {
		t.Errorf("message = %q", report.Message)
	}
	if report.BatchID != "batch-7" {
		t.Errorf("batch ID = %q", report.BatchID)
	}
	if !slices.Equal(mem.Keys(transcriptBucket), want) {
		t.Errorf("transcript bucket = %v", mem.Keys(transcriptBucket))
	}
	if len(tool.inputs) != 1 {
		t.Errorf("tool should run exactly once, ran %d times", len(tool.inputs))
	}
	if _, err := os.Stat(tool.inputs[0]); !os.IsNotExist(err) {
		t.Error("staging directory should be removed after the invocation")
	}
}

func TestTranscriber_PartitionIsComplete(t *testing.T) {
	keys := []string{"week1/lesson1/video1.mp4", "week1/lesson1/video2.mp4", "week1/lesson1/video3.mp4", "week1/lesson2/video1.mp4"}
	mem, _, tr := newTranscriberFixture(t, keys...)
	mem.FailOn("put", transcriptBucket, "week1/lesson1/video2.txt", errors.New("503"))
	mem.FailOn("put", transcriptBucket, "week1/lesson2/video1.txt", errors.New("503"))

	report, err := tr.Handle(context.Background(), TranscribeRequest{Items: items(keys...)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := len(report.Processed) + len(report.Failed); got != len(keys) {
		t.Errorf("partition covers %d items, want %d", got, len(keys))
	}
	for _, k := range report.Failed {
		if slices.Contains(report.Processed, k) {
			t.Errorf("%s is both processed and failed", k)
		}
	}
	if !slices.Equal(report.Failed, []string{"week1/lesson1/video2.txt", "week1/lesson2/video1.txt"}) {
		t.Errorf("failed = %v", report.Failed)
	}
}

func TestTranscriber_DownloadFailureIsSkipped(t *testing.T) {
	keys := []string{"week1/lesson1/video1.mp4", "week1/lesson1/video2.mp4"}
	mem, _, tr := newTranscriberFixture(t, keys...)
	mem.FailOn("get", videoBucket, "week1/lesson1/video1.mp4", errors.New("NoSuchKey"))

	report, err := tr.Handle(context.Background(), TranscribeRequest{Items: items(keys...)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !slices.Equal(report.Processed, []string{"week1/lesson1/video2.txt"}) {
		t.Errorf("processed = %v", report.Processed)
	}
}

func TestTranscriber_ToolFailureIsFatal(t *testing.T) {
	keys := []string{"week1/lesson1/video1.mp4"}
	mem, tool, tr := newTranscriberFixture(t, keys...)
	tool.err = transcribe.ErrFailed

	_, err := tr.Handle(context.Background(), TranscribeRequest{Items: items(keys...)})
	if !errors.Is(err, ErrToolFailed) || !errors.Is(err, transcribe.ErrFailed) {
		t.Fatalf("expected ErrToolFailed wrapping the tool error, got %v", err)
	}
	if len(mem.Keys(transcriptBucket)) != 0 {
		t.Error("nothing should be uploaded after a tool failure")
	}
}

func TestTranscriber_RejectsEscapingKeys(t *testing.T) {
	mem, tool, tr := newTranscriberFixture(t)
	mem.Seed(videoBucket, "../week1/lesson1/video1.mp4", []byte("x"))

	report, err := tr.Handle(context.Background(), TranscribeRequest{Items: items("../week1/lesson1/video1.mp4")})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(report.Processed) != 0 || len(tool.inputs) != 1 {
		t.Errorf("escaping key should be skipped, report %+v", report)
	}
}

func TestTranscriptKey(t *testing.T) {
	key, err := transcriptKey("/tmp/transcripts", "/tmp/transcripts/week1/lesson2/video3.txt")
	if err != nil || key != "week1/lesson2/video3.txt" {
		t.Errorf("got %q, %v", key, err)
	}
	if _, err := transcriptKey("/tmp/transcripts", "/tmp/other/video1.txt"); err == nil {
		t.Error("expected error for a file outside the transcripts directory")
	}
}
