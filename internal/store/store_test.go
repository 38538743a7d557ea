package store

import (
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

func TestRunSK(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &RunRecord{BatchID: "batch-1", Stage: StageCleanup, StartedAt: started}

	if got := batchPK(rec.BatchID); got != "BATCH#batch-1" {
		t.Errorf("unexpected PK %q", got)
	}
	if got := runSK(rec); got != "STAGE#cleanup#2026-03-01T12:00:00Z" {
		t.Errorf("unexpected SK %q", got)
	}
}

func TestRunRecordRoundTrip(t *testing.T) {
	rec := RunRecord{
		BatchID:   "batch-1",
		Stage:     StageTranscribe,
		Bucket:    "lesson-transcripts",
		Message:   "DONE! Transcripts available in S3 Bucket: lesson-transcripts",
		Processed: []string{"week1/lesson1/video1.txt"},
		Failed:    []string{},
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("MarshalMap: %v", err)
	}
	if _, ok := item["error"]; ok {
		t.Error("empty error should be omitted")
	}

	var got RunRecord
	if err := attributevalue.UnmarshalMap(item, &got); err != nil {
		t.Fatalf("UnmarshalMap: %v", err)
	}
	if got.Stage != rec.Stage || strings.Join(got.Processed, ",") != "week1/lesson1/video1.txt" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("startedAt = %v, want %v", got.StartedAt, rec.StartedAt)
	}
}

func TestSortRuns(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []RunRecord{
		{Stage: StageCleanup, StartedAt: base.Add(2 * time.Minute)},
		{Stage: StageUpload, StartedAt: base},
		{Stage: StageTranscribe, StartedAt: base.Add(time.Minute)},
		{Stage: StageListener, StartedAt: base},
	}
	SortRuns(runs)

	var stages []string
	for _, r := range runs {
		stages = append(stages, r.Stage)
	}
	if got := strings.Join(stages, ","); got != "listener,upload,transcribe,cleanup" {
		t.Errorf("unexpected order %s", got)
	}
}
