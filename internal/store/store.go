// Package store persists a ledger of pipeline runs: one record per stage
// invocation, grouped by batch. It is observability only. The stages never
// read it back to make decisions, and a ledger write failure never fails a
// stage.
//
// Single-table layout: PK = BATCH#{batchId}, SK = STAGE#{stage}#{startedAt}.
// A TTL attribute (expiresAt) removes records after RunTTL.
package store

import (
	"context"
	"time"
)

// RunTTL is how long run records are kept.
const RunTTL = 30 * 24 * time.Hour

// Stage names written to the ledger.
const (
	StageUpload     = "upload"
	StageListener   = "listener"
	StageTranscribe = "transcribe"
	StageCleanup    = "cleanup"
)

// RunRecord is the result of one stage invocation.
type RunRecord struct {
	BatchID    string    `json:"batchId" dynamodbav:"batchId"`
	Stage      string    `json:"stage" dynamodbav:"stage"`
	Bucket     string    `json:"bucket,omitempty" dynamodbav:"bucket,omitempty"`
	Message    string    `json:"message" dynamodbav:"message"`
	Processed  []string  `json:"processed" dynamodbav:"processed"`
	Failed     []string  `json:"failed" dynamodbav:"failed"`
	Error      string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt" dynamodbav:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" dynamodbav:"finishedAt"`
}

// RunStore reads and writes run records.
type RunStore interface {
	// PutRun writes a record (upsert).
	PutRun(ctx context.Context, rec *RunRecord) error

	// GetRuns returns every record of a batch ordered by stage start time.
	// An unknown batch yields an empty slice.
	GetRuns(ctx context.Context, batchID string) ([]RunRecord, error)
}
