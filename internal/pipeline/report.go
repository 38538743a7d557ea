// Package pipeline implements the four stages of the lesson pipeline:
// upload, trigger, transcribe, and cleanup. Stages share no state; each
// invocation gets its inputs from the caller and returns a Report.
package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/lesson-transcriber/internal/metrics"
	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/store"
)

// SentinelKey is the marker object whose upload completes a batch.
const SentinelKey = "done.txt"

// Report is the processed/failed partition a stage hands to the next one.
// Every input item appears in exactly one of the two lists, in processing
// order.
type Report struct {
	Message   string   `json:"message"`
	Processed []string `json:"processed"`
	Failed    []string `json:"failed"`
	BatchID   string   `json:"batchId,omitempty"`
}

func newReport(batchID string) Report {
	return Report{
		Processed: []string{},
		Failed:    []string{},
		BatchID:   batchID,
	}
}

func (r *Report) add(o objectstore.Outcome) {
	if o.OK() {
		r.Processed = append(r.Processed, o.Key)
	} else {
		r.Failed = append(r.Failed, o.Key)
	}
}

// Partition builds a report from per-item outcomes, keeping their order.
func Partition(batchID string, outcomes []objectstore.Outcome) Report {
	r := newReport(batchID)
	for _, o := range outcomes {
		r.add(o)
	}
	return r
}

// Item describes one object as listed by the workflow's S3 item reader.
// Only Key is used. LastModified arrives as epoch seconds from the item
// reader and as a timestamp string from ListObjectsV2, so it is kept raw.
type Item struct {
	Etag         string          `json:"Etag"`
	Key          string          `json:"Key"`
	LastModified json.RawMessage `json:"LastModified,omitempty"`
	Size         float64         `json:"Size"`
	StorageClass string          `json:"StorageClass"`
}

// TranscribeRequest is the transcriber's invocation payload. The state
// machine passes its execution name as BatchId.
type TranscribeRequest struct {
	Items   []Item `json:"Items"`
	BatchID string `json:"BatchId,omitempty"`
}

// Option configures the optional collaborators of a stage.
type Option func(*stageBase)

// WithRunStore records each invocation in the run ledger.
func WithRunStore(rs store.RunStore) Option {
	return func(b *stageBase) { b.runs = rs }
}

// WithMetricsWriter redirects EMF output (stdout by default).
func WithMetricsWriter(w io.Writer) Option {
	return func(b *stageBase) { b.metricsOut = w }
}

// stageBase carries what every stage does after its work: metrics and the
// run ledger.
type stageBase struct {
	stage      string
	runs       store.RunStore
	metricsOut io.Writer
}

func newStageBase(stage string, opts []Option) stageBase {
	b := stageBase{stage: stage}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// finish flushes metrics and writes the run record. Neither can fail the
// stage.
func (b *stageBase) finish(ctx context.Context, bucket string, report Report, started time.Time, stageErr error) {
	emf := metrics.New(metrics.Namespace)
	if b.metricsOut != nil {
		emf = metrics.NewWithWriter(metrics.Namespace, b.metricsOut)
	}
	emf.Dimension("Stage", b.stage).
		Count("Processed", len(report.Processed)).
		Count("Failed", len(report.Failed)).
		Duration("DurationMs", time.Since(started)).
		Property("batchId", report.BatchID).
		Flush()

	if b.runs == nil {
		return
	}
	batchID := report.BatchID
	if batchID == "" {
		batchID = invocationID(ctx)
	}
	if batchID == "" {
		log.Debug().Str("stage", b.stage).Msg("No batch ID, run record skipped")
		return
	}
	rec := &store.RunRecord{
		BatchID:    batchID,
		Stage:      b.stage,
		Bucket:     bucket,
		Message:    report.Message,
		Processed:  report.Processed,
		Failed:     report.Failed,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if stageErr != nil {
		rec.Error = stageErr.Error()
	}
	if err := b.runs.PutRun(ctx, rec); err != nil {
		log.Warn().Err(err).Str("batchId", batchID).Str("stage", b.stage).Msg("Failed to write run record")
	}
}

// invocationID returns the Lambda request ID, or "" outside Lambda.
func invocationID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}

// forEach runs fn for indexes 0..n-1 with at most limit in flight and
// returns the outcomes in index order.
func forEach(ctx context.Context, limit, n int, fn func(ctx context.Context, i int) objectstore.Outcome) []objectstore.Outcome {
	outcomes := make([]objectstore.Outcome, n)
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			outcomes[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
