package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/fpang/lesson-transcriber/internal/jobs"
	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/store"
	"github.com/fpang/lesson-transcriber/internal/workflow"
)

// Listener response messages.
const (
	MessageTriggered     = "Step function triggered"
	MessageTriggerFailed = "Step function trigger failed"
	uploadPrefix         = "UPLOAD: "
)

// launchPayload is the fixed workflow input.
var launchPayload = []byte(`{"input": {"payload": "Listener --> Step Function!"}}`)

// ListenerResponse acknowledges one storage event.
type ListenerResponse struct {
	Message   string `json:"message"`
	Execution string `json:"execution,omitempty"`
}

// Listener starts the workflow when the sentinel object appears.
type Listener struct {
	stageBase
	store   objectstore.Store
	starter workflow.Starter
}

// NewListener creates a Listener. s is used to read the batch ID from the
// sentinel body.
func NewListener(s objectstore.Store, starter workflow.Starter, opts ...Option) *Listener {
	return &Listener{
		stageBase: newStageBase(store.StageListener, opts),
		store:     s,
		starter:   starter,
	}
}

// Handle inspects the first record of the event only. A sentinel key starts
// one workflow execution named after the batch; any other key is
// acknowledged as an upload. Starting the workflow never fails the handler:
// redelivery of the sentinel event is the retry path.
func (l *Listener) Handle(ctx context.Context, event events.S3Event) (ListenerResponse, error) {
	if len(event.Records) == 0 {
		log.Warn().Msg("S3 event without records")
		return ListenerResponse{Message: uploadPrefix}, nil
	}
	if n := len(event.Records); n > 1 {
		log.Warn().Int("records", n).Msg("Only the first record of the event is inspected")
	}

	record := event.Records[0]
	bucket := record.S3.Bucket.Name
	key := decodeKey(record.S3.Object.Key)
	log.Info().Str("eventName", record.EventName).Str("bucket", bucket).Str("key", key).Msg("Storage event received")

	if key != SentinelKey {
		resp := ListenerResponse{Message: uploadPrefix + key}
		log.Info().Msg(resp.Message)
		return resp, nil
	}

	started := time.Now()
	batchID := l.batchID(ctx, bucket)
	name := jobs.ExecutionName(batchID)
	logger := log.With().Str("batchId", batchID).Str("execution", name).Logger()

	report := newReport(batchID)
	handle, err := l.starter.Start(ctx, name, launchPayload)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start workflow")
		report.Message = fmt.Sprintf("%s: %v", MessageTriggerFailed, err)
		report.Failed = append(report.Failed, SentinelKey)
		l.finish(ctx, bucket, report, started, err)
		return ListenerResponse{Message: report.Message}, nil
	}

	logger.Info().Str("handle", handle).Msg(MessageTriggered)
	report.Message = MessageTriggered
	report.Processed = append(report.Processed, SentinelKey)
	l.finish(ctx, bucket, report, started, nil)
	return ListenerResponse{Message: MessageTriggered, Execution: handle}, nil
}

// batchID reads the ID the uploader wrote into the sentinel. A missing or
// unreadable sentinel yields a fresh ID so the trigger still fires.
func (l *Listener) batchID(ctx context.Context, bucket string) string {
	body, err := l.store.Get(ctx, bucket, SentinelKey)
	if err != nil {
		id := jobs.NewBatchID()
		log.Warn().Err(err).Str("batchId", id).Msg("Could not read sentinel, using generated batch ID")
		return id
	}
	return jobs.ExecutionName(string(body))
}

// decodeKey undoes the form encoding S3 applies to keys in event records.
func decodeKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

