package workflow

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

const (
	eventSource     = "lesson-transcriber"
	eventDetailType = "BatchUploaded"
)

// EventBus publishes a BatchUploaded event instead of starting the state
// machine directly. An EventBridge rule on the bus targets the workflow.
type EventBus struct {
	client  *eventbridge.Client
	busName string
}

// NewEventBus creates an EventBus publisher. An empty busName uses the
// account's default bus.
func NewEventBus(client *eventbridge.Client, busName string) *EventBus {
	return &EventBus{client: client, busName: busName}
}

var _ Starter = (*EventBus)(nil)

// Start emits one event whose detail is the workflow input. The name is
// attached as the event's resource so rules and logs can correlate it.
func (e *EventBus) Start(ctx context.Context, name string, input []byte) (string, error) {
	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(eventSource),
		DetailType: aws.String(eventDetailType),
		Detail:     aws.String(string(input)),
		Resources:  []string{name},
	}
	if e.busName != "" {
		entry.EventBusName = aws.String(e.busName)
	}

	result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("EventBridge PutEvents failed")
		return "", fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, ent := range result.Entries {
			if ent.ErrorCode != nil || ent.ErrorMessage != nil {
				return "", fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(ent.ErrorCode), aws.ToString(ent.ErrorMessage))
			}
		}
	}

	var eventID string
	if len(result.Entries) > 0 {
		eventID = aws.ToString(result.Entries[0].EventId)
	}
	log.Debug().Str("name", name).Str("eventId", eventID).Msg("BatchUploaded emitted to EventBridge")
	return eventID, nil
}
