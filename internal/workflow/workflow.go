// Package workflow starts the downstream transcription workflow once a batch
// upload is complete. The listener only needs fire-and-forget semantics: it
// hands over a name and an input document and never waits for the result.
package workflow

import (
	"context"
	"fmt"
	"strings"
)

// Starter launches one workflow execution and returns its handle (an
// execution ARN or an event ID, depending on the backend).
type Starter interface {
	Start(ctx context.Context, name string, input []byte) (string, error)
}

// Backend names accepted by TRIGGER_BACKEND.
const (
	BackendStepFunctions = "sfn"
	BackendEventBridge   = "eventbridge"
)

// ParseBackend normalizes a backend name; empty selects Step Functions.
func ParseBackend(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", BackendStepFunctions, "stepfunctions":
		return BackendStepFunctions, nil
	case BackendEventBridge:
		return BackendEventBridge, nil
	default:
		return "", fmt.Errorf("unknown trigger backend %q", s)
	}
}
