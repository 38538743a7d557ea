// Package jobs generates batch identifiers. A batch ID names the sentinel
// upload, the workflow execution it starts, and every run record the
// stages write for it.
package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// BatchPrefix starts every generated batch ID.
const BatchPrefix = "batch-"

// maxNameLen is the Step Functions execution name limit.
const maxNameLen = 80

// NewBatchID creates a new random batch ID, e.g. "batch-3f2a...".
func NewBatchID() string {
	return BatchPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ExecutionName turns an arbitrary identifier into a valid execution name:
// characters outside [A-Za-z0-9_-] become '-', and the result is truncated
// to 80 characters. An empty or unusable id yields a fresh batch ID.
func ExecutionName(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		return NewBatchID()
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}
