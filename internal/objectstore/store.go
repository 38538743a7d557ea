// Package objectstore is the blob-store collaborator shared by every stage.
//
// Put and Delete never fail with an error: the result of a single transfer
// is returned as an Outcome so batch loops can partition items into
// processed and failed and keep going. Only operations whose failure is
// fatal to the caller (Get, Download, bucket lookups) return errors.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Status classifies a single transfer.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the per-item result of a put or delete.
type Outcome struct {
	Key     string
	Status  Status
	Message string
}

// OK reports whether the transfer succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Succeeded builds a success outcome for op ("upload", "delete").
func Succeeded(op, key string) Outcome {
	return Outcome{Key: key, Status: StatusSuccess, Message: fmt.Sprintf("SUCCESS: %s %s", op, key)}
}

// Failed builds a failure outcome carrying the cause.
func Failed(op, key string, err error) Outcome {
	return Outcome{Key: key, Status: StatusFailure, Message: fmt.Sprintf("ERROR: Failed %s %s : %v", op, key, err)}
}

// Store is the subset of object storage the pipeline uses.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Download(ctx context.Context, bucket, key, localPath string) error
	Put(ctx context.Context, bucket, key string, body io.Reader) Outcome
	Delete(ctx context.Context, bucket, key string) Outcome
	ListBuckets(ctx context.Context) ([]string, error)
	BucketExists(ctx context.Context, name string) (bool, error)
}

// PutFile opens localPath and uploads it under key. A file that cannot be
// opened is reported as a failed outcome like any other transfer failure.
func PutFile(ctx context.Context, s Store, bucket, key, localPath string) Outcome {
	f, err := os.Open(localPath)
	if err != nil {
		return Failed("upload", key, fmt.Errorf("open %s: %w", localPath, err))
	}
	defer f.Close()
	return s.Put(ctx, bucket, key, f)
}

// bucketIn reports whether name appears in the listed buckets.
func bucketIn(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
