package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=lesson-transcriber"

// ProjectTagging returns a pointer to the URL-encoded S3 object tagging string.
// Use as the Tagging field on PutObjectInput.
func ProjectTagging() *string {
	t := projectTag
	return &t
}

// S3 implements Store on top of the AWS SDK S3 client.
type S3 struct {
	client *s3.Client
}

// NewS3 wraps an S3 client.
func NewS3(client *s3.Client) *S3 {
	return &S3{client: client}
}

var _ Store = (*S3)(nil)

// Get reads a whole object into memory.
func (s *S3) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return data, nil
}

// Download streams an object to localPath, creating parent directories.
func (s *S3) Download(ctx context.Context, bucket, key, localPath string) error {
	log.Debug().Str("bucket", bucket).Str("key", key).Str("localPath", localPath).Msg("Downloading from S3")
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	})
	if err != nil {
		return fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := result.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write: %w", writeErr)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fmt.Errorf("download: %w", readErr)
		}
	}
	return f.Close()
}

// Put uploads body under key. Seekable bodies (files, byte readers) are
// passed through so the SDK can compute content length and checksums.
func (s *S3) Put(ctx context.Context, bucket, key string, body io.Reader) Outcome {
	if _, ok := body.(io.ReadSeeker); !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return Failed("upload", key, fmt.Errorf("read body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:  &bucket,
		Key:     &key,
		Body:    body,
		Tagging: ProjectTagging(),
	})
	if err != nil {
		return Failed("upload", key, fmt.Errorf("S3 PutObject: %w", err))
	}
	return Succeeded("upload", key)
}

// Delete removes key from bucket.
func (s *S3) Delete(ctx context.Context, bucket, key string) Outcome {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return Failed("delete", key, fmt.Errorf("S3 DeleteObject: %w", err))
	}
	return Succeeded("delete", key)
}

// ListBuckets returns the names of all buckets visible to the caller.
func (s *S3) ListBuckets(ctx context.Context) ([]string, error) {
	var names []string
	paginator := s3.NewListBucketsPaginator(s.client, &s3.ListBucketsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("S3 ListBuckets: %w", err)
		}
		for _, b := range page.Buckets {
			names = append(names, aws.ToString(b.Name))
		}
	}
	return names, nil
}

// BucketExists scans ListBuckets for name.
func (s *S3) BucketExists(ctx context.Context, name string) (bool, error) {
	names, err := s.ListBuckets(ctx)
	if err != nil {
		return false, err
	}
	return bucketIn(names, name), nil
}
