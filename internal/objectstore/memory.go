package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ErrNotFound is returned by Memory when a bucket or key does not exist.
var ErrNotFound = errors.New("not found")

// Memory is an in-process Store. The upload CLI uses it for --dry-run and
// the pipeline tests use it with injected failures. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	failing map[string]error // "op bucket/key" -> error
	deleted []string
}

// NewMemory creates a store holding the given empty buckets.
func NewMemory(buckets ...string) *Memory {
	m := &Memory{
		buckets: make(map[string]map[string][]byte),
		failing: make(map[string]error),
	}
	for _, b := range buckets {
		m.buckets[b] = make(map[string][]byte)
	}
	return m
}

var _ Store = (*Memory)(nil)

func failKey(op, bucket, key string) string {
	return op + " " + bucket + "/" + key
}

// FailOn makes op ("get", "put", "delete") on bucket/key fail with err.
func (m *Memory) FailOn(op, bucket, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[failKey(op, bucket, key)] = err
}

// Seed stores data without going through Put.
func (m *Memory) Seed(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string][]byte)
	}
	m.buckets[bucket][key] = data
}

// Has reports whether bucket holds key.
func (m *Memory) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket][key]
	return ok
}

// Keys returns the sorted keys in bucket.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Deleted returns every bucket/key successfully deleted, in call order.
func (m *Memory) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deleted)
}

func (m *Memory) lookup(op, bucket, key string) ([]byte, error) {
	if err := m.failing[failKey(op, bucket, key)]; err != nil {
		return nil, err
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %s: %w", bucket, ErrNotFound)
	}
	data, ok := objects[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	return data, nil
}

func (m *Memory) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := m.lookup("get", bucket, key)
	if err != nil {
		return nil, err
	}
	return slices.Clone(data), nil
}

func (m *Memory) Download(ctx context.Context, bucket, key, localPath string) error {
	data, err := m.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (m *Memory) Put(ctx context.Context, bucket, key string, body io.Reader) Outcome {
	data, err := io.ReadAll(body)
	if err != nil {
		return Failed("upload", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[failKey("put", bucket, key)]; err != nil {
		return Failed("upload", key, err)
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return Failed("upload", key, fmt.Errorf("bucket %s: %w", bucket, ErrNotFound))
	}
	objects[key] = data
	return Succeeded("upload", key)
}

// Delete mirrors S3: deleting a missing key in an existing bucket succeeds.
func (m *Memory) Delete(ctx context.Context, bucket, key string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[failKey("delete", bucket, key)]; err != nil {
		return Failed("delete", key, err)
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		return Failed("delete", key, fmt.Errorf("bucket %s: %w", bucket, ErrNotFound))
	}
	delete(objects, key)
	m.deleted = append(m.deleted, bucket+"/"+key)
	return Succeeded("delete", key)
}

func (m *Memory) ListBuckets(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.buckets))
	for b := range m.buckets {
		names = append(names, b)
	}
	slices.Sort(names)
	return names, nil
}

func (m *Memory) BucketExists(ctx context.Context, name string) (bool, error) {
	names, err := m.ListBuckets(ctx)
	if err != nil {
		return false, err
	}
	return bucketIn(names, name), nil
}
