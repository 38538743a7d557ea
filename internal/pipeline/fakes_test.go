package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/store"
	"github.com/fpang/lesson-transcriber/internal/transcribe"
)

const (
	videoBucket      = "lesson-videos"
	transcriptBucket = "lesson-transcripts"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		VideoBucket:      videoBucket,
		TranscriptBucket: transcriptBucket,
		StagingDir:       t.TempDir(),
		Concurrency:      3,
	}
}

func quiet() Option {
	return WithMetricsWriter(io.Discard)
}

// fakeStarter records Start calls.
type fakeStarter struct {
	mu    sync.Mutex
	names []string
	input []string
	err   error
}

func (f *fakeStarter) Start(ctx context.Context, name string, input []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.input = append(f.input, string(input))
	if f.err != nil {
		return "", f.err
	}
	return "arn:aws:states:us-east-1:123456789012:execution:transcribe:" + name, nil
}

// fakeRuns is an in-memory RunStore.
type fakeRuns struct {
	mu   sync.Mutex
	recs []store.RunRecord
}

func (f *fakeRuns) PutRun(ctx context.Context, rec *store.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeRuns) GetRuns(ctx context.Context, batchID string) ([]store.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.RunRecord
	for _, r := range f.recs {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mirrorTool writes one transcript per downloaded video into outputDir,
// mirroring the directory layout, like the real tool.
type mirrorTool struct {
	outputDir string
	skip      map[string]bool // base names to leave untranscribed
	err       error
	inputs    []string
}

func (m *mirrorTool) Run(ctx context.Context, inputDir string) (transcribe.Result, error) {
	m.inputs = append(m.inputs, inputDir)
	if m.err != nil {
		return transcribe.Result{ExitCode: 2}, m.err
	}
	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".mp4") {
			return err
		}
		if m.skip[d.Name()] {
			return nil
		}
		rel, _ := filepath.Rel(inputDir, path)
		out := filepath.Join(m.outputDir, strings.TrimSuffix(rel, ".mp4")+".txt")
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		return os.WriteFile(out, []byte("transcript of "+rel), 0o644)
	})
	if err != nil {
		return transcribe.Result{ExitCode: -1}, err
	}
	outputs, err := transcribe.Discover(m.outputDir)
	return transcribe.Result{Outputs: outputs}, err
}

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("data:"+f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
