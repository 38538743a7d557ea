package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/lessonpath"
	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/store"
	"github.com/fpang/lesson-transcriber/internal/transcribe"
)

// ErrToolFailed is returned when the transcription tool cannot run or
// exits non-zero. The whole invocation fails.
var ErrToolFailed = errors.New("transcription failed")

// StagingDirs returns the videos and transcripts directories under
// stagingRoot. The transcription tool reads the first and writes the second.
func StagingDirs(stagingRoot string) (videos, transcripts string) {
	return filepath.Join(stagingRoot, "videos"), filepath.Join(stagingRoot, "transcripts")
}

// Transcriber downloads a batch of videos, runs the transcription tool once
// over all of them, and uploads the resulting transcripts.
type Transcriber struct {
	stageBase
	cfg   config.Config
	store objectstore.Store
	tool  transcribe.Tool
}

// NewTranscriber creates a Transcriber. tool must write its output into the
// transcripts directory returned by StagingDirs(cfg.StagingDir).
func NewTranscriber(cfg config.Config, s objectstore.Store, tool transcribe.Tool, opts ...Option) *Transcriber {
	return &Transcriber{
		stageBase: newStageBase(store.StageTranscribe, opts),
		cfg:       cfg,
		store:     s,
		tool:      tool,
	}
}

// Handle processes one batch. Download failures are logged and skipped; the
// report partitions the transcript uploads only.
func (t *Transcriber) Handle(ctx context.Context, req TranscribeRequest) (Report, error) {
	started := time.Now()
	report := newReport(req.BatchID)
	logger := log.With().Str("batchId", req.BatchID).Logger()

	videosDir, transcriptsDir := StagingDirs(t.cfg.StagingDir)
	if err := resetDirs(videosDir, transcriptsDir); err != nil {
		t.finish(ctx, t.cfg.TranscriptBucket, report, started, err)
		return report, err
	}
	defer func() {
		_ = os.RemoveAll(videosDir)
		_ = os.RemoveAll(transcriptsDir)
	}()

	downloaded := t.download(ctx, req.Items, videosDir)
	logger.Info().Int("items", len(req.Items)).Int("downloaded", downloaded).Msg("Downloads finished")

	result, err := t.tool.Run(ctx, videosDir)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrToolFailed, err)
		logger.Error().Err(err).Int("exitCode", result.ExitCode).Msg("Transcription tool failed")
		t.finish(ctx, t.cfg.TranscriptBucket, report, started, err)
		return report, err
	}
	for _, out := range result.Outputs {
		logger.Debug().Str("file", out).Msg("Transcript produced")
	}

	outcomes := forEach(ctx, t.cfg.Concurrency, len(result.Outputs), func(ctx context.Context, i int) objectstore.Outcome {
		path := result.Outputs[i]
		key, err := transcriptKey(transcriptsDir, path)
		if err != nil {
			return objectstore.Failed("upload", path, err)
		}
		o := objectstore.PutFile(ctx, t.store, t.cfg.TranscriptBucket, key, path)
		if o.OK() {
			logger.Info().Str("key", key).Msg(o.Message)
		} else {
			logger.Error().Str("key", key).Msg(o.Message)
		}
		return o
	})
	report = Partition(req.BatchID, outcomes)
	report.Message = fmt.Sprintf("DONE! Transcripts available in S3 Bucket: %s", t.cfg.TranscriptBucket)
	logger.Info().Int("processed", len(report.Processed)).Int("failed", len(report.Failed)).Msg(report.Message)

	t.finish(ctx, t.cfg.TranscriptBucket, report, started, nil)
	return report, nil
}

// download fetches every video item into videosDir, preserving the key
// hierarchy, and returns how many succeeded. Keys that are not lesson
// videos (the sentinel, stray objects) are skipped.
func (t *Transcriber) download(ctx context.Context, items []Item, videosDir string) int {
	outcomes := forEach(ctx, t.cfg.Concurrency, len(items), func(ctx context.Context, i int) objectstore.Outcome {
		key := items[i].Key
		if !filepath.IsLocal(filepath.FromSlash(key)) || lessonpath.Validate(key) != nil {
			log.Debug().Str("key", key).Msg("Skipping non-video item")
			return objectstore.Failed("download", key, errors.New("not a lesson video"))
		}
		dest := filepath.Join(videosDir, filepath.FromSlash(key))
		if err := t.store.Download(ctx, t.cfg.VideoBucket, key, dest); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to download video")
			return objectstore.Failed("download", key, err)
		}
		log.Info().Str("key", key).Str("path", dest).Msg("Downloaded video")
		return objectstore.Succeeded("download", key)
	})

	n := 0
	for _, o := range outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// transcriptKey is path relative to the transcripts directory, with
// forward slashes.
func transcriptKey(transcriptsDir, path string) (string, error) {
	rel, err := filepath.Rel(transcriptsDir, path)
	if err != nil {
		return "", fmt.Errorf("transcript key for %s: %w", path, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("transcript %s outside %s", path, transcriptsDir)
	}
	return filepath.ToSlash(rel), nil
}

func resetDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear staging dir %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create staging dir %s: %w", dir, err)
		}
	}
	return nil
}
