package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/jobs"
	"github.com/fpang/lesson-transcriber/internal/lessonpath"
	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/store"
)

// videoPattern selects upload candidates by base name.
const videoPattern = "video*.mp4"

// ErrNotDirectory is returned when the upload root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Uploader walks a local lesson tree and uploads every video to the video
// bucket, then writes the sentinel that starts the workflow.
type Uploader struct {
	stageBase
	cfg   config.Config
	store objectstore.Store
}

// NewUploader creates an Uploader targeting cfg.VideoBucket.
func NewUploader(cfg config.Config, s objectstore.Store, opts ...Option) *Uploader {
	return &Uploader{
		stageBase: newStageBase(store.StageUpload, opts),
		cfg:       cfg,
		store:     s,
	}
}

// CheckTargets verifies that root is a directory and that both buckets
// exist. Any failure is a configuration error.
func (u *Uploader) CheckTargets(ctx context.Context, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("upload root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload root %s: %w", root, ErrNotDirectory)
	}
	for _, bucket := range []string{u.cfg.VideoBucket, u.cfg.TranscriptBucket} {
		ok, err := u.store.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !ok {
			return fmt.Errorf("bucket %s does not exist", bucket)
		}
	}
	return nil
}

// Run uploads the videos under root in walk order.
//
// The first path that breaks the week##/lesson##/video##.mp4 convention
// stops the batch; nothing after it is uploaded. Failed uploads are
// recorded and do not stop the batch. The sentinel is uploaded in every
// case except a fatal error, and carries the batch ID as its body.
//
// A local file that cannot be opened or a walk error is fatal.
func (u *Uploader) Run(ctx context.Context, root string) (Report, error) {
	started := time.Now()
	batchID := jobs.NewBatchID()
	report := newReport(batchID)
	logger := log.With().Str("batchId", batchID).Str("bucket", u.cfg.VideoBucket).Logger()

	paths, err := findVideos(root)
	if err != nil {
		u.finish(ctx, u.cfg.VideoBucket, report, started, err)
		return report, err
	}
	logger.Info().Int("candidates", len(paths)).Str("root", root).Msg("Starting upload")

	stoppedAt := ""
	for _, path := range paths {
		if err := lessonpath.Validate(path); err != nil {
			logger.Error().Err(err).Msg("Invalid video path, stopping batch")
			stoppedAt = err.Error()
			break
		}
		key, ok := lessonpath.ExtractKey(path)
		if !ok {
			logger.Error().Str("path", path).Msg("No week directory in path, stopping batch")
			stoppedAt = fmt.Sprintf("no week directory in %s", path)
			break
		}

		outcome, err := u.uploadFile(ctx, key, path)
		if err != nil {
			u.finish(ctx, u.cfg.VideoBucket, report, started, err)
			return report, err
		}
		if outcome.OK() {
			logger.Info().Str("key", key).Msg(outcome.Message)
		} else {
			logger.Error().Str("key", key).Msg(outcome.Message)
		}
		report.add(outcome)
	}

	sentinel := u.store.Put(ctx, u.cfg.VideoBucket, SentinelKey, strings.NewReader(batchID))
	if sentinel.OK() {
		logger.Info().Msgf("SUCCESS: Upload complete for %s", root)
	} else {
		logger.Error().Msg(sentinel.Message)
	}

	report.Message = fmt.Sprintf("Upload complete for %s", root)
	if stoppedAt != "" {
		report.Message = fmt.Sprintf("Upload stopped for %s: %s", root, stoppedAt)
	}
	u.finish(ctx, u.cfg.VideoBucket, report, started, nil)
	return report, nil
}

func (u *Uploader) uploadFile(ctx context.Context, key, path string) (objectstore.Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return objectstore.Outcome{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return u.store.Put(ctx, u.cfg.VideoBucket, key, f), nil
}

// findVideos lists the files under root whose name matches video*.mp4.
func findVideos(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(videoPattern, d.Name()); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}
