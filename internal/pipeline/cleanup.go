package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/lessonpath"
	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/store"
)

// Cleanup deletes the source videos whose transcripts were stored.
type Cleanup struct {
	stageBase
	cfg   config.Config
	store objectstore.Store
}

// NewCleanup creates a Cleanup stage deleting from cfg.VideoBucket.
func NewCleanup(cfg config.Config, s objectstore.Store, opts ...Option) *Cleanup {
	return &Cleanup{
		stageBase: newStageBase(store.StageCleanup, opts),
		cfg:       cfg,
		store:     s,
	}
}

// Handle deletes the video of every processed transcript across all
// upstream reports. Failed transcripts keep their videos. The returned
// report partitions the deletes.
func (c *Cleanup) Handle(ctx context.Context, upstream []Report) (Report, error) {
	started := time.Now()
	batchID := ""
	var keys []string
	for _, r := range upstream {
		if batchID == "" {
			batchID = r.BatchID
		}
		for _, transcript := range r.Processed {
			keys = append(keys, lessonpath.TranscriptToVideoKey(transcript))
		}
	}
	logger := log.With().Str("batchId", batchID).Str("bucket", c.cfg.VideoBucket).Logger()
	logger.Info().Int("reports", len(upstream)).Int("videos", len(keys)).Msg("Starting cleanup")

	outcomes := forEach(ctx, c.cfg.Concurrency, len(keys), func(ctx context.Context, i int) objectstore.Outcome {
		o := c.store.Delete(ctx, c.cfg.VideoBucket, keys[i])
		if o.OK() {
			logger.Info().Str("key", keys[i]).Msg(o.Message)
		} else {
			logger.Error().Str("key", keys[i]).Msg(o.Message)
		}
		return o
	})

	report := Partition(batchID, outcomes)
	report.Message = fmt.Sprintf("CLEANUP COMPLETE: %s", c.cfg.VideoBucket)
	logger.Info().Int("processed", len(report.Processed)).Int("failed", len(report.Failed)).Msg(report.Message)

	c.finish(ctx, c.cfg.VideoBucket, report, started, nil)
	return report, nil
}
