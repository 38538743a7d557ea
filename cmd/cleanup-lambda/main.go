// Package main provides the Lambda entry point for the cleanup stage.
//
// Invoked by the transcription state machine with the transcriber reports.
// Deletes the source video of every transcript that was stored; videos of
// failed transcripts are kept.
//
// Memory: 128 MB
// Timeout: 2 minutes
package main

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/lambdaboot"
	"github.com/fpang/lesson-transcriber/internal/pipeline"
)

var coldStart = true

var cleanup *pipeline.Cleanup

func init() {
	initStart := time.Now()
	cfg := lambdaboot.LoadConfig(config.EnvVideoBucket)

	awsClients := lambdaboot.InitAWS()
	var opts []pipeline.Option
	if runs := lambdaboot.InitRunStore(awsClients.Config, cfg.RunTable); runs != nil {
		opts = append(opts, pipeline.WithRunStore(runs))
	}
	cleanup = pipeline.NewCleanup(cfg, lambdaboot.InitStore(awsClients.Config), opts...)

	lambdaboot.StartupLog("cleanup-lambda", initStart).
		S3Bucket("videoBucket", cfg.VideoBucket).
		DynamoTable("runs", cfg.RunTable).
		Config(config.EnvConcurrency, strconv.Itoa(cfg.Concurrency)).
		Log()
}

func handler(ctx context.Context, reports []pipeline.Report) (pipeline.Report, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "cleanup-lambda").Msg("Cold start, first invocation")
	}
	return cleanup.Handle(ctx, reports)
}

func main() {
	lambda.Start(handler)
}
