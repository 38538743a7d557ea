// Package main provides the Lambda entry point for the batch transcriber.
//
// Invoked by the transcription state machine with the objects listed from
// the video bucket. Downloads the videos into the staging directory, runs
// the transcription script once over all of them, and uploads the
// transcripts. The returned report is passed to the cleanup Lambda.
//
// Container: image with the transcription script and its model
// Memory: 10 GB
// Timeout: 15 minutes
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
	"github.com/fpang/lesson-transcriber/internal/transcribe"
)

var coldStart = true

var transcriber *pipeline.Transcriber

func init() {
	initStart := time.Now()
	cfg := lambdaboot.LoadConfig(config.EnvVideoBucket, config.EnvTranscriptBucket)

	_, transcriptsDir := pipeline.StagingDirs(cfg.StagingDir)
	tool, err := transcribe.NewCommand(cfg.TranscribeCommand, transcriptsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid transcription command")
	}

	awsClients := lambdaboot.InitAWS()
	var opts []pipeline.Option
	if runs := lambdaboot.InitRunStore(awsClients.Config, cfg.RunTable); runs != nil {
		opts = append(opts, pipeline.WithRunStore(runs))
	}
	transcriber = pipeline.NewTranscriber(cfg, lambdaboot.InitStore(awsClients.Config), tool, opts...)

	lambdaboot.StartupLog("transcriber-lambda", initStart).
		S3Bucket("videoBucket", cfg.VideoBucket).
		S3Bucket("transcriptBucket", cfg.TranscriptBucket).
		DynamoTable("runs", cfg.RunTable).
		Config(config.EnvStagingDir, cfg.StagingDir).
		Config(config.EnvTranscribeCommand, cfg.TranscribeCommand).
		Config(config.EnvConcurrency, strconv.Itoa(cfg.Concurrency)).
		Log()
}

func handler(ctx context.Context, req pipeline.TranscribeRequest) (pipeline.Report, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "transcriber-lambda").Msg("Cold start, first invocation")
	}
	return transcriber.Handle(ctx, req)
}

func main() {
	lambda.Start(handler)
}
