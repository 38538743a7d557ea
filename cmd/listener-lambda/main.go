// Package main provides the Lambda entry point for the trigger listener.
//
// Triggered by S3 ObjectCreated events on the video bucket. Every upload is
// acknowledged; the appearance of done.txt starts one transcription
// workflow execution named after the batch.
//
// Memory: 128 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/lambdaboot"
	"github.com/fpang/lesson-transcriber/internal/pipeline"
)

var coldStart = true

var listener *pipeline.Listener

func init() {
	initStart := time.Now()
	cfg := lambdaboot.LoadConfig()

	awsClients := lambdaboot.InitAWS()
	lambdaboot.ResolveStateMachineARN(awsClients.SSM, &cfg)
	starter := lambdaboot.InitStarter(awsClients.Config, cfg)

	var opts []pipeline.Option
	if runs := lambdaboot.InitRunStore(awsClients.Config, cfg.RunTable); runs != nil {
		opts = append(opts, pipeline.WithRunStore(runs))
	}
	listener = pipeline.NewListener(lambdaboot.InitStore(awsClients.Config), starter, opts...)

	lambdaboot.StartupLog("listener-lambda", initStart).
		StateMachine("transcription", cfg.StateMachineARN).
		SSMParam("stateMachineArn", cfg.StateMachineParam).
		DynamoTable("runs", cfg.RunTable).
		Config(config.EnvTriggerBackend, cfg.TriggerBackend).
		Config(config.EnvEventBusName, cfg.EventBusName).
		Log()
}

func handler(ctx context.Context, event events.S3Event) (pipeline.ListenerResponse, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "listener-lambda").Msg("Cold start, first invocation")
	}
	return listener.Handle(ctx, event)
}

func main() {
	lambda.Start(handler)
}
