// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every stage Lambda needs some subset of: resolved configuration, AWS
// config, the S3 object store, a workflow starter, the optional run ledger,
// and startup logging. Each Lambda's init() is a short composition of
// these helpers. Failures here are fatal: a Lambda that cannot initialize
// must not accept invocations.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/logging"
	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/store"
	"github.com/fpang/lesson-transcriber/internal/workflow"
)

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// LoadConfig resolves the process configuration, initializes logging at
// the configured level, and checks the required variables. Fatals on error.
func LoadConfig(required ...string) config.Config {
	cfg, err := config.Load()
	logging.Init(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(required...); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitStore creates the S3-backed object store.
func InitStore(cfg aws.Config) *objectstore.S3 {
	return objectstore.NewS3(s3.NewFromConfig(cfg))
}

// ResolveStateMachineARN fills cfg.StateMachineARN from SSM Parameter Store
// when it is not set directly and SSM_STATE_MACHINE_PARAM names a
// parameter. Fatals if the parameter cannot be read.
func ResolveStateMachineARN(ssmClient *ssm.Client, cfg *config.Config) {
	if cfg.StateMachineARN != "" || cfg.StateMachineParam == "" {
		return
	}
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name: aws.String(cfg.StateMachineParam),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", cfg.StateMachineParam).Msg("Failed to read state machine ARN from SSM")
	}
	cfg.StateMachineARN = aws.ToString(result.Parameter.Value)
	log.Debug().Str("param", cfg.StateMachineParam).Dur("elapsed", time.Since(ssmStart)).Msg("State machine ARN loaded from SSM")
}

// InitStarter builds the workflow starter selected by cfg.TriggerBackend.
// The Step Functions backend requires a state machine ARN. Fatals on
// misconfiguration.
func InitStarter(awsCfg aws.Config, cfg config.Config) workflow.Starter {
	backend, err := workflow.ParseBackend(cfg.TriggerBackend)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid trigger backend")
	}
	switch backend {
	case workflow.BackendEventBridge:
		return workflow.NewEventBus(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName)
	default:
		if err := cfg.Validate(config.EnvStateMachineARN); err != nil {
			log.Fatal().Err(err).Msg("Step Functions backend requires a state machine ARN")
		}
		return workflow.NewStepFunctions(sfn.NewFromConfig(awsCfg), cfg.StateMachineARN)
	}
}

// InitRunStore creates the DynamoDB run ledger if tableName is set.
// Returns nil (with a warning) if not configured.
func InitRunStore(awsCfg aws.Config, tableName string) store.RunStore {
	if tableName == "" {
		log.Warn().Str("envVar", config.EnvRunTable).Msg("Run table not set, run ledger disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), tableName)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
