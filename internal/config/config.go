// Package config builds the single Config value each binary constructs at
// process entry and passes into the pipeline stages. Nothing below cmd/
// reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variable names.
const (
	EnvVideoBucket        = "VIDEO_BUCKET"
	EnvTranscriptBucket   = "TRANSCRIPT_BUCKET"
	EnvStateMachineARN    = "STATE_MACHINE_ARN"
	EnvStateMachineParam  = "SSM_STATE_MACHINE_PARAM"
	EnvTriggerBackend     = "TRIGGER_BACKEND"
	EnvEventBusName       = "EVENT_BUS_NAME"
	EnvRunTable           = "RUN_TABLE_NAME"
	EnvStagingDir         = "STAGING_DIR"
	EnvTranscribeCommand  = "TRANSCRIBE_COMMAND"
	EnvConcurrency        = "CONCURRENCY"
	EnvLogLevel           = "LOG_LEVEL"
	defaultStagingDir     = "/tmp"
	defaultTranscribeCmd  = "./transcribe.sh"
	defaultConcurrency    = 4
	defaultLogLevel       = "info"
	defaultTriggerBackend = "sfn"
)

// ErrMissing is wrapped by Validate when required settings are empty.
var ErrMissing = errors.New("missing required configuration")

// Config is the resolved configuration for one process.
type Config struct {
	VideoBucket      string
	TranscriptBucket string

	// StateMachineARN may be empty at load time and resolved later from
	// SSM (StateMachineParam) during Lambda cold start.
	StateMachineARN   string
	StateMachineParam string
	TriggerBackend    string
	EventBusName      string

	// RunTable enables the DynamoDB run ledger when set.
	RunTable string

	StagingDir        string
	TranscribeCommand string
	Concurrency       int
	LogLevel          string
}

// Load reads envFiles (a missing default .env is ignored) and the process
// environment. Values already present in the environment win over files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	v.SetDefault(EnvStagingDir, defaultStagingDir)
	v.SetDefault(EnvTranscribeCommand, defaultTranscribeCmd)
	v.SetDefault(EnvConcurrency, defaultConcurrency)
	v.SetDefault(EnvLogLevel, defaultLogLevel)
	v.SetDefault(EnvTriggerBackend, defaultTriggerBackend)
	v.AutomaticEnv()

	cfg := Config{
		VideoBucket:       strings.TrimSpace(v.GetString(EnvVideoBucket)),
		TranscriptBucket:  strings.TrimSpace(v.GetString(EnvTranscriptBucket)),
		StateMachineARN:   strings.TrimSpace(v.GetString(EnvStateMachineARN)),
		StateMachineParam: strings.TrimSpace(v.GetString(EnvStateMachineParam)),
		TriggerBackend:    strings.TrimSpace(v.GetString(EnvTriggerBackend)),
		EventBusName:      strings.TrimSpace(v.GetString(EnvEventBusName)),
		RunTable:          strings.TrimSpace(v.GetString(EnvRunTable)),
		StagingDir:        v.GetString(EnvStagingDir),
		TranscribeCommand: v.GetString(EnvTranscribeCommand),
		Concurrency:       v.GetInt(EnvConcurrency),
		LogLevel:          v.GetString(EnvLogLevel),
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}

// Validate reports every env var in required whose value is empty.
func (c Config) Validate(required ...string) error {
	var missing []string
	for _, name := range required {
		if c.value(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) value(name string) string {
	switch name {
	case EnvVideoBucket:
		return c.VideoBucket
	case EnvTranscriptBucket:
		return c.TranscriptBucket
	case EnvStateMachineARN:
		return c.StateMachineARN
	case EnvEventBusName:
		return c.EventBusName
	case EnvRunTable:
		return c.RunTable
	case EnvStagingDir:
		return c.StagingDir
	case EnvTranscribeCommand:
		return c.TranscribeCommand
	default:
		return ""
	}
}
