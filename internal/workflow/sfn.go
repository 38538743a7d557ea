package workflow

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog/log"
)

// StepFunctions starts executions of a single state machine.
type StepFunctions struct {
	client          *sfn.Client
	stateMachineARN string
}

// NewStepFunctions binds a client to the transcription state machine.
func NewStepFunctions(client *sfn.Client, stateMachineARN string) *StepFunctions {
	return &StepFunctions{client: client, stateMachineARN: stateMachineARN}
}

var _ Starter = (*StepFunctions)(nil)

// Start calls StartExecution. Starting the same name and input twice while
// the first execution is running returns the existing execution.
func (s *StepFunctions) Start(ctx context.Context, name string, input []byte) (string, error) {
	out, err := s.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(s.stateMachineARN),
		Input:           aws.String(string(input)),
		Name:            aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("StartExecution: %w", err)
	}

	arn := aws.ToString(out.ExecutionArn)
	log.Debug().
		Str("executionArn", arn).
		Str("sfnArn", s.stateMachineARN).
		Msg("Step Functions execution started")
	return arn, nil
}
