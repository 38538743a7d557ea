// Package transcribe runs the external speech-to-text tool over a staging
// directory and collects the transcript files it leaves behind.
//
// The tool is opaque: it is invoked once with the directory holding the
// downloaded videos and, by convention, writes one video##.txt per
// video##.mp4 into a sibling output directory, mirroring the
// week##/lesson## hierarchy.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var commandContext = exec.CommandContext

// ErrFailed marks a tool run that could not be started or exited non-zero.
var ErrFailed = errors.New("transcription tool failed")

// Result describes a finished tool run.
type Result struct {
	ExitCode int
	// Outputs lists the transcript files found under the output directory,
	// in lexical order.
	Outputs []string
}

// Tool transcribes every video under inputDir.
type Tool interface {
	Run(ctx context.Context, inputDir string) (Result, error)
}

// Command wraps an external transcription command.
type Command struct {
	binary    string
	args      []string
	outputDir string
}

// DefaultCommand is the script bundled into the transcriber image.
const DefaultCommand = "./transcribe.sh"

// NewCommand builds a Command from a command line such as
// "./transcribe.sh --model small". outputDir is where the tool writes
// transcripts.
func NewCommand(commandLine, outputDir string) (*Command, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		fields = []string{DefaultCommand}
	}
	if outputDir == "" {
		return nil, errors.New("output directory required")
	}
	return &Command{binary: fields[0], args: fields[1:], outputDir: outputDir}, nil
}

var _ Tool = (*Command)(nil)

// Run blocks until the tool exits. A spawn failure or non-zero exit is
// returned as an error wrapping ErrFailed; Result.ExitCode is still set
// when the process ran.
func (c *Command) Run(ctx context.Context, inputDir string) (Result, error) {
	var result Result
	if inputDir == "" {
		return result, errors.New("input directory required")
	}

	args := append(append([]string(nil), c.args...), inputDir)
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Info().Str("binary", c.binary).Strs("args", args).Msg("Transcribing videos")
	start := time.Now()
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("%w: %s exited %d: %s", ErrFailed, c.binary, result.ExitCode, strings.TrimSpace(stderr.String()))
		}
		result.ExitCode = -1
		return result, fmt.Errorf("%w: start %s: %v", ErrFailed, c.binary, err)
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Transcription finished")

	outputs, err := Discover(c.outputDir)
	if err != nil {
		return result, err
	}
	result.Outputs = outputs
	return result, nil
}

// Discover returns every video*.txt file under root, recursively and in
// lexical order. A missing root yields no files.
func Discover(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match("video*.txt", d.Name()); ok {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover transcripts: %w", err)
	}
	return found, nil
}
