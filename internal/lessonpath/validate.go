// Package lessonpath holds the naming convention shared by every pipeline
// stage: where a lesson video may live on disk, which storage key it gets,
// and how a transcript key maps back to the video it was produced from.
//
// Local layout:  <anything>/week##/lesson##/video##.mp4
// Video key:     week##/lesson##/video##.mp4
// Transcript key: week##/lesson##/video##.txt
package lessonpath

import (
	"fmt"
	"regexp"
)

// Stage identifies which structural check rejected a path.
type Stage int

const (
	StageVideo Stage = iota
	StageLesson
	StageWeek
)

func (s Stage) String() string {
	switch s {
	case StageVideo:
		return "video"
	case StageLesson:
		return "lesson"
	case StageWeek:
		return "week"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ValidationError reports the first structural check a path failed.
type ValidationError struct {
	Path   string
	Stage  Stage
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid path format %s. %s", e.Path, e.Reason)
}

type check struct {
	stage   Stage
	pattern *regexp.Regexp
	reason  string
}

// Checks run in this order and each one is an independent pattern test.
// A path with a bad lesson directory and a bad week directory reports the
// lesson problem only.
var checks = []check{
	{
		stage:   StageVideo,
		pattern: regexp.MustCompile(`(?:^|/)video\d+\.mp4$`),
		reason:  "Video id must be strictly numbered i.e **/video##.mp4",
	},
	{
		stage:   StageLesson,
		pattern: regexp.MustCompile(`(?:^|/)lesson\d+/video\d+\.mp4$`),
		reason:  "Videos must be strictly within 'lesson##' directory i.e. **/lesson##/video##.mp4",
	},
	{
		stage:   StageWeek,
		pattern: regexp.MustCompile(`(?:^|/)week\d+/lesson\d+/video\d+\.mp4$`),
		reason:  "Videos must be strictly within 'week##/lesson##' directory i.e. */week##/lesson##/video##.mp4",
	},
}

// Validate checks a video path against the week##/lesson##/video##.mp4
// convention. It returns nil for a valid path and a *ValidationError
// naming the first failing stage otherwise.
func Validate(path string) error {
	slashed := toSlash(path)
	for _, c := range checks {
		if !c.pattern.MatchString(slashed) {
			return &ValidationError{Path: path, Stage: c.stage, Reason: c.reason}
		}
	}
	return nil
}
