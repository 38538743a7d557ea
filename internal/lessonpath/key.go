package lessonpath

import (
	"path/filepath"
	"strings"
)

const (
	VideoExt      = ".mp4"
	TranscriptExt = ".txt"

	weekPrefix = "week"
)

// Path is a filesystem or key path broken into its non-empty segments.
type Path []string

// ParsePath splits p on both the OS separator and '/', dropping empty and
// "." segments so "/a//b/./c" and "a/b/c" compare equal.
func ParsePath(p string) Path {
	var segs Path
	for _, s := range strings.Split(toSlash(p), "/") {
		if s == "" || s == "." {
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// FromLast returns the suffix of p starting at the last segment matching pred.
func (p Path) FromLast(pred func(string) bool) (Path, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if pred(p[i]) {
			return p[i:], true
		}
	}
	return nil, false
}

// Key joins the segments with '/' as an object key.
func (p Path) Key() string {
	return strings.Join(p, "/")
}

// isWeekSegment matches week directories: "week" followed by digits only.
func isWeekSegment(s string) bool {
	digits, ok := strings.CutPrefix(s, weekPrefix)
	if !ok || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ExtractKey derives the storage key for a local video path: everything
// from the week## directory nearest the file onward. Directories above it,
// including ones named like weekly-uploads or week9, never reach the key,
// and re-deriving a key from an already derived key returns it unchanged.
func ExtractKey(fullPath string) (string, bool) {
	suffix, ok := ParsePath(fullPath).FromLast(isWeekSegment)
	if !ok {
		return "", false
	}
	return suffix.Key(), true
}

// TranscriptToVideoKey maps week1/lesson1/video1.txt to
// week1/lesson1/video1.mp4. Only the final extension is replaced; keys
// without a .txt suffix are returned unchanged.
func TranscriptToVideoKey(key string) string {
	return swapExt(key, TranscriptExt, VideoExt)
}

// VideoToTranscriptKey is the inverse of TranscriptToVideoKey.
func VideoToTranscriptKey(key string) string {
	return swapExt(key, VideoExt, TranscriptExt)
}

func swapExt(key, from, to string) string {
	base, ok := strings.CutSuffix(key, from)
	if !ok {
		return key
	}
	return base + to
}

func toSlash(p string) string {
	if filepath.Separator != '/' {
		p = strings.ReplaceAll(p, string(filepath.Separator), "/")
	}
	return p
}
