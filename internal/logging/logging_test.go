package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"info":  zerolog.InfoLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStartupLoggerLog(t *testing.T) {
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = original })

	NewStartupLogger("cleanup-lambda").
		S3Bucket("videoBucket", "lesson-videos").
		DynamoTable("runs", "").
		StateMachine("transcription", "").
		Config("concurrency", "4").
		InitDuration(25 * time.Millisecond).
		Log()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse startup log: %v\n%s", err, buf.String())
	}

	if doc["message"] != "Lambda cold start complete" {
		t.Errorf("unexpected message %v", doc["message"])
	}
	lambdaDict, ok := doc["lambda"].(map[string]interface{})
	if !ok || lambdaDict["name"] != "cleanup-lambda" {
		t.Errorf("missing lambda identity: %v", doc["lambda"])
	}
	resources, ok := doc["resources"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing resources: %v", doc)
	}
	if _, ok := resources["dynamoTables"]; ok {
		t.Error("empty table name should not be logged")
	}
	if _, ok := resources["stateMachines"]; ok {
		t.Error("empty state machine should not be logged")
	}
	buckets, ok := resources["s3Buckets"].(map[string]interface{})
	if !ok || buckets["videoBucket"] != "lesson-videos" {
		t.Errorf("unexpected s3Buckets: %v", resources["s3Buckets"])
	}
}
