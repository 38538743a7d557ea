// Command lesson-upload uploads a local tree of lesson videos to the video
// bucket and writes the sentinel object that starts transcription.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/lesson-transcriber/internal/config"
	"github.com/fpang/lesson-transcriber/internal/lambdaboot"
	"github.com/fpang/lesson-transcriber/internal/logging"
	"github.com/fpang/lesson-transcriber/internal/objectstore"
	"github.com/fpang/lesson-transcriber/internal/pipeline"
	"github.com/fpang/lesson-transcriber/internal/store"
)

// CLI flags
var (
	envFileFlag   string
	dryRunFlag    bool
	regionFlag    string
	accessKeyFlag string
	secretKeyFlag string
	jsonFlag      bool
)

// rootCmd is the main Cobra command for the lesson-upload CLI.
var rootCmd = &cobra.Command{
	Use:   "lesson-upload <directory>",
	Short: "Upload lesson videos for transcription",
	Long: `lesson-upload walks a directory of lesson videos laid out as
week##/lesson##/video##.mp4, uploads each video to VIDEO_BUCKET, and then
writes done.txt, which starts the transcription workflow.

The first path that breaks the layout stops the upload. Failed uploads are
logged and do not stop the batch.

Required environment (or .env file):
  VIDEO_BUCKET        bucket receiving the videos
  TRANSCRIPT_BUCKET   bucket receiving the transcripts

Examples:
  lesson-upload ./course
  lesson-upload ./course --dry-run
  lesson-upload ./course --env-file prod.env --region us-west-2
  lesson-upload status batch-3f2a9c...`,
	Args: cobra.ExactArgs(1),
	Run:  runUpload,
}

var statusCmd = &cobra.Command{
	Use:   "status <batchId>",
	Short: "Show the recorded stage runs of a batch",
	Long: `status reads the run ledger (RUN_TABLE_NAME) and prints one line per
stage invocation recorded for the batch.`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "Environment file to load (default: .env if present)")
	rootCmd.PersistentFlags().StringVar(&regionFlag, "region", "", "AWS region (default: from the AWS config chain)")
	rootCmd.PersistentFlags().StringVar(&accessKeyFlag, "access-key", "", "AWS access key ID (requires --secret-key)")
	rootCmd.PersistentFlags().StringVar(&secretKeyFlag, "secret-key", "", "AWS secret access key")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Validate paths and derive keys without uploading")
	rootCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the upload report as JSON")
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration and logging. Any failure exits 1.
func loadConfig(required ...string) config.Config {
	var files []string
	if envFileFlag != "" {
		files = append(files, envFileFlag)
	}
	cfg, err := config.Load(files...)
	logging.Init(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(required...); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

// loadAWS builds the AWS config, honouring --region and static credentials.
func loadAWS(ctx context.Context) aws.Config {
	var opts []func(*awsconfig.LoadOptions) error
	if regionFlag != "" {
		opts = append(opts, awsconfig.WithRegion(regionFlag))
	}
	if accessKeyFlag != "" || secretKeyFlag != "" {
		if accessKeyFlag == "" || secretKeyFlag == "" {
			log.Fatal().Msg("--access-key and --secret-key must be given together")
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyFlag, secretKeyFlag, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	return cfg
}

func runUpload(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig(config.EnvVideoBucket, config.EnvTranscriptBucket)
	root := args[0]

	var (
		objects objectstore.Store
		opts    []pipeline.Option
	)
	if dryRunFlag {
		objects = objectstore.NewMemory(cfg.VideoBucket, cfg.TranscriptBucket)
		log.Info().Msg("Dry run: nothing is uploaded")
	} else {
		awsCfg := loadAWS(ctx)
		objects = objectstore.NewS3(s3.NewFromConfig(awsCfg))
		if runs := lambdaboot.InitRunStore(awsCfg, cfg.RunTable); runs != nil {
			opts = append(opts, pipeline.WithRunStore(runs))
		}
	}

	uploader := pipeline.NewUploader(cfg, objects, opts...)
	if err := uploader.CheckTargets(ctx, root); err != nil {
		log.Fatal().Err(err).Str("root", root).Msg("Invalid upload target")
	}

	start := time.Now()
	report, err := uploader.Run(ctx, root)
	if err != nil {
		log.Fatal().Err(err).Str("root", root).Msg("Upload failed")
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("Lesson Upload")
	fmt.Println("============================================")
	fmt.Printf("Directory: %s\n", root)
	fmt.Printf("Bucket:    %s\n", cfg.VideoBucket)
	fmt.Printf("Batch:     %s\n", report.BatchID)
	fmt.Printf("Uploaded:  %d\n", len(report.Processed))
	fmt.Printf("Failed:    %d\n", len(report.Failed))
	fmt.Printf("Duration:  %s\n", time.Since(start).Round(time.Millisecond))
	for _, k := range report.Failed {
		fmt.Printf("   FAILED: %s\n", k)
	}
	fmt.Println("--------------------------------------------")
	fmt.Println(report.Message)
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig(config.EnvRunTable)
	awsCfg := loadAWS(ctx)
	runs := store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.RunTable)

	records, err := runs.GetRuns(ctx, args[0])
	if err != nil {
		log.Fatal().Err(err).Str("batchId", args[0]).Msg("Failed to read run ledger")
	}
	if len(records) == 0 {
		fmt.Printf("No runs recorded for %s\n", args[0])
		return
	}

	fmt.Printf("Batch %s\n", args[0])
	for _, r := range records {
		status := "ok"
		if r.Error != "" {
			status = "error: " + r.Error
		}
		fmt.Printf("  %-10s %s  processed=%d failed=%d  %s  (%s)\n",
			r.Stage,
			r.StartedAt.Local().Format(time.DateTime),
			len(r.Processed), len(r.Failed),
			r.Message, status)
	}
}
