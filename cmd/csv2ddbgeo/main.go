// Command csv2ddbgeo converts a CSV of points into DynamoDB JSON for a
// geo-indexed table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
	"github.com/risafletcher/CSV-to-DynamoDB-Geo/internal/config"
	"github.com/risafletcher/CSV-to-DynamoDB-Geo/internal/pipeline"
	"github.com/risafletcher/CSV-to-DynamoDB-Geo/internal/storage"
)

var (
	// Logger
	logger = zap.NewNop()

	// Verbose overrides the configured log level with debug
	verbose bool
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "csv2ddbgeo",
		Short: "Convert a CSV of points into DynamoDB JSON with geo keys",
		Long: `csv2ddbgeo reads a CSV with latitude and longitude columns and writes one
DynamoDB JSON item per row, ready for an S3 table import.

Every item gets a geohash (the S2 cell id of the point), a hashKey (its
leading digits), a unique rangeKey and a GeoJSON point.

Configuration comes from the environment (and a .env file); flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := cfg.Level()
			if err != nil {
				return fmt.Errorf("%w: %v", config.ErrInvalid, err)
			}
			if verbose {
				level = zapcore.DebugLevel
			}

			logger, err = newLogger(level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.SourceBucket, "source-bucket", cfg.SourceBucket, "S3 bucket of the input CSV (or set SOURCE_BUCKET env)")
	flags.StringVar(&cfg.SourceKey, "source-key", cfg.SourceKey, "S3 key of the input CSV (or set SOURCE_KEY env)")
	flags.StringVar(&cfg.SourceFile, "source-file", cfg.SourceFile, "Local input CSV, instead of S3 (or set SOURCE_FILE env)")
	flags.StringVar(&cfg.DestinationBucket, "destination-bucket", cfg.DestinationBucket, "S3 bucket for the output (or set DESTINATION_BUCKET env)")
	flags.StringVar(&cfg.DestinationKey, "destination-key", cfg.DestinationKey, "S3 key for the output (or set DESTINATION_KEY env)")
	flags.IntVar(&cfg.HashKeyLength, "hash-key-length", cfg.HashKeyLength, "Digits of the cell id kept in the hash key")
	flags.StringVar(&cfg.LocalFilePath, "local-file", cfg.LocalFilePath, "Path of a local copy of the output")
	flags.BoolVar(&cfg.CreateLocalFile, "create-local-file", cfg.CreateLocalFile, "Write the local copy of the output")
	flags.BoolVar(&cfg.LoadTable, "load-table", cfg.LoadTable, "Also write the items straight into the table")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Records transformed in parallel")
	flags.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail on the first record with unparsable coordinates")
	flags.BoolVar(&cfg.InferTypes, "infer-types", cfg.InferTypes, "Type CSV values as numbers, booleans and nulls")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&cfg.Region, "region", cfg.Region, "AWS region (or set AWS_REGION env)")
	persistent.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Custom AWS endpoint (or set AWS_ENDPOINT_URL env)")
	persistent.StringVar(&cfg.TableName, "table", cfg.TableName, "DynamoDB table name (or set TABLE_NAME env)")
	persistent.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	persistent.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(newCreateTableCmd(cfg))

	return rootCmd
}

func newCreateTableCmd(cfg *config.Config) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "create-table",
		Short: "Create the DynamoDB table with the geo key schema",
		Long: `create-table creates a table keyed by hashKey (number) and rangeKey
(string), with a geohash-index global index on hashKey and geohash.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TableName == "" {
				return fmt.Errorf("%w: --table (or TABLE_NAME) is required", config.ErrInvalid)
			}

			awsCfg, err := storage.LoadAWSConfig(cmd.Context(), cfg.Region)
			if err != nil {
				return err
			}
			return createTable(cmd.Context(), storage.NewDynamoDBClient(awsCfg, cfg.Endpoint), cfg.TableName, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the table to become active")

	return cmd
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}

// runConvert runs one conversion with the configured source and outputs
func runConvert(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	runner, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Debug("Summary", zap.Any("summary", summary))
	return nil
}

func newRunner(ctx context.Context, cfg *config.Config) (*pipeline.Runner, error) {
	var (
		awsCfg aws.Config
		err    error
	)
	if cfg.HasS3Source() || cfg.HasDestination() || cfg.LoadTable {
		if awsCfg, err = storage.LoadAWSConfig(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}

	var s3Client storage.S3API
	if cfg.HasS3Source() || cfg.HasDestination() {
		s3Client = storage.NewS3Client(awsCfg, cfg.Endpoint)
	}

	var source pipeline.Source = &storage.File{Path: cfg.SourceFile}
	if cfg.HasS3Source() {
		source = &storage.S3Object{Client: s3Client, Bucket: cfg.SourceBucket, Key: cfg.SourceKey}
	}

	table := ddbgeo.NewTable(cfg.TableName)

	transformer := ddbgeo.NewTransformer(func(o *ddbgeo.TransformOptions) {
		o.HashKeyLength = cfg.HashKeyLength
		o.Workers = cfg.Workers
		o.Policy = cfg.Policy()
		o.InferTypes = cfg.InferTypes
		o.Table = table
		o.Logger = logger
	})

	return pipeline.NewRunner(source, func(o *pipeline.Options) {
		o.Transformer = transformer
		o.Logger = logger

		if cfg.CreateLocalFile {
			o.Mirror = &storage.File{Path: cfg.LocalFilePath}
		}
		if cfg.HasDestination() {
			o.Destination = &storage.S3Object{Client: s3Client, Bucket: cfg.DestinationBucket, Key: cfg.DestinationKey}
		}
		if cfg.LoadTable {
			o.Loader = table.Loader(storage.NewDynamoDBClient(awsCfg, cfg.Endpoint))
		}
	}), nil
}

// createTable creates the geo table. An existing table is not an error.
func createTable(ctx context.Context, client ddbgeo.DynamoDBClient, tableName string, timeout time.Duration) error {
	table := ddbgeo.NewTable(tableName)

	logger.Info("Creating table", zap.String("table", tableName))
	err := table.Create(ctx, client, timeout)
	if errors.Is(err, ddbgeo.ErrTableExists) {
		logger.Warn("Table already exists", zap.String("table", tableName))
		return nil
	} else if err != nil {
		return err
	}

	logger.Info("Table is active", zap.String("table", tableName), zap.String("index", table.GeohashIndexName))
	return nil
}
