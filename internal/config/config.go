// Package config loads the converter configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all converter configuration
type Config struct {
	// Input
	SourceBucket string
	SourceKey    string
	SourceFile   string // local CSV, used instead of S3 when set

	// Output
	DestinationBucket string
	DestinationKey    string
	LocalFilePath     string
	CreateLocalFile   bool

	// Transformation
	HashKeyLength int
	Workers       int
	Strict        bool // fail on the first record with unparsable coordinates
	InferTypes    bool

	// AWS configuration
	Region    string
	Endpoint  string // custom endpoint, e.g. LocalStack or DynamoDB Local
	TableName string
	LoadTable bool

	// Logging
	LogLevel string
}

// Load reads the given env files, or .env when none are given, and then
// builds the configuration from the environment. Missing env files are
// ignored. The result is not validated, since flags may still override it.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return FromEnv(), nil
}

// FromEnv builds the configuration from environment variables
func FromEnv() *Config {
	return &Config{
		SourceBucket: getEnv("SOURCE_BUCKET", ""),
		SourceKey:    getEnv("SOURCE_KEY", ""),
		SourceFile:   getEnv("SOURCE_FILE", ""),

		DestinationBucket: getEnv("DESTINATION_BUCKET", ""),
		DestinationKey:    getEnv("DESTINATION_KEY", ""),
		LocalFilePath:     getEnv("LOCAL_FILE_PATH", ""),
		CreateLocalFile:   getEnvBool("CREATE_LOCAL_FILE", false),

		HashKeyLength: getEnvInt("HASH_KEY_LENGTH", ddbgeo.DefaultHashKeyLength),
		Workers:       getEnvInt("WORKERS", 1),
		Strict:        getEnvBool("STRICT", false),
		InferTypes:    getEnvBool("INFER_TYPES", true),

		Region:    getEnv("AWS_REGION", "us-west-2"),
		Endpoint:  getEnv("AWS_ENDPOINT_URL", ""),
		TableName: getEnv("TABLE_NAME", ""),
		LoadTable: getEnvBool("LOAD_TABLE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks that the configuration describes a runnable conversion
func (c *Config) Validate() error {
	if c.HashKeyLength < 1 || c.HashKeyLength > ddbgeo.MaxHashKeyLength {
		return fmt.Errorf("%w: hash key length must be between 1 and %d, got %d", ErrInvalid, ddbgeo.MaxHashKeyLength, c.HashKeyLength)
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}

	if c.SourceFile == "" && (c.SourceBucket == "" || c.SourceKey == "") {
		return fmt.Errorf("%w: SOURCE_BUCKET and SOURCE_KEY (or SOURCE_FILE) are required", ErrInvalid)
	}

	if (c.DestinationBucket == "") != (c.DestinationKey == "") {
		return fmt.Errorf("%w: DESTINATION_BUCKET and DESTINATION_KEY must be set together", ErrInvalid)
	}

	if c.CreateLocalFile && c.LocalFilePath == "" {
		return fmt.Errorf("%w: LOCAL_FILE_PATH is required with CREATE_LOCAL_FILE", ErrInvalid)
	}

	if c.LoadTable && c.TableName == "" {
		return fmt.Errorf("%w: TABLE_NAME is required with LOAD_TABLE", ErrInvalid)
	}

	if !c.HasDestination() && !c.CreateLocalFile && !c.LoadTable {
		return fmt.Errorf("%w: no output configured; set a destination, a local file or a table load", ErrInvalid)
	}

	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return nil
}

// HasS3Source reports whether the input is read from S3
func (c *Config) HasS3Source() bool {
	return c.SourceFile == ""
}

// HasDestination reports whether the output is uploaded to S3
func (c *Config) HasDestination() bool {
	return c.DestinationBucket != "" && c.DestinationKey != ""
}

// Level parses LogLevel
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(strings.ToLower(c.LogLevel))
}

// Policy returns the parse policy selected by Strict
func (c *Config) Policy() ddbgeo.ParsePolicy {
	if c.Strict {
		return ddbgeo.PolicyFail
	}
	return ddbgeo.PolicySkip
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
