package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

func validConfig() *Config {
	return &Config{
		SourceBucket:      "in",
		SourceKey:         "points.csv",
		DestinationBucket: "out",
		DestinationKey:    "points.json",
		HashKeyLength:     4,
		Workers:           1,
		InferTypes:        true,
		Region:            "us-west-2",
		LogLevel:          "info",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HASH_KEY_LENGTH", "WORKERS", "AWS_REGION", "INFER_TYPES", "LOG_LEVEL", "CREATE_LOCAL_FILE"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ddbgeo.DefaultHashKeyLength, cfg.HashKeyLength)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.True(t, cfg.InferTypes)
	assert.False(t, cfg.CreateLocalFile)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SOURCE_BUCKET", "in")
	t.Setenv("SOURCE_KEY", "points.csv")
	t.Setenv("DESTINATION_BUCKET", "out")
	t.Setenv("DESTINATION_KEY", "points.json")
	t.Setenv("HASH_KEY_LENGTH", "6")
	t.Setenv("LOCAL_FILE_PATH", "/tmp/points.json")
	t.Setenv("CREATE_LOCAL_FILE", "true")
	t.Setenv("WORKERS", "not-a-number")
	t.Setenv("STRICT", "1")
	t.Setenv("INFER_TYPES", "false")
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:4566")
	t.Setenv("TABLE_NAME", "points")
	t.Setenv("LOAD_TABLE", "yes")

	cfg := FromEnv()

	assert.Equal(t, "in", cfg.SourceBucket)
	assert.Equal(t, "points.csv", cfg.SourceKey)
	assert.Equal(t, "out", cfg.DestinationBucket)
	assert.Equal(t, "points.json", cfg.DestinationKey)
	assert.Equal(t, 6, cfg.HashKeyLength)
	assert.Equal(t, "/tmp/points.json", cfg.LocalFilePath)
	assert.True(t, cfg.CreateLocalFile)
	assert.Equal(t, 1, cfg.Workers, "invalid integers fall back to the default")
	assert.True(t, cfg.Strict)
	assert.False(t, cfg.InferTypes)
	assert.Equal(t, "http://localhost:4566", cfg.Endpoint)
	assert.Equal(t, "points", cfg.TableName)
	assert.True(t, cfg.LoadTable)
	assert.Equal(t, ddbgeo.PolicyFail, cfg.Policy())
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("SOURCE_BUCKET", "")
	t.Setenv("HASH_KEY_LENGTH", "")
	// godotenv keeps variables that are set, even to an empty value
	os.Unsetenv("SOURCE_BUCKET")
	os.Unsetenv("HASH_KEY_LENGTH")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SOURCE_BUCKET=from-file\nHASH_KEY_LENGTH=5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.SourceBucket)
	assert.Equal(t, 5, cfg.HashKeyLength)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"local source", func(c *Config) { c.SourceBucket, c.SourceKey, c.SourceFile = "", "", "points.csv" }, false},
		{"local output only", func(c *Config) {
			c.DestinationBucket, c.DestinationKey = "", ""
			c.LocalFilePath, c.CreateLocalFile = "out.json", true
		}, false},
		{"table load only", func(c *Config) {
			c.DestinationBucket, c.DestinationKey = "", ""
			c.TableName, c.LoadTable = "points", true
		}, false},
		{"max hash key length", func(c *Config) { c.HashKeyLength = ddbgeo.MaxHashKeyLength }, false},
		{"hash key length zero", func(c *Config) { c.HashKeyLength = 0 }, true},
		{"hash key length too large", func(c *Config) { c.HashKeyLength = ddbgeo.MaxHashKeyLength + 1 }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"missing source key", func(c *Config) { c.SourceKey = "" }, true},
		{"destination without key", func(c *Config) { c.DestinationKey = "" }, true},
		{"local file without path", func(c *Config) { c.CreateLocalFile = true }, true},
		{"load without table", func(c *Config) { c.LoadTable = true }, true},
		{"no output", func(c *Config) { c.DestinationBucket, c.DestinationKey = "", "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	cfg := validConfig()

	cfg.LogLevel = "DEBUG"
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)

	cfg.LogLevel = "warn"
	level, err = cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)
}

func TestSourceAndDestination(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.HasS3Source())
	assert.True(t, cfg.HasDestination())
	assert.Equal(t, ddbgeo.PolicySkip, cfg.Policy())

	cfg.SourceFile = "points.csv"
	cfg.DestinationKey = ""
	assert.False(t, cfg.HasS3Source())
	assert.False(t, cfg.HasDestination())
}
