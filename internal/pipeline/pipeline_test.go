package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
	"github.com/risafletcher/CSV-to-DynamoDB-Geo/geomock"
	"github.com/risafletcher/CSV-to-DynamoDB-Geo/internal/storage"
)

const input = "city,latitude,longitude\n" +
	"SF,37.7749,-122.4194\n" +
	"Nowhere,north,-1\n" +
	"London,51.5074,-0.1278\n"

// memory is an in-memory Source and Sink.
type memory struct {
	name string
	data []byte
	err  error
}

func (m *memory) Fetch(ctx context.Context) ([]byte, error) { return m.data, m.err }

func (m *memory) Store(ctx context.Context, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memory) String() string { return m.name }

func transformer() *ddbgeo.Transformer {
	return ddbgeo.NewTransformer(func(o *ddbgeo.TransformOptions) {
		o.NewID = geomock.SequentialIDs("pt")
	})
}

func TestRunner_Run(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	source := &memory{name: "input", data: []byte(input)}
	mirror := &storage.File{Path: filepath.Join(t.TempDir(), "out", "points.json")}
	destination := &memory{name: "s3://out/points.json"}

	summary, err := NewRunner(source, func(o *Options) {
		o.Mirror = mirror
		o.Destination = destination
		o.Transformer = transformer()
		o.Logger = zap.New(core)
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &Summary{
		Input:        3,
		Output:       2,
		Rejected:     1,
		BytesWritten: len(destination.data),
	}, summary)

	lines := strings.Split(strings.TrimSuffix(string(destination.data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"city":{"S":"SF"}`)
	assert.Contains(t, lines[1], `"city":{"S":"London"}`)

	mirrored, err := os.ReadFile(mirror.Path)
	require.NoError(t, err)
	assert.Equal(t, destination.data, mirrored)

	records, err := ddbgeo.Deserialize(destination.data)
	require.NoError(t, err)
	assert.Equal(t, "pt-1", records[0].RangeKey)

	var messages []string
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Equal(t, []string{
		"Fetching input",
		"Input read",
		"Transforming records",
		"Records transformed",
		"Writing output",
		"Output written",
		"Writing output",
		"Output written",
		"Some records were rejected",
		"Conversion complete",
	}, messages)

	written := logs.FilterMessage("Output written").All()
	require.Len(t, written, 2)
	assert.Equal(t, mirror.String(), written[0].ContextMap()["destination"])
	assert.Equal(t, "s3://out/points.json", written[1].ContextMap()["destination"])
	assert.Equal(t, 1, logs.FilterMessage("Some records were rejected").Len())
	assert.Equal(t, 1, logs.FilterMessage("Conversion complete").Len())
}

func TestRunner_S3(t *testing.T) {
	mock := geomock.NewMockS3(t)

	var uploaded []byte
	mock.GetObjectFunc = func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(input))}, nil
	}
	mock.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		var err error
		uploaded, err = io.ReadAll(params.Body)
		return &s3.PutObjectOutput{}, err
	}

	summary, err := NewRunner(&storage.S3Object{Client: mock, Bucket: "in", Key: "points.csv"}, func(o *Options) {
		o.Destination = &storage.S3Object{Client: mock, Bucket: "out", Key: "points.json"}
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Output)
	assert.Equal(t, 2, strings.Count(string(uploaded), "\n"))
}

func TestRunner_FetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		source *memory
		target error
	}{
		{"fetch fails", &memory{name: "input", err: errors.New("access denied")}, nil},
		{"missing columns", &memory{name: "input", data: []byte("a,b\n1,2\n")}, ddbgeo.ErrMissingColumn},
		{"malformed csv", &memory{name: "input", data: []byte("latitude,longitude\n\"1,2\n")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			destination := &memory{name: "out"}

			_, err := NewRunner(tt.source, func(o *Options) {
				o.Destination = destination
			}).Run(context.Background())

			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, "input", fetchErr.Source)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Nil(t, destination.data, "nothing is written after a fetch error")
		})
	}
}

func TestRunner_StrictParse(t *testing.T) {
	destination := &memory{name: "out"}

	_, err := NewRunner(&memory{name: "input", data: []byte(input)}, func(o *Options) {
		o.Destination = destination
		o.Transformer = ddbgeo.NewTransformer(func(o *ddbgeo.TransformOptions) {
			o.Policy = ddbgeo.PolicyFail
		})
	}).Run(context.Background())

	var parseErr *ddbgeo.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 3, parseErr.Line)
	assert.Nil(t, destination.data)
}

func TestRunner_StoreErrors(t *testing.T) {
	t.Run("mirror", func(t *testing.T) {
		destination := &memory{name: "s3://out/points.json"}

		_, err := NewRunner(&memory{name: "input", data: []byte(input)}, func(o *Options) {
			o.Mirror = &memory{name: "local.json", err: errors.New("disk full")}
			o.Destination = destination
		}).Run(context.Background())

		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "local.json", storeErr.Destination)
		assert.Nil(t, destination.data, "upload does not run after a failed mirror")
	})

	t.Run("upload", func(t *testing.T) {
		expected := errors.New("no such bucket")

		summary, err := NewRunner(&memory{name: "input", data: []byte(input)}, func(o *Options) {
			o.Destination = &memory{name: "s3://out/points.json", err: expected}
		}).Run(context.Background())

		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.ErrorIs(t, err, expected)
		assert.Equal(t, "s3://out/points.json", storeErr.Destination)
		assert.Contains(t, err.Error(), "store s3://out/points.json")
		assert.Equal(t, 2, summary.Output)
	})
}

func TestRunner_LoadTable(t *testing.T) {
	mock := geomock.NewMockClient(t)
	mock.BatchWriteItemFunc = func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
		assert.Len(t, params.RequestItems["points"], 2)
		return &dynamodb.BatchWriteItemOutput{}, nil
	}

	core, logs := observer.New(zapcore.InfoLevel)

	summary, err := NewRunner(&memory{name: "input", data: []byte(input)}, func(o *Options) {
		o.Loader = ddbgeo.NewTable("points").Loader(mock)
		o.Logger = zap.New(core)
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Loaded)

	assert.Equal(t, 1, logs.FilterMessage("Loading table").Len())
	loaded := logs.FilterMessage("Table loaded").All()
	require.Len(t, loaded, 1)
	assert.Equal(t, "points", loaded[0].ContextMap()["table"])
	assert.Equal(t, int64(2), loaded[0].ContextMap()["records"])

	t.Run("failure", func(t *testing.T) {
		mock := geomock.NewMockClient(t)
		mock.BatchWriteItemFunc = func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			return nil, errors.New("throttled")
		}

		_, err := NewRunner(&memory{name: "input", data: []byte(input)}, func(o *Options) {
			o.Loader = ddbgeo.NewTable("points").Loader(mock)
		}).Run(context.Background())

		var storeErr *StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "table points", storeErr.Destination)
	})
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(&memory{name: "input", data: []byte(input)}, func(o *Options) {
		o.Destination = &memory{name: "out"}
	}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
