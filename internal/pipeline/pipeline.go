// Package pipeline runs a whole conversion: fetch the CSV, transform it,
// serialize the result and store it.
package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

// Source provides the input CSV.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// Sink receives the serialized output.
type Sink interface {
	Store(ctx context.Context, data []byte) error
	String() string
}

// TableLoader writes records straight into a table.
type TableLoader interface {
	Load(ctx context.Context, records []ddbgeo.TransformedRecord) (int, error)
	TableName() string
}

var _ TableLoader = (*ddbgeo.Loader)(nil)

// FetchError is returned when the input cannot be retrieved or read as CSV.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreError is returned when the output cannot be written to a destination.
type StoreError struct {
	Destination string
	Err         error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Destination, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Summary describes a finished run.
type Summary struct {
	Input        int // records read from the CSV
	Output       int // records serialized
	Rejected     int // records dropped for unparsable coordinates
	Loaded       int // records written to the table
	BytesWritten int // size of the serialized output
}

// Options contains the optional stages of a run.
type Options struct {
	Mirror      Sink        // Local copy of the output, written before the upload
	Destination Sink        // Upload target
	Loader      TableLoader // Direct table load, after the upload
	Transformer *ddbgeo.Transformer
	Logger      *zap.Logger
}

func (o *Options) apply(opts []func(*Options)) {
	for _, opt := range opts {
		opt(o)
	}
}

// Runner runs conversions from a single source.
type Runner struct {
	source Source
	opts   Options
}

// NewRunner creates a Runner reading from source. Without a Transformer
// option, records are transformed with the library defaults.
func NewRunner(source Source, opts ...func(*Options)) *Runner {
	options := Options{
		Transformer: ddbgeo.NewTransformer(),
		Logger:      zap.NewNop(),
	}
	options.apply(opts)

	return &Runner{source: source, opts: options}
}

// Run performs the conversion. Any failure aborts the run; stores are
// awaited, so a failed upload is reported as a StoreError.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	log := r.opts.Logger
	summary := &Summary{}

	log.Info("Fetching input", zap.Stringer("source", r.source))
	data, err := r.source.Fetch(ctx)
	if err != nil {
		return summary, &FetchError{Source: r.source.String(), Err: err}
	}

	records, err := ddbgeo.ReadRecords(bytes.NewReader(data))
	if err != nil {
		return summary, &FetchError{Source: r.source.String(), Err: err}
	}
	summary.Input = len(records)
	log.Info("Input read", zap.Int("records", len(records)), zap.Int("bytes", len(data)))

	log.Info("Transforming records", zap.Int("records", len(records)))
	result, err := r.opts.Transformer.Transform(ctx, records)
	if err != nil {
		return summary, fmt.Errorf("failed to transform records: %w", err)
	}
	summary.Output = len(result.Records)
	summary.Rejected = len(result.Rejected)
	log.Info("Records transformed", zap.Int("records", summary.Output), zap.Int("rejected", summary.Rejected))

	output, err := ddbgeo.Serialize(result.Records)
	if err != nil {
		return summary, fmt.Errorf("failed to serialize records: %w", err)
	}
	summary.BytesWritten = len(output)

	for _, sink := range []Sink{r.opts.Mirror, r.opts.Destination} {
		if sink == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		log.Info("Writing output", zap.Stringer("destination", sink), zap.Int("bytes", len(output)))
		if err := sink.Store(ctx, output); err != nil {
			return summary, &StoreError{Destination: sink.String(), Err: err}
		}
		log.Info("Output written", zap.Stringer("destination", sink))
	}

	if r.opts.Loader != nil {
		log.Info("Loading table", zap.String("table", r.opts.Loader.TableName()), zap.Int("records", len(result.Records)))

		summary.Loaded, err = r.opts.Loader.Load(ctx, result.Records)
		if err != nil {
			return summary, &StoreError{Destination: "table " + r.opts.Loader.TableName(), Err: err}
		}
		log.Info("Table loaded", zap.String("table", r.opts.Loader.TableName()), zap.Int("records", summary.Loaded))
	}

	if summary.Rejected > 0 {
		log.Warn("Some records were rejected", zap.Int("rejected", summary.Rejected), zap.Int("input", summary.Input))
	}

	log.Info("Conversion complete",
		zap.Int("input", summary.Input),
		zap.Int("output", summary.Output),
		zap.Int("rejected", summary.Rejected),
		zap.Int("loaded", summary.Loaded),
		zap.Int("bytes", summary.BytesWritten))

	return summary, nil
}
