package ddbgeo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

const byteOrderMark = "\ufeff"

// ReadRecords reads CSV text with a header row and returns one RawRecord per
// data row. The header must name the latitude and longitude columns. Rows
// shorter than the header omit the missing fields; extra cells are ignored.
func ReadRecords(r io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: input has no header row", ErrMissingColumn)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for _, required := range []string{FieldLatitude, FieldLongitude} {
		if !slices.Contains(header, required) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var records []RawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records)+1, err)
		}

		line, _ := reader.FieldPos(0)
		n := min(len(row), len(header))

		records = append(records, RawRecord{
			Line:   line,
			Fields: header[:n:n],
			Values: row[:n:n],
		})
	}

	return records, nil
}
