package geomock

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

// WithLocalDynamoDB runs a test function with a local DynamoDB instance.
// It skips the test in short mode or when DynamoDB Local is not available.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	local := NewLocalDynamoDB(port)

	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}

	fn(local)
}

// WithGeoTable runs a test function against a fresh geo table in DynamoDB
// Local. The table is deleted when the function returns.
func WithGeoTable(t *testing.T, port int, fn func(local *LocalDynamoDB, table *ddbgeo.Table)) {
	WithLocalDynamoDB(t, port, func(local *LocalDynamoDB) {
		ctx := context.Background()
		tableName := NewTestTable(t.Name())

		table, err := local.CreateGeoTable(ctx, tableName)
		if err != nil {
			t.Fatalf("Failed to create test table %s: %v", tableName, err)
		}

		defer func() {
			if err := local.DeleteTable(ctx, tableName); err != nil {
				t.Errorf("Failed to cleanup table %s: %v", tableName, err)
			}
		}()

		fn(local, table)
	})
}

// NewTestTable generates a unique, valid table name for testing.
func NewTestTable(prefix string) string {
	prefix = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, prefix)
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
