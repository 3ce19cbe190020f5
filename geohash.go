package ddbgeo

import (
	"strconv"

	"github.com/golang/geo/s2"
)

// GeoCellID is the id of the S2 leaf cell containing a point, stored as a
// signed 64-bit integer. Cells on the last two cube faces have the top bit
// set and are therefore negative.
type GeoCellID int64

// HashKey is the partition key derived from a GeoCellID by keeping its most
// significant decimal digits.
type HashKey int64

const (
	// DefaultHashKeyLength is the number of significant digits kept by DeriveHashKey.
	DefaultHashKeyLength = 4

	// MaxHashKeyLength is the widest hash key that still truncates a positive cell id.
	MaxHashKeyLength = 18

	// LeafLevel is the S2 level of the cells returned by ComputeCellID.
	LeafLevel = s2.MaxLevel
)

// ComputeCellID returns the id of the leaf cell containing the point at the
// given coordinates, in degrees. The result is deterministic for any input,
// including coordinates outside the valid latitude and longitude ranges.
func ComputeCellID(latitude, longitude float64) GeoCellID {
	latLng := s2.LatLngFromDegrees(latitude, longitude)
	return GeoCellID(s2.CellIDFromLatLng(latLng))
}

// ParentCellID returns the ancestor of id at the given level. Levels outside
// [0, LeafLevel] are clamped. Ids at coarser levels are prefixes of the leaf
// id along the Hilbert curve, so neighbouring cells stay numerically close.
func ParentCellID(id GeoCellID, level int) GeoCellID {
	switch {
	case level < 0:
		level = 0
	case level > LeafLevel:
		level = LeafLevel
	}
	return GeoCellID(s2.CellID(uint64(id)).Parent(level))
}

// Level returns the S2 level of the cell.
func (id GeoCellID) Level() int {
	return s2.CellID(uint64(id)).Level()
}

// String returns the decimal representation of the id, sign included.
func (id GeoCellID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// String returns the decimal representation of the key, sign included.
func (k HashKey) String() string {
	return strconv.FormatInt(int64(k), 10)
}

// DeriveHashKey keeps the hashKeyLength most significant decimal digits of
// id. The sign of a negative id does not count as a digit. Ids that already
// have hashKeyLength digits or fewer are returned unchanged. Lengths below
// one are treated as one.
//
//	DeriveHashKey(12345, 4)  // 1234
//	DeriveHashKey(-12345, 4) // -1234
//	DeriveHashKey(12, 4)     // 12
func DeriveHashKey(id GeoCellID, hashKeyLength int) HashKey {
	if hashKeyLength < 1 {
		hashKeyLength = 1
	}

	digits := hashKeyLength
	if id < 0 {
		// "-" is part of the string but not a significant digit
		digits++
	}

	exponent := len(id.String()) - digits
	if exponent <= 0 {
		return HashKey(id)
	}

	// exponent is at most 18 here, so the denominator fits in an int64
	denominator := int64(1)
	for range exponent {
		denominator *= 10
	}

	return HashKey(int64(id) / denominator)
}
