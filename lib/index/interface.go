package index

import (
	"fmt"
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Core Types
// --------------------------------------------------------------------------

// Entry is a single key-value pair. Keys are totally ordered uint64 values;
// the value is an opaque 64-bit payload (row id, offset, ...).
type Entry struct {
	Key   uint64
	Value uint64
}

// NotFound is the sentinel for callers that need absence as a flat uint64.
// No operation in this module returns it: the (value, ok) form of Lookup is
// authoritative, and NotFound exists only for that flat representation.
const NotFound uint64 = math.MaxUint64

// Implementation identifies an engine type.
type Implementation string

const (
	ImplDPGM   Implementation = "dpgm"
	ImplLITree Implementation = "litree"
	ImplHybrid Implementation = "hybrid"
)

// Feature represents engine capabilities as bit flags
type Feature uint64

const (
	FeatureInsert   Feature = 1 << iota // Support for single-key Insert
	FeatureErase                        // Support for single-key Erase
	FeatureRange                        // Support for RangeSum / AscendRange
	FeatureBulkLoad                     // Support for merging bulk loads
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureErase:
		return "Erase"
	case FeatureRange:
		return "Range"
	case FeatureBulkLoad:
		return "BulkLoad"
	default:
		return "Unknown"
	}
}

// IndexInfo carries metadata about an engine instance.
// It is not guaranteed that all fields are filled in or that the information
// is up-to-date!
type IndexInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	IndexType         Implementation `json:"index_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Index Interfaces
// --------------------------------------------------------------------------

// OrderedIndex is the interface for ordered-key index engines. Implementations
// must keep at most one value per live key and must report absence through the
// ok return value, never through an in-band error.
//
// Unless documented otherwise by the implementation, OrderedIndex instances
// are not safe for concurrent mutation; the composite serializes access.
type OrderedIndex interface {

	// Build bulk-initializes the index from an entry set, replacing any prior
	// contents. The entries need not be sorted; implementations sort as
	// needed. parallelism is a hint for implementations that can split the
	// build. Returns the elapsed wall time.
	Build(entries []Entry, parallelism int) (time.Duration, error)

	// Lookup retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Lookup(key uint64) (value uint64, ok bool)

	// RangeSum returns the sum of all values for keys in [lo, hi].
	RangeSum(lo, hi uint64) (sum uint64)

	// AscendRange calls fn for every entry with key in [lo, hi] in ascending
	// key order. Iteration stops early when fn returns false.
	AscendRange(lo, hi uint64, fn func(Entry) bool)

	// Insert stores or overwrites the value for a key.
	Insert(key, value uint64) error

	// Erase removes a key. It returns whether the key was present.
	Erase(key uint64) bool

	// Size returns the number of live keys.
	Size() int

	// Name returns the engine name.
	Name() string

	// SupportsFeature checks if the engine supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|).
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns metadata about the engine instance.
	GetInfo() (info IndexInfo)

	// Close releases any resources held by the engine.
	Close() (err error)
}

// BulkLoadable is implemented by engines that can absorb a sorted batch.
// BulkLoad MERGES: entries for keys not present in the batch are preserved,
// and batch entries overwrite existing values for the same key.
type BulkLoadable interface {
	// BulkLoad merges the sorted (ascending by key) batch into the index.
	BulkLoad(sorted []Entry) error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	case RetCShutdown:
		errorCode = "Shutdown"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("IndexError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                       // 1: Operation failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the engine.
	RetCInvalidOperation                    // 3: Invalid operation or configuration.
	RetCShutdown                            // 4: Operation rejected because the index is shut down.
)
