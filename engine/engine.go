// Package engine defines the pluggable allocator engine abstraction: the
// contract an allocation strategy must implement, the segment-source
// capability it draws backing memory from, and a registry that resolves
// engines by name.
package engine

import (
	"unsafe"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// SegmentSource supplies raw backing memory to an engine and reclaims it.
// The engine must track the actual size returned by AcquireSegment, which
// may exceed the requested size (sources typically round up to whole pages).
type SegmentSource interface {
	// AcquireSegment obtains a raw memory extent of at least size bytes.
	// It returns a nil pointer and zero size when the source is exhausted.
	AcquireSegment(size int) (unsafe.Pointer, int)
	// ReleaseSegment returns a previously acquired extent to the source.
	// A nil pointer is a no-op.
	ReleaseSegment(ptr unsafe.Pointer)
}

// Engine is a single allocation strategy instance operating on segments
// drawn from its SegmentSource.
type Engine interface {
	// Alloc returns a pointer to at least size bytes aligned to alignment.
	// An alignment of zero selects the engine's default. The error is
	// non-nil exactly when the returned pointer is nil.
	Alloc(size int, alignment uint) (unsafe.Pointer, error)
	// Free returns a pointer previously obtained from Alloc. Freeing a nil
	// pointer is a no-op. An unknown or already-freed pointer produces an
	// error and leaves the engine state untouched.
	Free(ptr unsafe.Pointer) error
	// Finalize releases every segment held by the engine. It returns an
	// error when live allocations remain; the segments are released
	// regardless.
	Finalize() error

	// AddStatistics sums the engine's current usage into stats.
	AddStatistics(stats *Statistics)
	// BuildStatsString writes a JSON object describing the engine's
	// segments and allocations, for diagnostics.
	BuildStatsString(writer *jwriter.Writer)
}

// Config carries the construction parameters handed to a Factory.
type Config struct {
	// ThreadSafe requests an engine that may be called from multiple
	// goroutines. When false the consumer guarantees external
	// synchronization.
	ThreadSafe bool
	// Source supplies backing memory. Required.
	Source SegmentSource
	// Logger receives engine diagnostics. Nil selects slog.Default().
	Logger *slog.Logger
}

// Factory instantiates engines of a particular strategy.
type Factory interface {
	New(config Config) (Engine, error)
}
