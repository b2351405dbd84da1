package stagebuf

// Handle carries the per-file allocation policy flags consulted by the pool.
// It is read-only to this package. A nil Handle is treated as carrying no
// assertions.
type Handle interface {
	// AssertNoAccelBuffers reports the caller-supplied assertion that
	// buffers used with this handle never reside in accelerator memory.
	AssertNoAccelBuffers() bool
}

// HandleFlags is a bitset implementation of Handle for callers that do not
// have a richer file handle type.
type HandleFlags uint32

const (
	// HandleAssertNoAccelBuffers asserts that buffers used with this handle
	// never reside in accelerator memory, letting classification skip the
	// runtime query.
	HandleAssertNoAccelBuffers HandleFlags = 1 << iota
)

func (f HandleFlags) AssertNoAccelBuffers() bool {
	return f&HandleAssertNoAccelBuffers != 0
}

// Verify interface compliance.
var _ Handle = HandleFlags(0)
