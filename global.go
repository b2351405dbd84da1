package stagebuf

import (
	"sync"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// The package-level functions operate on a single process-wide default pool,
// matching consumers that want one allocator shared by every I/O path.

var (
	globalMutex sync.Mutex
	globalPool  *Pool
)

func defaultPool() *Pool {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalPool == nil {
		// The zero CreateOptions value is always valid.
		globalPool, _ = New(nil, CreateOptions{})
	}
	return globalPool
}

// Configure replaces the default pool with one built from the given logger
// and options. It fails once the current default pool has been initialized;
// configure before first use.
func Configure(logger *slog.Logger, options CreateOptions) error {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalPool != nil && globalPool.Initialized() {
		return cerrors.New("stagebuf: default pool is already initialized")
	}
	pool, err := New(logger, options)
	if err != nil {
		return err
	}
	globalPool = pool
	return nil
}

// Default returns the process-wide default pool, creating it on first use.
func Default() *Pool {
	return defaultPool()
}

// Init eagerly initializes the default pool. Optional; Alloc self-heals.
func Init() error {
	return defaultPool().EnsureInitialized()
}

// Finalize tears down the default pool. Idempotent.
func Finalize() error {
	return defaultPool().Finalize()
}

// Alloc obtains a staging buffer from the default pool.
func Alloc(h Handle, size int) (unsafe.Pointer, error) {
	return defaultPool().Alloc(h, size)
}

// Release returns a buffer to the default pool.
func Release(h Handle, buf unsafe.Pointer) {
	defaultPool().Release(h, buf)
}

// CheckGPUBuffer classifies a buffer against the default pool's runtime.
func CheckGPUBuffer(h Handle, buf unsafe.Pointer) (isGPU, isManaged bool) {
	return defaultPool().CheckGPUBuffer(h, buf)
}
