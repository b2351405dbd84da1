// Package stagebuf supplies host-resident, page-granular staging buffers to
// I/O callers, with awareness of accelerator (GPU) memory. Buffers come from
// a pluggable allocator engine backed by OS memory segments that are
// best-effort registered with the accelerator runtime so they are safe to
// use as DMA targets.
package stagebuf

import (
	"sync"
	"sync/atomic"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/hpcio/stagebuf/accel"
	"github.com/hpcio/stagebuf/engine"
	_ "github.com/hpcio/stagebuf/engine/basic"
	"github.com/hpcio/stagebuf/internal/memutil"
	"golang.org/x/exp/slog"
)

// DefaultEngine is the engine name used when CreateOptions.EngineName is empty.
const DefaultEngine = "basic"

// CreateOptions contains optional settings when creating a Pool. The zero
// value is valid.
type CreateOptions struct {
	// EngineName selects the allocator engine by registry name. An empty
	// string selects DefaultEngine. The name is resolved lazily, on first
	// use of the pool.
	EngineName string

	// Runtime is the accelerator runtime used to register segments and
	// classify buffers. Nil selects accel.Null, for processes without an
	// accelerator.
	Runtime accel.Runtime

	// PageSize overrides the OS page size used to round segment requests.
	// It must be a power of two. Zero selects the real OS page size. This
	// is primarily useful in tests.
	PageSize int
}

// Pool owns one lazily-initialized allocator engine and hands out staging
// buffers from it. A Pool is safe for use from multiple goroutines; every
// engine operation is serialized by a single internal mutex.
//
// Most applications use the package-level default pool instead of creating
// their own.
type Pool struct {
	logger           *slog.Logger
	runtime          accel.Runtime
	engineName       string
	pageSizeOverride int

	// initAttempts counts EnsureInitialized entries; a zero value at
	// Release time indicates a caller bug.
	initAttempts atomic.Int32
	ready        atomic.Bool

	mutex    sync.Mutex
	engine   engine.Engine
	pageSize int

	// registered tracks segment base addresses whose host registration
	// succeeded, so release unpins exactly those.
	regMutex   sync.Mutex
	registered *swiss.Map[uintptr, accel.DeviceID]
}

// New creates a Pool. Construction is cheap; the engine is instantiated on
// first use.
//
// logger - Receives diagnostics. Nil selects slog.Default()
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if options.PageSize != 0 {
		if err := memutil.CheckPow2(options.PageSize, "CreateOptions.PageSize"); err != nil {
			return nil, err
		}
	}
	runtime := options.Runtime
	if runtime == nil {
		runtime = accel.Null{}
	}
	engineName := options.EngineName
	if engineName == "" {
		engineName = DefaultEngine
	}

	return &Pool{
		logger:           logger,
		runtime:          runtime,
		engineName:       engineName,
		pageSizeOverride: options.PageSize,
		registered:       swiss.NewMap[uintptr, accel.DeviceID](16),
	}, nil
}

// EnsureInitialized instantiates the pool's engine if that has not happened
// yet. Concurrent callers agree on a single initializer; the others block
// until the engine is published and then return its outcome. It is called
// implicitly by Alloc, so explicit use is only needed to surface engine
// lookup failures early.
func (p *Pool) EnsureInitialized() error {
	p.initAttempts.Add(1)
	if p.ready.Load() {
		return nil
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.engine != nil {
		return nil
	}

	factory, err := engine.Lookup(p.engineName)
	if err != nil {
		return cerrors.Wrap(err, "stagebuf: allocator unavailable")
	}

	pageSize := p.pageSizeOverride
	if pageSize == 0 {
		pageSize = osPageSize()
	}
	p.pageSize = pageSize

	eng, err := factory.New(engine.Config{
		ThreadSafe: true,
		Source:     p,
		Logger:     p.logger,
	})
	if err != nil {
		return cerrors.Wrapf(err, "stagebuf: instantiating engine %q", p.engineName)
	}

	p.engine = eng
	p.ready.Store(true)
	return nil
}

// Initialized reports whether the pool currently holds a live engine.
func (p *Pool) Initialized() bool {
	return p.ready.Load()
}

// Finalize releases the engine and every segment it holds. It is idempotent:
// finalizing an uninitialized pool is a no-op. A finalized pool lazily
// re-initializes on next use. It returns the engine's leak report, if any,
// which is also logged.
//
// Finalize must not be called concurrently with in-flight Alloc or Release
// calls that the caller still expects to succeed.
func (p *Pool) Finalize() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.engine == nil {
		return nil
	}

	err := p.engine.Finalize()
	if err != nil {
		p.logger.Error("stagebuf: engine finalize reported leaked allocations", "engine", p.engineName, "err", err)
	}
	p.engine = nil
	p.ready.Store(false)
	p.initAttempts.Store(0)
	return err
}

// Alloc obtains a staging buffer of at least size bytes. The pool
// initializes itself on first use. On exhaustion the error is returned
// as-is; there is no retry. Ownership of the buffer passes to the caller
// until it is returned via Release.
func (p *Pool) Alloc(h Handle, size int) (unsafe.Pointer, error) {
	if !p.ready.Load() {
		if err := p.EnsureInitialized(); err != nil {
			return nil, err
		}
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.engine == nil {
		// Finalize won the mutex between the readiness check and here.
		return nil, cerrors.New("stagebuf: pool was finalized")
	}
	return p.engine.Alloc(size, 0)
}

// Release returns a buffer obtained from Alloc. A nil buffer is a no-op.
// Engine-level failures (double free, foreign pointer) are logged as caller
// bugs rather than surfaced.
func (p *Pool) Release(h Handle, buf unsafe.Pointer) {
	if buf == nil {
		return
	}
	if p.initAttempts.Load() == 0 {
		// Nothing can have been allocated from this pool yet.
		p.logger.Error("stagebuf: release called before any allocator initialization")
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.engine == nil {
		return
	}
	if err := p.engine.Free(buf); err != nil {
		p.logger.Error("stagebuf: engine rejected free", "engine", p.engineName, "err", err)
	}
}
