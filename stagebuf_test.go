package stagebuf

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/hpcio/stagebuf/accel"
	"github.com/hpcio/stagebuf/engine"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
)

var countingNews atomic.Int32

// countingFactory counts instantiations and defers to the basic engine.
type countingFactory struct {
	delegate engine.Factory
}

func (f countingFactory) New(config engine.Config) (engine.Engine, error) {
	countingNews.Add(1)
	return f.delegate.New(config)
}

type failingFactory struct{}

func (failingFactory) New(engine.Config) (engine.Engine, error) {
	return nil, cerrors.New("constructor refused")
}

func init() {
	delegate, err := engine.Lookup(DefaultEngine)
	if err != nil {
		panic(err)
	}
	engine.Register("counting", countingFactory{delegate: delegate})
	engine.Register("failing", failingFactory{})
}

func mustPool(t *testing.T, options CreateOptions) *Pool {
	t.Helper()
	pool, err := New(nil, options)
	require.NoError(t, err)
	return pool
}

func TestNewRejectsBadPageSize(t *testing.T) {
	_, err := New(nil, CreateOptions{PageSize: 1000})
	require.Error(t, err)
}

func TestEnsureInitializedConcurrent(t *testing.T) {
	countingNews.Store(0)
	pool := mustPool(t, CreateOptions{EngineName: "counting", PageSize: 4096})

	const callers = 32
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			errs[slot] = pool.EnsureInitialized()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.True(t, pool.Initialized())
	require.Equal(t, int32(1), countingNews.Load())

	require.NoError(t, pool.Finalize())
}

func TestAllocSelfHeals(t *testing.T) {
	pool := mustPool(t, CreateOptions{PageSize: 4096})
	require.False(t, pool.Initialized())

	ptr, err := pool.Alloc(nil, 100)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	require.True(t, pool.Initialized())

	pool.Release(nil, ptr)
	require.NoError(t, pool.Finalize())
}

func TestFinalizeIdempotentAndReusable(t *testing.T) {
	pool := mustPool(t, CreateOptions{PageSize: 4096})
	require.NoError(t, pool.EnsureInitialized())

	require.NoError(t, pool.Finalize())
	require.False(t, pool.Initialized())
	require.NoError(t, pool.Finalize())

	// A finalized pool lazily re-initializes.
	ptr, err := pool.Alloc(nil, 64)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	pool.Release(nil, ptr)
	require.NoError(t, pool.Finalize())
}

func TestUnknownEngine(t *testing.T) {
	pool := mustPool(t, CreateOptions{EngineName: "definitely-not-registered"})

	require.ErrorIs(t, pool.EnsureInitialized(), engine.ErrNotFound)
	require.False(t, pool.Initialized())

	ptr, err := pool.Alloc(nil, 64)
	require.ErrorIs(t, err, engine.ErrNotFound)
	require.Nil(t, ptr)

	// Later calls keep retrying initialization without crashing.
	ptr, err = pool.Alloc(nil, 64)
	require.Error(t, err)
	require.Nil(t, ptr)

	require.NoError(t, pool.Finalize())
}

func TestFailingEngineFactory(t *testing.T) {
	pool := mustPool(t, CreateOptions{EngineName: "failing"})

	ptr, err := pool.Alloc(nil, 64)
	require.Error(t, err)
	require.Nil(t, ptr)
	require.False(t, pool.Initialized())
}

func TestReleaseNilIsNoop(t *testing.T) {
	pool := mustPool(t, CreateOptions{PageSize: 4096})
	pool.Release(nil, nil)
	require.False(t, pool.Initialized())
}

func TestReleaseBeforeInitDoesNotCrash(t *testing.T) {
	pool := mustPool(t, CreateOptions{PageSize: 4096})

	bogus := 0
	pool.Release(nil, unsafe.Pointer(&bogus))

	// The pool is still usable afterwards.
	ptr, err := pool.Alloc(nil, 32)
	require.NoError(t, err)
	pool.Release(nil, ptr)
	require.NoError(t, pool.Finalize())
}

func TestDoubleReleaseDoesNotCrash(t *testing.T) {
	pool := mustPool(t, CreateOptions{PageSize: 4096})

	ptr, err := pool.Alloc(nil, 64)
	require.NoError(t, err)

	pool.Release(nil, ptr)
	pool.Release(nil, ptr)

	require.NoError(t, pool.Finalize())
}

func TestConcurrentAllocFree(t *testing.T) {
	pool := mustPool(t, CreateOptions{PageSize: 4096})

	const (
		workers    = 8
		iterations = 100
	)
	errCh := make(chan error, workers*iterations)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				size := 1 + (worker*131+i*37)%8192
				ptr, err := pool.Alloc(nil, size)
				if err != nil {
					errCh <- err
					return
				}
				// Touch both ends of the buffer.
				*(*byte)(ptr) = byte(i)
				*(*byte)(unsafe.Add(ptr, size-1)) = byte(worker)
				pool.Release(nil, ptr)
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// Every buffer came back; the engine reports no leaks.
	require.NoError(t, pool.Finalize())
}

func TestStatisticsAndStatsString(t *testing.T) {
	pool := mustPool(t, CreateOptions{PageSize: 4096, Runtime: accel.NewMock()})

	stats := pool.Statistics()
	require.Zero(t, stats.SegmentCount)

	p1, err := pool.Alloc(nil, 100)
	require.NoError(t, err)
	p2, err := pool.Alloc(nil, 200)
	require.NoError(t, err)

	stats = pool.Statistics()
	require.Equal(t, 1, stats.SegmentCount)
	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 300, stats.AllocationBytes)

	writer := jwriter.NewWriter()
	pool.BuildStatsString(&writer)
	require.NoError(t, writer.Error())
	require.True(t, json.Valid(writer.Bytes()))
	require.Contains(t, string(writer.Bytes()), `"Initialized":true`)

	pool.Release(nil, p1)
	pool.Release(nil, p2)
	require.NoError(t, pool.Finalize())

	writer = jwriter.NewWriter()
	pool.BuildStatsString(&writer)
	require.Contains(t, string(writer.Bytes()), `"Initialized":false`)
}
