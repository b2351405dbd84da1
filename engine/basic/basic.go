// Package basic provides the general-purpose first-fit allocation strategy,
// registered under the name "basic". It carves suballocations out of
// segments drawn from the configured SegmentSource, splitting free regions
// on allocation and coalescing adjacent free regions on free.
package basic

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/hpcio/stagebuf/engine"
	"github.com/hpcio/stagebuf/internal/memutil"
	"github.com/hpcio/stagebuf/internal/utils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slog"
)

// Name is the registry name of this engine.
const Name = "basic"

const (
	// defaultAlignment is used when Alloc is called with alignment 0.
	defaultAlignment uint = 8
	// segmentGrain is the minimum size requested from the segment source,
	// so small allocations share a segment instead of each taking a page run.
	segmentGrain = 64 * 1024
)

type factory struct{}

func (factory) New(config engine.Config) (engine.Engine, error) {
	if config.Source == nil {
		return nil, cerrors.New("basic: engine.Config.Source is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &allocator{
		mutex:  utils.OptionalMutex{UseMutex: config.ThreadSafe},
		logger: logger,
		source: config.Source,
		live:   swiss.NewMap[uintptr, *block](64),
	}, nil
}

func init() {
	engine.Register(Name, factory{})
}

// block is a contiguous region within a segment, either live or free.
// Blocks form an offset-ordered doubly linked list covering the whole
// segment with no gaps.
type block struct {
	seg    *segment
	offset int
	size   int
	free   bool
	prev   *block
	next   *block
}

type segment struct {
	base      unsafe.Pointer
	size      int
	head      *block
	liveCount int
}

func (s *segment) freeBytes() int {
	total := 0
	for b := s.head; b != nil; b = b.next {
		if b.free {
			total += b.size
		}
	}
	return total
}

type allocator struct {
	mutex  utils.OptionalMutex
	logger *slog.Logger
	source engine.SegmentSource

	segments []*segment
	live     *swiss.Map[uintptr, *block]
}

func (a *allocator) Alloc(size int, alignment uint) (unsafe.Pointer, error) {
	if size < 0 {
		return nil, cerrors.Newf("basic: negative allocation size %d", size)
	}
	if size == 0 {
		size = 1
	}
	if alignment == 0 {
		alignment = defaultAlignment
	}
	if err := memutil.CheckPow2(alignment, "alignment"); err != nil {
		return nil, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	for _, seg := range a.segments {
		if ptr, ok := a.allocFromSegment(seg, size, alignment); ok {
			return ptr, nil
		}
	}

	request := size + int(alignment)
	if request < segmentGrain {
		request = segmentGrain
	}
	base, actual := a.source.AcquireSegment(request)
	if base == nil {
		return nil, cerrors.Wrapf(engine.ErrOutOfMemory, "basic: acquiring a %d-byte segment", request)
	}

	seg := &segment{base: base, size: actual}
	seg.head = &block{seg: seg, size: actual, free: true}
	a.segments = append(a.segments, seg)

	ptr, ok := a.allocFromSegment(seg, size, alignment)
	if !ok {
		return nil, cerrors.Newf("basic: fresh %d-byte segment could not satisfy a %d-byte request", actual, size)
	}
	return ptr, nil
}

func (a *allocator) allocFromSegment(seg *segment, size int, alignment uint) (unsafe.Pointer, bool) {
	for b := seg.head; b != nil; b = b.next {
		if !b.free {
			continue
		}
		// Align the absolute address; segment bases are not guaranteed to be
		// aligned beyond what the OS allocator provides.
		addr := uintptr(seg.base) + uintptr(b.offset)
		padding := int(memutil.AlignUpPtr(addr, alignment) - addr)
		if padding+size > b.size {
			continue
		}
		if padding > 0 {
			// Leading remainder stays free.
			b = split(b, padding)
		}
		if b.size > size {
			split(b, size)
		}
		b.free = false
		seg.liveCount++

		ptr := unsafe.Add(seg.base, b.offset)
		a.live.Put(uintptr(ptr), b)
		return ptr, true
	}
	return nil, false
}

// split divides a free block at offset at within the block, returning the
// trailing part. Both halves remain free.
func split(b *block, at int) *block {
	rest := &block{
		seg:    b.seg,
		offset: b.offset + at,
		size:   b.size - at,
		free:   true,
		prev:   b,
		next:   b.next,
	}
	if b.next != nil {
		b.next.prev = rest
	}
	b.next = rest
	b.size = at
	return rest
}

// merge absorbs b.next into b. Both must be free and adjacent.
func merge(b *block) {
	next := b.next
	b.size += next.size
	b.next = next.next
	if next.next != nil {
		next.next.prev = b
	}
}

func (a *allocator) Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	b, ok := a.live.Get(uintptr(ptr))
	if !ok {
		return cerrors.Newf("basic: free of unknown or already-freed pointer %#x", uintptr(ptr))
	}
	a.live.Delete(uintptr(ptr))

	b.free = true
	seg := b.seg
	seg.liveCount--

	if b.next != nil && b.next.free {
		merge(b)
	}
	if b.prev != nil && b.prev.free {
		merge(b.prev)
	}

	// Return fully-free segments to the source, keeping one resident so
	// steady-state alloc/free cycles do not thrash the OS.
	if seg.liveCount == 0 && len(a.segments) > 1 {
		a.dropSegment(seg)
	}
	return nil
}

func (a *allocator) dropSegment(seg *segment) {
	for i, candidate := range a.segments {
		if candidate == seg {
			a.segments = append(a.segments[:i], a.segments[i+1:]...)
			break
		}
	}
	a.source.ReleaseSegment(seg.base)
}

func (a *allocator) Finalize() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	leaked := a.live.Count()
	for _, seg := range a.segments {
		a.source.ReleaseSegment(seg.base)
	}
	a.segments = nil
	a.live = swiss.NewMap[uintptr, *block](64)

	if leaked > 0 {
		return cerrors.Newf("basic: %d allocations still outstanding at finalize", leaked)
	}
	return nil
}

func (a *allocator) AddStatistics(stats *engine.Statistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for _, seg := range a.segments {
		stats.SegmentCount++
		stats.SegmentBytes += seg.size
	}
	a.live.Iter(func(_ uintptr, b *block) bool {
		stats.AllocationCount++
		stats.AllocationBytes += b.size
		return false
	})
}

func (a *allocator) BuildStatsString(writer *jwriter.Writer) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	obj := writer.Object()
	defer obj.End()

	obj.Name("Engine").String(Name)
	obj.Name("SegmentCount").Int(len(a.segments))
	obj.Name("LiveAllocations").Int(a.live.Count())

	segments := obj.Name("Segments").Array()
	defer segments.End()
	for _, seg := range a.segments {
		segObj := segments.Object()
		segObj.Name("TotalBytes").Int(seg.size)
		segObj.Name("FreeBytes").Int(seg.freeBytes())
		segObj.Name("Allocations").Int(seg.liveCount)
		segObj.End()
	}
}

// Validate performs internal consistency checks on the block lists. It is
// only reachable from tests within this package.
func (a *allocator) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	liveTotal := 0
	for _, seg := range a.segments {
		offset := 0
		live := 0
		prevFree := false
		var prev *block
		for b := seg.head; b != nil; b = b.next {
			if b.seg != seg {
				return cerrors.Newf("basic: block at offset %d does not point back to its segment", b.offset)
			}
			if b.offset != offset {
				return cerrors.Newf("basic: block offset %d does not match running offset %d", b.offset, offset)
			}
			if b.size <= 0 {
				return cerrors.Newf("basic: block at offset %d has non-positive size %d", b.offset, b.size)
			}
			if b.prev != prev {
				return cerrors.Newf("basic: block at offset %d has a broken prev link", b.offset)
			}
			if b.free && prevFree {
				return cerrors.Newf("basic: adjacent free blocks at offset %d were not coalesced", b.offset)
			}
			if !b.free {
				live++
				if _, ok := a.live.Get(uintptr(unsafe.Add(seg.base, b.offset))); !ok {
					return cerrors.Newf("basic: live block at offset %d is missing from the live map", b.offset)
				}
			}
			offset += b.size
			prevFree = b.free
			prev = b
		}
		if offset != seg.size {
			return cerrors.Newf("basic: blocks cover %d of %d segment bytes", offset, seg.size)
		}
		if live != seg.liveCount {
			return cerrors.Newf("basic: segment declares %d live blocks but has %d", seg.liveCount, live)
		}
		liveTotal += live
	}
	if liveTotal != a.live.Count() {
		return cerrors.Newf("basic: live map holds %d entries but segments hold %d live blocks", a.live.Count(), liveTotal)
	}
	return nil
}
