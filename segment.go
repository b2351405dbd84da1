package stagebuf

import (
	"unsafe"

	"github.com/hpcio/stagebuf/accel"
	"github.com/hpcio/stagebuf/internal/memutil"
	"github.com/smasher164/mem"
)

// AcquireSegment implements engine.SegmentSource. It rounds the request up
// to a whole number of pages, obtains the memory off-heap from the OS, and
// best-effort registers it with the accelerator runtime so the segment is
// safe to use as a DMA target. Registration failure only costs the pinning;
// the segment is still returned.
func (p *Pool) AcquireSegment(size int) (unsafe.Pointer, int) {
	actual := memutil.PageCount(size, p.pageSize) * p.pageSize

	ptr := mem.Alloc(uint(actual))
	if ptr == nil {
		return nil, 0
	}

	if err := p.runtime.HostRegister(accel.NoDevice, ptr, actual); err != nil {
		p.logger.Warn("stagebuf: host registration failed, segment stays unpinned",
			"size", actual, "err", err)
	} else {
		p.regMutex.Lock()
		p.registered.Put(uintptr(ptr), accel.NoDevice)
		p.regMutex.Unlock()
	}
	return ptr, actual
}

// ReleaseSegment implements engine.SegmentSource. If the segment was
// successfully registered on acquire it is unregistered first; an
// unregistration failure is logged and the memory is released regardless.
func (p *Pool) ReleaseSegment(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	p.regMutex.Lock()
	dev, pinned := p.registered.Get(uintptr(ptr))
	if pinned {
		p.registered.Delete(uintptr(ptr))
	}
	p.regMutex.Unlock()

	if pinned {
		if err := p.runtime.HostUnregister(dev, ptr); err != nil {
			p.logger.Warn("stagebuf: host unregistration failed", "err", err)
		}
	}
	mem.Free(ptr)
}
