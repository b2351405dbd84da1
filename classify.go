package stagebuf

import (
	"unsafe"

	"github.com/hpcio/stagebuf/accel"
)

// CheckGPUBuffer reports whether buf resides in accelerator memory and, if
// so, whether that memory is unified/managed. The buffer need not have come
// from this pool.
//
// A handle carrying the no-accelerator-buffers assertion short-circuits to
// (false, false) without querying the runtime; the assertion is trusted, not
// verified. The call is a pure query: it takes no locks and may run
// concurrently with everything else.
func (p *Pool) CheckGPUBuffer(h Handle, buf unsafe.Pointer) (isGPU, isManaged bool) {
	if h != nil && h.AssertNoAccelBuffers() {
		return false, false
	}
	if buf == nil {
		return false, false
	}

	found, _, flags := p.runtime.CheckAddr(buf)
	if found {
		isGPU = true
		if flags&accel.MemoryUnified != 0 {
			isManaged = true
		}
	}
	return isGPU, isManaged
}
