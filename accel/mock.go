package accel

import (
	"sync"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

type deviceRange struct {
	base  uintptr
	size  int
	dev   DeviceID
	flags MemoryFlags
}

type hostRegistration struct {
	dev  DeviceID
	size int
}

// Mock simulates an accelerator runtime for testing without a real device.
// Device memory is simulated with address ranges added via AddDeviceRange;
// host registrations are tracked so tests can assert pin/unpin behavior.
type Mock struct {
	mu sync.Mutex

	ranges   []deviceRange
	hostRegs *swiss.Map[uintptr, hostRegistration]

	// FailHostRegister makes every HostRegister call fail, for exercising
	// the best-effort registration path.
	FailHostRegister bool

	registerCalls   int
	unregisterCalls int
}

func NewMock() *Mock {
	return &Mock{
		hostRegs: swiss.NewMap[uintptr, hostRegistration](8),
	}
}

// AddDeviceRange marks [ptr, ptr+size) as accelerator memory owned by dev.
func (m *Mock) AddDeviceRange(ptr unsafe.Pointer, size int, dev DeviceID, flags MemoryFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranges = append(m.ranges, deviceRange{base: uintptr(ptr), size: size, dev: dev, flags: flags})
}

func (m *Mock) CheckAddr(ptr unsafe.Pointer) (bool, DeviceID, MemoryFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := uintptr(ptr)
	for _, r := range m.ranges {
		if addr >= r.base && addr < r.base+uintptr(r.size) {
			return true, r.dev, r.flags
		}
	}
	return false, NoDevice, 0
}

func (m *Mock) HostRegister(dev DeviceID, ptr unsafe.Pointer, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registerCalls++
	if m.FailHostRegister {
		return cerrors.New("mock: host registration refused")
	}
	if _, dup := m.hostRegs.Get(uintptr(ptr)); dup {
		return cerrors.Newf("mock: %#x is already registered", uintptr(ptr))
	}
	m.hostRegs.Put(uintptr(ptr), hostRegistration{dev: dev, size: size})
	return nil
}

func (m *Mock) HostUnregister(dev DeviceID, ptr unsafe.Pointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unregisterCalls++
	reg, ok := m.hostRegs.Get(uintptr(ptr))
	if !ok {
		return cerrors.Newf("mock: %#x is not registered", uintptr(ptr))
	}
	if reg.dev != dev {
		return cerrors.Newf("mock: %#x is registered to device %d, not %d", uintptr(ptr), reg.dev, dev)
	}
	m.hostRegs.Delete(uintptr(ptr))
	return nil
}

// HostRegistrationCount returns the number of currently live host registrations.
func (m *Mock) HostRegistrationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hostRegs.Count()
}

// RegisterCalls returns how many times HostRegister was invoked, including failures.
func (m *Mock) RegisterCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerCalls
}

// UnregisterCalls returns how many times HostUnregister was invoked, including failures.
func (m *Mock) UnregisterCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unregisterCalls
}

// Verify interface compliance.
var _ Runtime = (*Mock)(nil)
