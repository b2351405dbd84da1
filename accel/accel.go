// Package accel defines the accelerator runtime surface consumed by the
// staging-buffer allocator: address classification and host memory
// registration. Real runtimes (CUDA, ROCm, Level Zero) are bound by the
// consuming application; this package carries the interface plus a null
// runtime for accelerator-less processes and a mock for tests.
package accel

import "unsafe"

// DeviceID identifies an accelerator device within the runtime.
type DeviceID int

// NoDevice is the device id used for registrations that pin host memory
// without associating it with a particular device.
const NoDevice DeviceID = -1

// MemoryFlags describe properties of accelerator-resident memory as reported
// by CheckAddr.
type MemoryFlags uint64

const (
	// MemoryUnified indicates unified/managed memory: the same address is
	// valid on both host and device.
	MemoryUnified MemoryFlags = 1 << iota
)

// Runtime is the accelerator runtime consumed by the allocator.
//
// CheckAddr reports whether ptr resides in accelerator (device) memory,
// and if so on which device and with which flags. Host memory, including
// host memory that has been pinned via HostRegister, is not found.
//
// HostRegister pins a host memory region so it is safe to use as a DMA
// target. HostUnregister reverses a prior registration. Both may fail;
// callers on the allocation path must treat failure as non-fatal.
type Runtime interface {
	CheckAddr(ptr unsafe.Pointer) (found bool, dev DeviceID, flags MemoryFlags)
	HostRegister(dev DeviceID, ptr unsafe.Pointer, size int) error
	HostUnregister(dev DeviceID, ptr unsafe.Pointer) error
}
