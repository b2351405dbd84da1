package accel

import "unsafe"

// Null is the runtime used when no accelerator is present. CheckAddr never
// finds an address and registration calls succeed without doing anything.
type Null struct{}

func (Null) CheckAddr(ptr unsafe.Pointer) (bool, DeviceID, MemoryFlags) {
	return false, NoDevice, 0
}

func (Null) HostRegister(dev DeviceID, ptr unsafe.Pointer, size int) error {
	return nil
}

func (Null) HostUnregister(dev DeviceID, ptr unsafe.Pointer) error {
	return nil
}

// Verify interface compliance.
var _ Runtime = Null{}
