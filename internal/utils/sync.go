package utils

import (
	"sync"
)

// OptionalMutex is a mutex that only engages when UseMutex is set. Consumers
// that synchronize externally can disable it and skip the locking cost.
type OptionalMutex struct {
	Mutex    sync.Mutex
	UseMutex bool
}

func (m *OptionalMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}
