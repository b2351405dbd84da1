package engine

import "github.com/pkg/errors"

// ErrNotFound is the error returned from Lookup when no engine factory is registered under the requested name
var ErrNotFound error = errors.New("no allocator engine registered under that name")

// ErrOutOfMemory is the error engines return from Alloc when their segment source cannot supply more memory
var ErrOutOfMemory error = errors.New("segment source could not supply more memory")
