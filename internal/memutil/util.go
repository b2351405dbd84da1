package memutil

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

// CheckPow2 returns an error naming the offending value when number is not a power of two.
func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUpPtr rounds an address up to the next multiple of alignment.
func AlignUpPtr(value uintptr, alignment uint) uintptr {
	return (value + uintptr(alignment) - 1) &^ (uintptr(alignment) - 1)
}

// PageCount returns the number of whole pages needed to hold size bytes.
// A size of zero still occupies one page.
func PageCount(size, pageSize int) int {
	if size <= 0 {
		return 1
	}
	return (size + pageSize - 1) / pageSize
}
