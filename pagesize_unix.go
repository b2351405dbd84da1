//go:build unix

package stagebuf

import "golang.org/x/sys/unix"

func osPageSize() int {
	return unix.Getpagesize()
}
