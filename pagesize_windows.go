//go:build windows

package stagebuf

import "os"

func osPageSize() int {
	return os.Getpagesize()
}
