//go:build !unix

package documents

import "errors"

func diskFree(path string) (int64, error) {
	return 0, errors.New("free space probing is not supported on this platform")
}
