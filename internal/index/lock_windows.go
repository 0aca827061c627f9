//go:build windows

package index

import "os"

// lockExclusive creates path exclusively. An existing file means another
// process holds the lock.
func lockExclusive(path string) (file *os.File, held bool, err error) {
	file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, os.IsExist(err), err
	}
	return file, false, nil
}

func unlock(*os.File) {}
