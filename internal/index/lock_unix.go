//go:build !windows

package index

import (
	"os"
	"syscall"
)

// lockExclusive opens path and takes a non-blocking flock on it. held is
// true when another process already has it.
func lockExclusive(path string) (file *os.File, held bool, err error) {
	file, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, false, err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, err == syscall.EWOULDBLOCK, err
	}
	return file, false, nil
}

func unlock(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
}
