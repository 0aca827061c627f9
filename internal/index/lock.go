package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"qms/internal/errors"
)

const lockFile = "index.lock"

// Lock is an exclusive, cross-process hold on writing the cache. The lock
// file records "PID operation" so a blocked process can say who holds it.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the lock in toolDir for op ("rebuild", "compact")
// without blocking. If another process holds it the error has code
// INDEX_LOCKED.
func AcquireLock(toolDir, op string) (*Lock, error) {
	if err := os.MkdirAll(toolDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", toolDir, err)
	}
	path := filepath.Join(toolDir, lockFile)

	file, held, err := lockExclusive(path)
	if held {
		return nil, errors.Wrap(errors.IndexLocked, holderMessage(path), err)
	}
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	l := &Lock{path: path, file: file}
	owner := strconv.Itoa(os.Getpid()) + " " + op
	err = file.Truncate(0)
	if err == nil {
		_, err = file.WriteAt([]byte(owner), 0)
	}
	if err != nil {
		l.Release()
		return nil, fmt.Errorf("recording lock owner: %w", err)
	}
	return l, nil
}

// Release drops the lock and removes the lock file. Safe to call twice.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	unlock(l.file)
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.file = nil
}

// holderMessage describes the process holding the lock at path, as far as
// its lock file tells.
func holderMessage(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "cache is locked by another process"
	}
	pid, op, _ := strings.Cut(strings.TrimSpace(string(data)), " ")
	if _, err := strconv.Atoi(pid); err != nil {
		return "cache is locked by another process"
	}
	if op == "" {
		op = "rebuild"
	}
	return fmt.Sprintf("cache %s in progress in another process (PID %s)", op, pid)
}
