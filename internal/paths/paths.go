// Package paths locates the project root and the tool-private files under .qms/.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"qms/internal/errors"
)

const (
	// ToolDirName is the tool-private, version-control-ignored directory.
	ToolDirName = ".qms"
	// CacheFileName is the SQLite index inside the tool directory.
	CacheFileName = "cache.db"
	// ConfigFileName is the optional project configuration.
	ConfigFileName = "config.toml"
	// LogsDirName holds the optional log file.
	LogsDirName = "logs"
	// LogFileName is the log file written when logging.file is enabled.
	LogFileName = "qms.log"
)

// FindProjectRoot walks upward from start until it finds a directory that
// contains .qms/. It returns a PROJECT_NOT_FOUND error when none exists.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(filepath.Join(dir, ToolDirName))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Wrap(errors.ProjectNotFound,
				fmt.Sprintf("no %s directory found at or above %s", ToolDirName, start), nil)
		}
		dir = parent
	}
}

// ToolDir returns <root>/.qms.
func ToolDir(root string) string {
	return filepath.Join(root, ToolDirName)
}

// CachePath returns <root>/.qms/cache.db.
func CachePath(root string) string {
	return filepath.Join(root, ToolDirName, CacheFileName)
}

// ConfigPath returns <root>/.qms/config.toml.
func ConfigPath(root string) string {
	return filepath.Join(root, ToolDirName, ConfigFileName)
}

// EnsureLogsDir creates <root>/.qms/logs if needed and returns it.
func EnsureLogsDir(root string) (string, error) {
	dir := filepath.Join(root, ToolDirName, LogsDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating logs directory: %w", err)
	}
	return dir, nil
}

// LogPath returns the log file inside logsDir.
func LogPath(logsDir string) string {
	return filepath.Join(logsDir, LogFileName)
}

// CanonicalizePath converts an absolute path to a project-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to the project root
// - Returns the relative path with forward slashes
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = root
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinProject checks if a path is within the project root
func IsWithinProject(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// JoinProjectPath joins a project root with a canonical path
func JoinProjectPath(root string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
