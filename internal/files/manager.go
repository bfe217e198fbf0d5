package files

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"optchain/internal/config"
	"optchain/internal/infrastructure"
)

// Manager answers read-only questions about the CSV store. None of its
// methods return errors: I/O failures degrade to a neutral answer.
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	return &Manager{
		paths:  paths,
		logger: infrastructure.WithComponent(infrastructure.LoggerOrDefault(logger), "files"),
	}
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	fullPath := m.resolvePath(path)
	_, err := os.Stat(fullPath)
	exists := err == nil

	m.logger.Debug("FileExists check",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Bool("exists", exists))

	return exists
}

// GetFileMtime returns the modification time of path in Unix seconds.
// ok is false when the file cannot be stat'ed; that case is logged as a
// warning.
func (m *Manager) GetFileMtime(path string) (mtime float64, ok bool) {
	fullPath := m.resolvePath(path)
	info, err := os.Stat(fullPath)
	if err != nil {
		m.logger.Warn("failed to stat file",
			slog.String("path", path),
			slog.String("full_path", fullPath),
			slog.String("error", err.Error()))
		return 0, false
	}
	return float64(info.ModTime().UnixNano()) / 1e9, true
}

// ListFilesInDir returns the sorted names of regular files in dir that
// match pattern (default "*.csv"). A missing or unreadable directory
// yields an empty list.
func (m *Manager) ListFilesInDir(dir, pattern string) []string {
	if pattern == "" {
		pattern = config.CSVPattern
	}
	fullPath := m.resolvePath(dir)

	m.logger.Debug("Listing files",
		slog.String("dir", dir),
		slog.String("full_path", fullPath),
		slog.String("pattern", pattern))

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return []string{}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			m.logger.Debug("invalid file pattern", slog.String("pattern", pattern), slog.String("error", err.Error()))
			return []string{}
		}
		if matched {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	return names
}

// ListDirectories returns the sorted names of subdirectories of dir.
func (m *Manager) ListDirectories(dir string) []string {
	entries, err := os.ReadDir(m.resolvePath(dir))
	if err != nil {
		return []string{}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// resolvePath resolves a path relative to the store base directory
func (m *Manager) resolvePath(path string) string {
	return m.paths.GetDataPath(filepath.FromSlash(path))
}
