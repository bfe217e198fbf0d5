package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved storage locations.
// Every CSV written by the collector lives under BaseDir.
type Paths struct {
	ExecutableDir string
	BaseDir       string
	QuarantineDir string
	OverviewDir   string
	LogsDir       string
}

// NewPaths builds Paths rooted at baseDir. A relative baseDir is resolved
// against the executable directory, never the current working directory.
func NewPaths(baseDir string) (*Paths, error) {
	exeDir, err := executableDir()
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(baseDir) {
		baseDir = filepath.Join(exeDir, baseDir)
	}

	return &Paths{
		ExecutableDir: exeDir,
		BaseDir:       baseDir,
		QuarantineDir: filepath.Join(baseDir, QuarantineSubdir),
		OverviewDir:   filepath.Join(baseDir, OverviewSubdir),
		LogsDir:       filepath.Join(exeDir, DefaultLogsDir),
	}, nil
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return filepath.Dir(exe), nil
}

// EnsureDirectories creates the base directories if they don't exist.
// Per-index subdirectories are created lazily by the writer.
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.BaseDir,
		p.QuarantineDir,
		p.OverviewDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetDataPath resolves a path relative to BaseDir. Absolute paths are
// returned unchanged.
func (p *Paths) GetDataPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.BaseDir, rel)
}
