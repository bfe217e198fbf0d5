package files

import (
	"path"
	"strings"
	"time"

	"optchain/internal/transform"
)

// ChainFile describes one stored <CODE>_<OFFSET>.csv file.
type ChainFile struct {
	Path       string // relative to the store base directory, slash separated
	Name       string
	ExpiryCode transform.ExpiryCode
	Offset     string
	ModTime    time.Time
}

// ChainPath builds the relative path of the chain file for an index,
// trading date, expiry code and offset label.
func ChainPath(index, date string, code transform.ExpiryCode, offset string) string {
	return path.Join(index, date, string(code)+"_"+offset+".csv")
}

// ParseChainFileName splits "W0_+1.csv" into its expiry code and offset
// label. Names that do not follow the layout are rejected.
func ParseChainFileName(name string) (transform.ExpiryCode, string, bool) {
	base, ok := strings.CutSuffix(name, ".csv")
	if !ok {
		return "", "", false
	}
	code, offset, ok := strings.Cut(base, "_")
	if !ok || code == "" || offset == "" {
		return "", "", false
	}

	switch ec := transform.ExpiryCode(code); ec {
	case transform.ExpiryExpired, transform.ExpiryWeekCurrent, transform.ExpiryWeekNext,
		transform.ExpiryMonthCurr, transform.ExpiryMonthNext, transform.ExpiryFar:
		return ec, offset, true
	}
	return "", "", false
}

// Discovery finds stored chain files through a Manager.
type Discovery struct {
	manager *Manager
}

// NewDiscovery creates a new chain file discovery instance
func NewDiscovery(manager *Manager) *Discovery {
	return &Discovery{manager: manager}
}

// ChainFiles lists the chain files stored for index on date, ordered by
// name. Files whose names do not parse are skipped.
func (d *Discovery) ChainFiles(index, date string) []ChainFile {
	dir := path.Join(index, date)

	var files []ChainFile
	for _, name := range d.manager.ListFilesInDir(dir, "") {
		code, offset, ok := ParseChainFileName(name)
		if !ok {
			continue
		}

		rel := path.Join(dir, name)
		file := ChainFile{Path: rel, Name: name, ExpiryCode: code, Offset: offset}
		if mtime, ok := d.manager.GetFileMtime(rel); ok {
			file.ModTime = time.Unix(0, int64(mtime*1e9))
		}
		files = append(files, file)
	}

	return files
}

// Dates lists the trading dates stored for index.
func (d *Discovery) Dates(index string) []string {
	return d.manager.ListDirectories(index)
}

// Latest returns the most recently modified file.
func Latest(files []ChainFile) (ChainFile, bool) {
	if len(files) == 0 {
		return ChainFile{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}

	return latest, true
}
