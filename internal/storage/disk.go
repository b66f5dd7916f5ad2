package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Suffix markers of the sibling directories used while an index directory is replaced.
const (
	TempDirMarker = ".tmp-"
	OldDirMarker  = ".old-"
)

// DiskUsageBytes returns the total size of all files under dir. A missing dir is 0 bytes.
func DiskUsageBytes(dir string) (int64, error) {
	if dir == "" {
		return 0, nil
	}
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

// LeftoverDirs lists sibling directories of dir left behind by an interrupted replace
// (dir.tmp-* and dir.old-*), sorted by name.
func LeftoverDirs(dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	parent, base := filepath.Dir(dir), filepath.Base(dir)
	entries, err := os.ReadDir(parent)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, base+TempDirMarker) || strings.HasPrefix(name, base+OldDirMarker) {
			out = append(out, filepath.Join(parent, name))
		}
	}
	sort.Strings(out)
	return out, nil
}
