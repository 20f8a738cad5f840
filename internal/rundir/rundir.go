// Package rundir manages estimation run directories: unique naming,
// leveled cleanup of intermediate files, and watching for run output.
package rundir

import (
	"fmt"
	"os"
	"path/filepath"
)

// cleanLevel targets files matching patterns for deletion. Directories
// are only removed when rmDirs is set.
type cleanLevel struct {
	patterns []string
	rmDirs   bool
}

// Directory is one run directory. Level 0 is reserved as the no-op
// clean level.
type Directory struct {
	path   string
	levels []cleanLevel
	temp   bool
}

// New creates parent/name_dir<n> with the first free n starting at 1.
func New(parent, name string) (*Directory, error) {
	if name == "" {
		name = "run"
	}
	abs, err := filepath.Abs(parent)
	if err != nil {
		return nil, err
	}
	for n := 1; ; n++ {
		path := filepath.Join(abs, fmt.Sprintf("%s_dir%d", name, n))
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return &Directory{path: path, levels: []cleanLevel{{}}}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
	}
}

// NewTemp creates a run directory under the system temp dir. Remove
// deletes it entirely once the run is done.
func NewTemp(name string) (*Directory, error) {
	if name == "" {
		name = "run"
	}
	path, err := os.MkdirTemp("", name+"_dir")
	if err != nil {
		return nil, err
	}
	return &Directory{path: path, levels: []cleanLevel{{}}, temp: true}, nil
}

// Temp reports whether the directory lives in the system temp dir.
func (d *Directory) Temp() bool { return d.temp }

// Remove deletes the directory and everything in it. Only temporary
// directories may be removed this way.
func (d *Directory) Remove() error {
	if !d.temp {
		return fmt.Errorf("refusing to remove non-temporary run directory %s", d.path)
	}
	return os.RemoveAll(d.path)
}

// Open wraps an existing directory.
func Open(path string) (*Directory, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	return &Directory{path: path, levels: []cleanLevel{{}}}, nil
}

// Path returns the absolute directory path.
func (d *Directory) Path() string { return d.path }

// Name returns the directory base name.
func (d *Directory) Name() string { return filepath.Base(d.path) }

// Join resolves a file name inside the directory.
func (d *Directory) Join(name string) string { return filepath.Join(d.path, name) }

// DefineCleanLevel sets the deletion patterns for a level. Higher levels
// include all lower ones when cleaning.
func (d *Directory) DefineCleanLevel(level int, patterns []string, rmDirs bool) error {
	if level < 1 {
		return fmt.Errorf("clean level must be positive, got %d", level)
	}
	for len(d.levels) <= level {
		d.levels = append(d.levels, cleanLevel{})
	}
	d.levels[level] = cleanLevel{patterns: append([]string(nil), patterns...), rmDirs: rmDirs}
	return nil
}

// Cleanup deletes entries matching any defined level up to and including
// the given one.
func (d *Directory) Cleanup(level int) error {
	if level >= len(d.levels) {
		level = len(d.levels) - 1
	}
	if level < 1 {
		return nil
	}
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		lv, ok := matchLevel(d.levels[1:level+1], entry.Name())
		if !ok {
			continue
		}
		full := filepath.Join(d.path, entry.Name())
		if entry.IsDir() {
			if !lv.rmDirs {
				continue
			}
			if err := os.RemoveAll(full); err != nil {
				return err
			}
			continue
		}
		if err := os.Remove(full); err != nil {
			return err
		}
	}
	return nil
}

func matchLevel(levels []cleanLevel, name string) (cleanLevel, bool) {
	for _, lv := range levels {
		for _, pat := range lv.patterns {
			if ok, _ := filepath.Match(pat, name); ok {
				return lv, true
			}
		}
	}
	return cleanLevel{}, false
}
