package rundir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumbersDirectories(t *testing.T) {
	parent := t.TempDir()

	d1, err := New(parent, "allometry")
	require.NoError(t, err)
	assert.Equal(t, "allometry_dir1", d1.Name())

	d2, err := New(parent, "allometry")
	require.NoError(t, err)
	assert.Equal(t, "allometry_dir2", d2.Name())

	d3, err := New(parent, "")
	require.NoError(t, err)
	assert.Equal(t, "run_dir1", d3.Name())
}

func TestNewTempRemove(t *testing.T) {
	d, err := NewTemp("covsearch")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(d.Path()) })

	assert.True(t, d.Temp())
	require.NoError(t, os.WriteFile(d.Join("run1.mod"), []byte("$PROBLEM x\n"), 0o644))
	require.NoError(t, d.Remove())
	assert.NoDirExists(t, d.Path())

	perm, err := New(t.TempDir(), "run")
	require.NoError(t, err)
	assert.False(t, perm.Temp())
	assert.ErrorContains(t, perm.Remove(), "non-temporary")
}

func TestOpen(t *testing.T) {
	parent := t.TempDir()
	_, err := Open(filepath.Join(parent, "missing"))
	assert.Error(t, err)

	file := filepath.Join(parent, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Open(file)
	assert.ErrorContains(t, err, "not a directory")

	d, err := Open(parent)
	require.NoError(t, err)
	assert.Equal(t, parent, d.Path())
}

func TestCleanupLevels(t *testing.T) {
	d, err := New(t.TempDir(), "run")
	require.NoError(t, err)
	require.NoError(t, d.DefineCleanLevel(1, []string{"*.tmp", "scratch*"}, false))
	require.NoError(t, d.DefineCleanLevel(2, []string{"*.ext"}, true))

	for _, name := range []string{"a.tmp", "scratch1", "run1.ext", "run1.lst"} {
		require.NoError(t, os.WriteFile(d.Join(name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(d.Join("sub.ext"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(d.Join("sub.ext"), "inner"), nil, 0o644))

	// level 0 removes nothing
	require.NoError(t, d.Cleanup(0))
	entries, _ := os.ReadDir(d.Path())
	assert.Len(t, entries, 5)

	// level 1 removes only its own patterns
	require.NoError(t, d.Cleanup(1))
	assert.NoFileExists(t, d.Join("a.tmp"))
	assert.NoFileExists(t, d.Join("scratch1"))
	assert.FileExists(t, d.Join("run1.ext"))

	// level 2 includes level 1 patterns and removes matching dirs
	require.NoError(t, d.Cleanup(2))
	assert.NoFileExists(t, d.Join("run1.ext"))
	assert.NoDirExists(t, d.Join("sub.ext"))
	assert.FileExists(t, d.Join("run1.lst"))
}

func TestCleanupDirNeedsRmDirs(t *testing.T) {
	d, err := New(t.TempDir(), "run")
	require.NoError(t, err)
	require.NoError(t, d.DefineCleanLevel(1, []string{"keepdir"}, false))
	require.NoError(t, os.Mkdir(d.Join("keepdir"), 0o755))

	require.NoError(t, d.Cleanup(1))
	assert.DirExists(t, d.Join("keepdir"))
}

func TestDefineCleanLevelRejectsZero(t *testing.T) {
	d, err := New(t.TempDir(), "run")
	require.NoError(t, err)
	assert.Error(t, d.DefineCleanLevel(0, []string{"*"}, false))
}

func TestWaitForFile(t *testing.T) {
	d, err := New(t.TempDir(), "run")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.Create(d.Join("run1.lst"))
		if err != nil {
			return
		}
		f.WriteString("MINIMIZATION SUCCESSFUL\n")
		f.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path, err := d.WaitForFile(ctx, "run1.lst", 100*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, d.Join("run1.lst"), path)
}

func TestWaitForFileAlreadyPresent(t *testing.T) {
	d, err := New(t.TempDir(), "run")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(d.Join("run1.lst"), []byte("done"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path, err := d.WaitForFile(ctx, "run1.lst", 50*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, d.Join("run1.lst"), path)
}

func TestWaitForFileTimeout(t *testing.T) {
	d, err := New(t.TempDir(), "run")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = d.WaitForFile(ctx, "never.lst", 50*time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
