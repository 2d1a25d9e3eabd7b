package os_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tmos "github.com/energymarket/marketclient/libs/os"
)

func TestEnsureDir(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "a", "b")

	require.NoError(t, tmos.EnsureDir(dir, 0755))
	require.DirExists(t, dir)

	// Existing directories are fine.
	require.NoError(t, tmos.EnsureDir(dir, 0755))

	// A file in the way is not.
	file := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	require.Error(t, tmos.EnsureDir(filepath.Join(file, "sub"), 0755))
}

func TestFileExists(t *testing.T) {
	tmp := t.TempDir()
	require.False(t, tmos.FileExists(filepath.Join(tmp, "missing")))

	path := filepath.Join(tmp, "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	require.True(t, tmos.FileExists(path))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "wallet_key.json")

	require.NoError(t, tmos.WriteFileAtomic(path, []byte("first"), 0600))
	require.NoError(t, tmos.WriteFileAtomic(path, []byte("second"), 0600))

	bz, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(bz))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}
