package filex

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestWriteAtomic_CreatesParentsAndWrites(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "a", "b", "file.bin")

	n, err := WriteAtomic("", dst, strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file left behind")
}

func TestWriteAtomic_ReplacesExisting(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "file.txt")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	_, err := WriteAtomic("", dst, strings.NewReader("new"))
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	tmp := t.TempDir()
	staging := filepath.Join(tmp, "staging")
	require.NoError(t, os.Mkdir(staging, 0o700))
	dst := filepath.Join(tmp, "out", "file.txt")

	_, err := WriteAtomic(staging, dst, failingReader{})
	require.Error(t, err)

	_, err = os.Stat(dst)
	require.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAvailablePath(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "report.pdf")

	require.Equal(t, p, AvailablePath(p))

	require.NoError(t, os.WriteFile(p, nil, 0o600))
	require.Equal(t, filepath.Join(tmp, "report (1).pdf"), AvailablePath(p))

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "report (1).pdf"), nil, 0o600))
	require.Equal(t, filepath.Join(tmp, "report (2).pdf"), AvailablePath(p))

	noExt := filepath.Join(tmp, "README")
	require.NoError(t, os.WriteFile(noExt, nil, 0o600))
	require.Equal(t, filepath.Join(tmp, "README (1)"), AvailablePath(noExt))
}
