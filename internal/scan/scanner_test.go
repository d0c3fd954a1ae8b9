package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0644))
	}
}

func TestScan_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "zebra.txt", "apple.pdf", ".hidden", "middle.jpg")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".filesage"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0755))

	files, err := NewScanner().Scan(dir)
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"apple.pdf", "middle.jpg", "zebra.txt"}, names,
		"hidden entries and directories are skipped, output is sorted")

	first := files[0]
	assert.Equal(t, filepath.Join(dir, "apple.pdf"), first.Path)
	assert.Equal(t, ".pdf", first.Extension)
	assert.Equal(t, int64(len("content of apple.pdf")), first.Size)
	assert.False(t, first.IsDir)
}

func TestScan_IncludeDirs(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "a.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "photos"), 0755))

	s := &Scanner{IncludeDirs: true}
	files, err := s.Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byName := map[string]FileDescriptor{}
	for _, f := range files {
		byName[f.Name] = f
	}
	assert.True(t, byName["photos"].IsDir)
	assert.Equal(t, "directory", byName["photos"].Kind())
}

func TestScan_MaxFiles(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "a.txt", "b.txt", "c.txt", "d.txt")

	s := &Scanner{MaxFiles: 2}
	files, err := s.Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestScan_MissingDirectory(t *testing.T) {
	_, err := NewScanner().Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image"},
		{".JPG", "image"},
		{".mp4", "video"},
		{".pdf", "document"},
		{".csv", "spreadsheet"},
		{".zip", "archive"},
		{".go", "code"},
		{".xyz", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		f := FileDescriptor{Name: "f" + tt.ext, Extension: tt.ext}
		assert.Equal(t, tt.want, f.Kind(), "extension %q", tt.ext)
	}
}
