package mediasource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeText(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 bytes"},
		{1, "1 B"},
		{1024, "1024 B"},
		{1536, "1.5 kB"},
		{2048, "2 kB"},
		{1 << 20, "1024 kB"},
		{5 << 20, "5 MB"},
		{3*(1<<20) + 1, "3.01 MB"},
		{2 << 30, "2 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SizeText(tt.size), "size %d", tt.size)
	}
}

func newTestDirect(t *testing.T) (*Direct, string) {
	t.Helper()
	root := t.TempDir()
	forbidden := filepath.Join(root, "core")
	require.NoError(t, os.MkdirAll(forbidden, 0755))
	d := NewDirect("https://cdn.example.com",
		[]string{".", "..", "Thumbs.db", ".htaccess"},
		[]string{forbidden})
	return d, root
}

func TestDirectCanonicalize(t *testing.T) {
	d, root := newTestDirect(t)

	sub := filepath.Join(root, "files")
	require.NoError(t, os.MkdirAll(sub, 0755))

	got, err := d.Canonicalize(filepath.Join(root, "files", "..", "files"))
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(sub)
	assert.Equal(t, resolved, got)

	_, err = d.Canonicalize(filepath.Join(root, "core", "config"))
	assert.Error(t, err, "forbidden tree must be rejected")

	_, err = d.Canonicalize(filepath.Join(root, "does-not-exist"))
	assert.Error(t, err)
}

func TestDirectList(t *testing.T) {
	d, root := newTestDirect(t)

	dir := filepath.Join(root, "files")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Thumbs.db"), []byte("x"), 0644))

	entries, err := d.List(context.TODO(), dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "excluded names must not be listed")

	assert.Equal(t, "a.txt", entries[0].Name)
	assert.False(t, entries[0].IsDir)
	assert.EqualValues(t, 5, entries[0].Size)

	assert.Equal(t, "sub", entries[1].Name)
	assert.True(t, entries[1].IsDir)
	assert.True(t, strings.HasSuffix(entries[1].FullPath, d.Separator()),
		"directory paths carry a trailing separator")
}

func TestDirectOpenForRead(t *testing.T) {
	d, root := newTestDirect(t)

	file := filepath.Join(root, "data.bin")
	require.NoError(t, os.WriteFile(file, []byte("payload"), 0644))

	rc, size, err := d.OpenForRead(context.TODO(), file)
	require.NoError(t, err)
	defer rc.Close()
	assert.EqualValues(t, 7, size)

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	_, _, err = d.OpenForRead(context.TODO(), filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestDirectWriteRefusesOverwrite(t *testing.T) {
	d, root := newTestDirect(t)

	target := filepath.Join(root, "upload.txt")
	require.NoError(t, d.Write(context.TODO(), target, strings.NewReader("first")))

	err := d.Write(context.TODO(), target, strings.NewReader("second"))
	require.Error(t, err)

	body, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "first", string(body), "existing content must survive")
}

func TestDirectDelete(t *testing.T) {
	d, root := newTestDirect(t)

	file := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	require.NoError(t, d.Delete(context.TODO(), file))
	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, d.Delete(context.TODO(), file), "second delete reports not found")
}

func TestDirectObjectURL(t *testing.T) {
	d, _ := newTestDirect(t)

	url, err := d.ObjectURL("/assets/files/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/assets/files/report.pdf", url)

	bare := NewDirect("", nil, nil)
	assert.False(t, bare.Caps().CanObjectURL)
	_, err = bare.ObjectURL("/assets/files/report.pdf")
	assert.Error(t, err)
}

func TestS3Canonicalize(t *testing.T) {
	s := &S3{}

	got, err := s.Canonicalize("assets\\files\\a.txt")
	require.NoError(t, err)
	assert.Equal(t, "/assets/files/a.txt", got)

	got, err = s.Canonicalize("/assets/files/")
	require.NoError(t, err)
	assert.Equal(t, "/assets/files/", got, "trailing separator survives for directories")

	_, err = s.Canonicalize("/assets/../../etc/passwd")
	assert.Error(t, err)
}
