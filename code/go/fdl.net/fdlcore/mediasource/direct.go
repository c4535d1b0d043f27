package mediasource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
)

// Direct serves files straight from the local filesystem.
type Direct struct {
	baseURL   string
	excludes  map[string]bool
	forbidden []string
}

// NewDirect builds a filesystem backend. baseURL, when set, makes entries
// directly linkable; forbidden is the list of path prefixes that must never
// be served (core and manager trees).
func NewDirect(baseURL string, excludeScan []string, forbidden []string) *Direct {
	excludes := make(map[string]bool, len(excludeScan))
	for _, name := range excludeScan {
		if name = strings.TrimSpace(name); name != "" {
			excludes[name] = true
		}
	}
	cleaned := make([]string, 0, len(forbidden))
	for _, p := range forbidden {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, filepath.Clean(p))
		}
	}
	return &Direct{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		excludes:  excludes,
		forbidden: cleaned,
	}
}

func (d *Direct) Caps() Capabilities {
	return Capabilities{
		CanObjectURL: d.baseURL != "",
		CanList:      true,
		CanFileSize:  true,
		CanContents:  true,
		CanCreate:    true,
		CanRemove:    true,
	}
}

func (d *Direct) Separator() string {
	return string(os.PathSeparator)
}

func (d *Direct) Canonicalize(path string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	resolved, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		return "", common.NewErrorf("invalid_path", "cannot resolve %v: %v", path, err)
	}
	for _, prefix := range d.forbidden {
		if resolved == prefix || strings.HasPrefix(resolved, prefix+string(os.PathSeparator)) {
			return "", common.ErrNotPermitted
		}
	}
	return resolved, nil
}

func (d *Direct) List(_ context.Context, dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewErrorf("dir_open", "reading %v: %v", dir, err)
	}
	sep := d.Separator()
	out := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if d.excludes[name] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fi := FileInfo{
			Name:     name,
			FullPath: filepath.Join(dir, name),
			IsDir:    entry.IsDir(),
			ModTime:  info.ModTime(),
		}
		if fi.IsDir {
			fi.FullPath += sep
		} else {
			fi.Size = info.Size()
		}
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *Direct) Stat(_ context.Context, path string) (*FileInfo, error) {
	info, err := os.Stat(strings.TrimSuffix(path, d.Separator()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound
		}
		return nil, common.NewErrorf("stat_failed", "%v", err)
	}
	fi := &FileInfo{
		Name:     info.Name(),
		FullPath: path,
		IsDir:    info.IsDir(),
		ModTime:  info.ModTime(),
	}
	if !fi.IsDir {
		fi.Size = info.Size()
	}
	return fi, nil
}

func (d *Direct) OpenForRead(_ context.Context, path string) (io.ReadCloser, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, common.ErrNotFound
		}
		return nil, 0, common.NewErrorf("stat_failed", "%v", err)
	}
	if info.IsDir() {
		return nil, 0, common.NewError("invalid_path", "cannot download a directory")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, common.NewErrorf("file_open", "%v", err)
	}
	return f, info.Size(), nil
}

func (d *Direct) Write(_ context.Context, path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return common.NewError("file_exists", "destination already exists")
		}
		return common.NewErrorf("file_write", "%v", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return common.NewErrorf("file_write", "%v", err)
	}
	return f.Close()
}

func (d *Direct) Delete(_ context.Context, path string) error {
	path = strings.TrimSuffix(path, d.Separator())
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return common.ErrNotFound
		}
		return common.NewErrorf("stat_failed", "%v", err)
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return common.NewErrorf("file_delete", "%v", err)
	}
	return nil
}

func (d *Direct) ObjectURL(path string) (string, error) {
	if d.baseURL == "" {
		return "", errNotCapable
	}
	return d.baseURL + "/" + strings.TrimPrefix(filepath.ToSlash(path), "/"), nil
}
