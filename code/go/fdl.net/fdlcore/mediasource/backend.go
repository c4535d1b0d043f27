package mediasource

import (
	"context"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
)

// Capabilities is resolved once when a backend is constructed. Handlers read
// the struct instead of probing the backend at request time.
type Capabilities struct {
	CanObjectURL bool
	CanList      bool
	CanFileSize  bool
	CanContents  bool
	CanCreate    bool
	CanRemove    bool
}

// FileInfo describes one entry of a media source. FullPath of a directory
// always carries the backend separator as suffix.
type FileInfo struct {
	Name     string
	FullPath string
	IsDir    bool
	Size     int64
	ModTime  time.Time
}

// Backend abstracts where the files live. Paths passed in are already
// canonical for the backend (see Canonicalize).
type Backend interface {
	Caps() Capabilities
	Separator() string

	// Canonicalize normalizes a caller-supplied path and rejects anything
	// outside the allowed tree. The returned path is what gets registered.
	Canonicalize(path string) (string, error)

	// List returns the immediate children of dir, excludes already applied.
	List(ctx context.Context, dir string) ([]FileInfo, error)

	Stat(ctx context.Context, path string) (*FileInfo, error)

	// OpenForRead hands back the content and its size. The caller must Close
	// the reader; backends that spool remove their temp file on Close.
	OpenForRead(ctx context.Context, path string) (io.ReadCloser, int64, error)

	// Write stores new content at path and fails if path already exists.
	Write(ctx context.Context, path string, r io.Reader) error

	Delete(ctx context.Context, path string) error

	// ObjectURL returns a directly fetchable URL for path. Only valid when
	// Caps().CanObjectURL holds.
	ObjectURL(path string) (string, error)
}

var errNotCapable = common.NewError("not_capable", "media source does not support this operation")

// SizeText renders a byte count the way the listing shows it: 1024-based
// units, ceiling-rounded to two decimals, trailing zeros trimmed.
func SizeText(size int64) string {
	if size == 0 {
		return "0 bytes"
	}
	switch {
	case size > 1<<30:
		return ceilText(float64(size)/(1<<30)) + " GB"
	case size > 1<<20:
		return ceilText(float64(size)/(1<<20)) + " MB"
	case size > 1<<10:
		return ceilText(float64(size)/(1<<10)) + " kB"
	default:
		return strconv.FormatInt(size, 10) + " B"
	}
}

func ceilText(v float64) string {
	return strconv.FormatFloat(math.Ceil(v*100)/100, 'f', -1, 64)
}
