package aggregator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/ledger"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/mediasource"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/registry"
)

func setupAggregator(t *testing.T, files map[string]time.Time) (*Aggregator, context.Context, string) {
	t.Helper()

	_, err := datastore.UseInMemory()
	require.NoError(t, err)
	require.NoError(t, datastore.GetStore().AutoMigrate())
	ctx := datastore.GetStore().CreateTransaction(context.TODO())
	t.Cleanup(func() {
		datastore.GetStore().GetTransaction(ctx).Rollback()
		datastore.GetStore().Close()
	})

	root := t.TempDir()
	for name, mtime := range files {
		full := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
		if !mtime.IsZero() {
			require.NoError(t, os.Chtimes(full, mtime, mtime))
		}
	}

	settings := config.Settings{
		GetDir:            []string{root},
		BrowseDirectories: true,
		SortBy:            "filename",
		SortOrder:         "asc",
		SortOrderNatural:  true,
		DateFormat:        "2006-01-02",
		SaltText:          "testsalt",
	}
	agg := &Aggregator{
		Backend:  mediasource.NewDirect("", []string{".", ".."}, nil),
		Settings: &settings,
		Ctx:      "web",
		PageURL:  "https://example.com/downloads",
		Images:   map[string]string{"txt": "text.png", "dir": "folder.png", "default": "file.png"},
	}
	return agg, ctx, root
}

func names(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Filename)
	}
	return out
}

func TestGetContentsBasic(t *testing.T) {
	agg, ctx, _ := setupAggregator(t, map[string]time.Time{
		"report.pdf":        {},
		"archive/inner.txt": {},
	})

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	require.Len(t, bundle.Records, 2)

	assert.Equal(t, 1, bundle.DirCount)
	assert.Equal(t, 1, bundle.FileCount)
	assert.Equal(t, 1, bundle.Total)

	dir, file := bundle.Records[0], bundle.Records[1]
	assert.Equal(t, TypeDir, dir.Type, "directories sort ahead of files")
	assert.Equal(t, "archive", dir.Filename)
	assert.Contains(t, dir.Link, "fdldir=")

	assert.Equal(t, TypeFile, file.Type)
	assert.Equal(t, "report.pdf", file.Filename)
	assert.NotEmpty(t, file.Hash)
	assert.Contains(t, file.Link, "fdlfile="+file.Hash)
	assert.Empty(t, file.DeleteLink, "no delete groups configured means no delete link")
	assert.Equal(t, "file.png", file.Image, "unknown extension falls back to the default icon")
}

func TestGetContentsDedup(t *testing.T) {
	agg, ctx, root := setupAggregator(t, map[string]time.Time{"a.txt": {}})
	agg.Settings.GetFile = []string{filepath.Join(root, "a.txt") + "|Handbook"}

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Len(t, bundle.Records, 1, "root scan and explicit file dedup by full path")
	assert.Equal(t, 1, bundle.FileCount)

	again, err := agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, names(bundle.Records), names(again.Records), "aggregation is idempotent")
}

func TestGetContentsSortByName(t *testing.T) {
	agg, ctx, _ := setupAggregator(t, map[string]time.Time{
		"b.txt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"a.txt": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		"c.txt": time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	})

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names(bundle.Records))

	agg.Settings.SortBy = "date"
	agg.Settings.SortOrder = "desc"
	bundle, err = agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt", "b.txt"}, names(bundle.Records))
}

func TestGetContentsNaturalSort(t *testing.T) {
	agg, ctx, _ := setupAggregator(t, map[string]time.Time{
		"file10.txt": {}, "file2.txt": {}, "file1.txt": {},
	})

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"file1.txt", "file2.txt", "file10.txt"}, names(bundle.Records))

	agg.Settings.SortOrderNatural = false
	bundle, err = agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"file1.txt", "file10.txt", "file2.txt"}, names(bundle.Records))
}

func TestGetContentsExtFilters(t *testing.T) {
	agg, ctx, _ := setupAggregator(t, map[string]time.Time{
		"a.txt": {}, "b.pdf": {}, "c.exe": {},
	})

	agg.Settings.ExtShown = []string{"txt", "PDF"}
	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.pdf"}, names(bundle.Records))

	agg.Settings.ExtShown = nil
	agg.Settings.ExtHidden = []string{"exe"}
	bundle, err = agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.pdf"}, names(bundle.Records))
}

func TestGetContentsPagination(t *testing.T) {
	agg, ctx, _ := setupAggregator(t, map[string]time.Time{
		"a.txt": {}, "b.txt": {}, "c.txt": {}, "d.txt": {}, "sub/e.txt": {},
	})
	agg.Settings.Offset = 1
	agg.Settings.Limit = 2

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, bundle.Total, "total keeps the pre-slice file count")
	assert.Equal(t, []string{"sub", "b.txt", "c.txt"}, names(bundle.Records),
		"directories survive pagination, files are sliced")
}

func TestGetContentsDirCounts(t *testing.T) {
	agg, ctx, root := setupAggregator(t, map[string]time.Time{
		"archive/a.txt": {}, "archive/b.txt": {},
	})
	agg.Settings.CountDownloads = true

	sep := agg.Backend.Separator()
	dir, err := agg.Backend.Canonicalize(filepath.Join(root, "archive"))
	require.NoError(t, err)
	downloaded, err := registry.ResolveOrCreate(ctx, "testsalt", "web", 0, dir+sep+"a.txt", nil, nil)
	require.NoError(t, err)
	_, err = registry.ResolveOrCreate(ctx, "testsalt", "web", 0, dir+sep+"b.txt", nil, nil)
	require.NoError(t, err)
	require.NoError(t, ledger.RecordDownload(ctx, downloaded.ID, "203.0.113.9", "", 0, nil))

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	require.Len(t, bundle.Records, 1)
	require.Equal(t, TypeDir, bundle.Records[0].Type)
	assert.EqualValues(t, 1, bundle.Records[0].Count, "events under the directory roll up")
	assert.EqualValues(t, 1, bundle.Records[0].CountNew, "one registered file has no event yet")
}

func TestGetContentsDeleteLinkGated(t *testing.T) {
	agg, ctx, _ := setupAggregator(t, map[string]time.Time{"a.txt": {}})
	agg.Settings.DeleteGroups = []string{"Admins"}
	agg.Groups = []string{"admins"}

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	require.Len(t, bundle.Records, 1)
	assert.Contains(t, bundle.Records[0].DeleteLink, "fdldelete=")
}

func TestGetContentsDescriptions(t *testing.T) {
	agg, ctx, root := setupAggregator(t, map[string]time.Time{"a.txt": {}})

	resolved, err := agg.Backend.Canonicalize(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	agg.Descriptions = ParseDescriptions(resolved + "|The yearly report||/other|Ignored")

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	require.Len(t, bundle.Records, 1)
	assert.Equal(t, "The yearly report", bundle.Records[0].Description)
}

func TestParseDescriptions(t *testing.T) {
	got := ParseDescriptions("/files/a.txt|Alpha||/files/b.txt|Beta|| malformed ||")
	assert.Equal(t, map[string]string{
		"/files/a.txt": "Alpha",
		"/files/b.txt": "Beta",
	}, got)
}

func TestGetContentsGroupByDirectory(t *testing.T) {
	agg, ctx, root := setupAggregator(t, map[string]time.Time{"z/a.txt": {}, "y/b.txt": {}})
	agg.Settings.GetDir = []string{filepath.Join(root, "z"), filepath.Join(root, "y")}
	agg.Settings.GroupByDirectory = true

	bundle, err := agg.GetContents(ctx)
	require.NoError(t, err)
	require.Len(t, bundle.GroupKeys, 2)
	assert.Equal(t, []string{"b.txt", "a.txt"}, names(bundle.Records),
		"groups order by directory name")
}
