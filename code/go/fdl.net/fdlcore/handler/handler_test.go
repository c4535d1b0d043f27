package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/aggregator"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/hooks"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/ledger"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/mediasource"
)

const testPageURL = "https://example.com/downloads"

func setupServer(t *testing.T) (*mux.Router, string) {
	t.Helper()

	_, err := datastore.UseInMemory()
	require.NoError(t, err)
	require.NoError(t, datastore.GetStore().AutoMigrate())
	t.Cleanup(func() { datastore.GetStore().Close() })

	config.Configuration.PageURL = testPageURL
	viper.Set("rate_limiters.file_rps", 1000)
	viper.Set("rate_limiters.general_rps", 1000)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.pdf"), []byte("pdf-bytes"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "archive"), 0755))

	settings := config.Settings{
		GetDir:             []string{root},
		BrowseDirectories:  true,
		ShowEmptyDirectory: true,
		SortBy:             "filename",
		SortOrder:          "asc",
		SortOrderNatural:   true,
		DateFormat:         "2006-01-02",
		SaltText:           "testsalt",
		CountDownloads:     true,
		UploadFile:         true,
		UploadFileTypes:    []string{"text/plain"},
		UploadMaxSize:      1 << 20,
	}
	SetupApp(&App{
		Backend:    mediasource.NewDirect("", []string{".", ".."}, nil),
		Dispatcher: hooks.NewDispatcher(),
		Settings:   settings,
		Images:     map[string]string{"default": "file.png"},
	})

	r := mux.NewRouter()
	SetupHandlers(r)
	return r, root
}

func browse(t *testing.T, router *mux.Router) *aggregator.Bundle {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	bundle := &aggregator.Bundle{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), bundle))
	return bundle
}

func TestBrowseListing(t *testing.T) {
	router, _ := setupServer(t)

	bundle := browse(t, router)
	require.Len(t, bundle.Records, 2)
	assert.Equal(t, 1, bundle.DirCount)
	assert.Equal(t, 1, bundle.FileCount)

	assert.Equal(t, "archive", bundle.Records[0].Filename)
	assert.Equal(t, "dir", bundle.Records[0].Type)
	assert.Equal(t, "report.pdf", bundle.Records[1].Filename)
	assert.NotEmpty(t, bundle.Records[1].Hash)
}

func TestDownloadWithValidReferrer(t *testing.T) {
	router, _ := setupServer(t)
	hash := browse(t, router).Records[1].Hash

	req := httptest.NewRequest(http.MethodGet, "/?fdlfile="+hash, nil)
	req.Header.Set("Referer", testPageURL)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="report.pdf"`)
	assert.Equal(t, "9", w.Header().Get("Content-Length"))

	var rows int64
	require.NoError(t, datastore.GetStore().GetDB().
		Model(&ledger.DownloadEvent{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows, "a completed stream appends exactly one ledger row")
}

func TestDownloadWithForgedReferrer(t *testing.T) {
	router, _ := setupServer(t)
	hash := browse(t, router).Records[1].Hash

	req := httptest.NewRequest(http.MethodGet, "/?fdlfile="+hash, nil)
	req.Header.Set("Referer", "https://evil.example.org/downloads")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "pdf-bytes", "no file bytes on a forged referrer")

	var rows int64
	require.NoError(t, datastore.GetStore().GetDB().
		Model(&ledger.DownloadEvent{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestDownloadUnknownHash(t *testing.T) {
	router, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/?fdlfile=bogus", nil)
	req.Header.Set("Referer", testPageURL)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCrossContextHashRejected(t *testing.T) {
	router, _ := setupServer(t)
	hash := browse(t, router).Records[1].Hash

	req := httptest.NewRequest(http.MethodGet, "/?fdlfile="+hash, nil)
	req.Header.Set("Referer", testPageURL)
	req.Header.Set("X-Fdl-Context", "mgr")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "a hash minted for another context is refused")
}

func TestNavigateDirectory(t *testing.T) {
	router, root := setupServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "archive", "old.txt"), []byte("x"), 0644))

	hash := browse(t, router).Records[0].Hash
	req := httptest.NewRequest(http.MethodGet, "/?fdldir="+hash, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	bundle := &aggregator.Bundle{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), bundle))
	require.Len(t, bundle.Records, 1)
	assert.Equal(t, "old.txt", bundle.Records[0].Filename)
	require.NotEmpty(t, bundle.Breadcrumbs)
	assert.Equal(t, "archive", bundle.Breadcrumbs[len(bundle.Breadcrumbs)-1].Title)
}

func TestDeleteFlow(t *testing.T) {
	router, root := setupServer(t)
	app.Settings.DeleteGroups = []string{"Admins"}

	hash := browse(t, router).Records[1].Hash

	// Without the group the delete is refused.
	req := httptest.NewRequest(http.MethodGet, "/?fdldelete="+hash, nil)
	req.Header.Set("Referer", testPageURL)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/?fdldelete="+hash, nil)
	req.Header.Set("Referer", testPageURL)
	req.Header.Set("X-Fdl-Groups", "admins")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := os.Stat(filepath.Join(root, "report.pdf"))
	assert.True(t, os.IsNotExist(err), "file is gone after delete")
}

func TestUploadFlow(t *testing.T) {
	router, root := setupServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="fdlupload"; filename="notes.txt"`},
		"Content-Type":        {"text/plain"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("uploaded content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "uploaded content", string(stored))

	// A second upload of the same name must not overwrite.
	req = httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body.Bytes()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestUploadWrongType(t *testing.T) {
	router, _ := setupServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="fdlupload"; filename="evil.bin"`},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte{0x00})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// pausingReader hands out one chunk per Read call and runs a callback after
// each one, so a disconnect can land between chunks.
type pausingReader struct {
	chunks []string
	after  func()
	next   int
}

func (r *pausingReader) Read(p []byte) (int, error) {
	if r.next >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.next])
	r.next++
	if r.after != nil {
		r.after()
	}
	return n, nil
}

func TestStreamFileClientDisconnect(t *testing.T) {
	cctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(cctx)
	w := httptest.NewRecorder()

	reader := &pausingReader{chunks: []string{"first", "second"}, after: cancel}
	ok := streamFile(w, req, reader)

	assert.False(t, ok, "a vanished client stops the stream")
	assert.Equal(t, "first", w.Body.String(), "no bytes go out after the disconnect")
}

func TestStreamFileComplete(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	ok := streamFile(w, req, &pausingReader{chunks: []string{"first", "second"}})

	assert.True(t, ok)
	assert.Equal(t, "firstsecond", w.Body.String())
}

func TestHealth(t *testing.T) {
	router, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
