package handler

import (
	"context"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/logging"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/geoip"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/hooks"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/ledger"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/policy"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/registry"
)

const downloadChunkSize = 1024 * 1024

// findVerifiedEntry resolves a public hash and applies the policy layer: the
// entry must belong to the request's context and media source, and the
// browse gate must admit the principal.
func findVerifiedEntry(tctx context.Context, ctx *Context, hash string) (*registry.PathEntry, error) {
	entry, err := registry.FindByHash(tctx, hash)
	if err != nil {
		return nil, err
	}
	if err := policy.VerifyEntry(entry, ctx.CtxKey, ctx.Settings.MediaSourceID); err != nil {
		return nil, err
	}
	if !policy.Allowed(ctx.Settings.UserGroups, ctx.Groups) {
		return nil, common.ErrNotPermitted
	}
	return entry, nil
}

// DownloadHandler streams one file to completion and only then writes the
// ledger row. A forged referrer terminates the request before any byte is
// sent.
func DownloadHandler(w http.ResponseWriter, ctx *Context, hash string) {
	if err := policy.CheckReferrer(ctx.Request, config.Configuration.PageURL); err != nil {
		common.Respond(w, nil, err)
		return
	}

	var entry *registry.PathEntry
	err := datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		var err error
		entry, err = findVerifiedEntry(tctx, ctx, hash)
		return err
	})
	if err != nil {
		common.Respond(w, nil, err)
		return
	}
	if strings.HasSuffix(entry.Filename, app.Backend.Separator()) {
		common.Respond(w, nil, common.InvalidRequest("a directory cannot be downloaded"))
		return
	}

	extended, _ := entry.GetExtendedFields()
	payload := &hooks.Payload{
		Hash: entry.Hash, Ctx: entry.Ctx,
		MediaSourceID: entry.MediaSourceID,
		Path:          entry.Filename, Extended: extended,
	}
	if app.Dispatcher.Fire(ctx, hooks.BeforeFileDownload, payload) != hooks.Continue {
		common.Respond(w, nil, common.ErrNotPermitted)
		return
	}

	rc, size, err := app.Backend.OpenForRead(ctx, entry.Filename)
	if err != nil {
		common.Respond(w, nil, err)
		return
	}
	defer rc.Close()

	info, _ := app.Backend.Stat(ctx, entry.Filename)

	name := path.Base(strings.ReplaceAll(entry.Filename, app.Backend.Separator(), "/"))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if info != nil && !info.ModTime.IsZero() {
		w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	}

	if !streamFile(w, ctx.Request, rc) {
		logging.Logger.Info("download aborted by client",
			zap.String("path", entry.Filename))
		return
	}

	finalizeDownload(ctx, entry, payload)
}

// streamFile copies in fixed chunks, checking for a client disconnect
// between chunks. Returns false when the stream did not complete.
func streamFile(w http.ResponseWriter, r *http.Request, rc io.Reader) bool {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, downloadChunkSize)
	for {
		select {
		case <-r.Context().Done():
			return false
		default:
		}
		n, err := rc.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return false
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return true
		}
		if err != nil {
			logging.Logger.Error("download stream failed", zap.Error(err))
			return false
		}
	}
}

// finalizeDownload records the ledger row and fires the after hook. The
// download already succeeded, so failures here are logged, never surfaced.
func finalizeDownload(ctx *Context, entry *registry.PathEntry, payload *hooks.Payload) {
	if !ctx.Settings.CountDownloads {
		app.Dispatcher.Fire(ctx, hooks.AfterFileDownload, payload)
		return
	}

	ip := clientIP(ctx.Request)
	var loc *geoip.Location
	if ctx.Settings.UseGeolocation && ctx.Settings.GeoAPIKey != "" {
		var err error
		loc, err = geoip.NewClient(ctx.Settings.GeoAPIKey).Lookup(ctx, ip)
		if err != nil {
			logging.Logger.Warn("geolocation lookup failed",
				zap.String("ip", ip), zap.Error(err))
		}
	}

	err := datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		return ledger.RecordDownload(tctx, entry.ID, ip,
			ctx.Request.Referer(), ctx.User, loc)
	})
	if err != nil {
		logging.Logger.Error("ledger write after download failed",
			zap.Int64("path_id", entry.ID), zap.Error(err))
	}

	err = datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		counts, cerr := ledger.GetCounts(tctx, entry.ID, ctx.User)
		if cerr == nil {
			payload.Count = counts.Total
		}
		return nil
	})
	if err == nil {
		app.Dispatcher.Fire(ctx, hooks.AfterFileDownload, payload)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// DeleteHandler removes a file or directory addressed by hash. The file goes
// first, the registry second; a crash in between leaves an orphan row, not a
// dangling link.
func DeleteHandler(w http.ResponseWriter, ctx *Context, hash string) {
	if err := policy.CheckReferrer(ctx.Request, config.Configuration.PageURL); err != nil {
		common.Respond(w, nil, err)
		return
	}

	var entry *registry.PathEntry
	err := datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		var err error
		entry, err = findVerifiedEntry(tctx, ctx, hash)
		return err
	})
	if err != nil {
		common.Respond(w, nil, err)
		return
	}
	if !policy.Allowed(ctx.Settings.DeleteGroups, ctx.Groups) {
		common.Respond(w, nil, common.ErrNotPermitted)
		return
	}

	payload := &hooks.Payload{
		Hash: entry.Hash, Ctx: entry.Ctx,
		MediaSourceID: entry.MediaSourceID, Path: entry.Filename,
	}
	if app.Dispatcher.Fire(ctx, hooks.BeforeFileDelete, payload) != hooks.Continue {
		common.Respond(w, nil, common.ErrNotPermitted)
		return
	}

	if err := app.Backend.Delete(ctx, entry.Filename); err != nil {
		common.Respond(w, nil, err)
		return
	}
	err = datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		return registry.DeleteSubtree(tctx, entry, app.Backend.Separator())
	})
	if err != nil {
		common.Respond(w, nil, err)
		return
	}

	app.Dispatcher.Fire(ctx, hooks.AfterFileDelete, payload)
	common.Respond(w, map[string]interface{}{
		"deleted": true,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, nil)
}
