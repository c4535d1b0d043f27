package handler

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/hooks"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/policy"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/registry"
)

// UploadField is the multipart form field carrying the file.
const UploadField = "fdlupload"

// UploadHandler stores a new file in the active browse directory. Uploads
// are gated by group, MIME allow-list, size ceiling, and never overwrite.
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx, err := WithContext(r, app.Settings)
	if err != nil {
		common.Respond(w, nil, err)
		return
	}
	data, err := uploadFile(ctx, w, r)
	common.Respond(w, data, err)
}

func uploadFile(ctx *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if !ctx.Settings.UploadFile {
		return nil, common.ErrNotPermitted
	}
	if !policy.Allowed(ctx.Settings.UploadGroups, ctx.Groups) {
		return nil, common.ErrNotPermitted
	}
	if len(ctx.Settings.GetDir) != 1 {
		return nil, common.InvalidRequest("uploads need exactly one active directory")
	}

	maxSize := ctx.Settings.UploadMaxSize
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, common.NewErrorfWithStatusCode(http.StatusRequestEntityTooLarge,
			"upload_too_large", "%v", err)
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		return nil, common.InvalidRequest("missing upload field")
	}
	defer file.Close()

	if maxSize > 0 && header.Size > maxSize {
		return nil, common.NewErrorfWithStatusCode(http.StatusRequestEntityTooLarge,
			"upload_too_large", "file exceeds %d bytes", maxSize)
	}
	if !mimeAllowed(header.Header.Get("Content-Type"), ctx.Settings.UploadFileTypes) {
		return nil, common.NewError("upload_type", "file type not allowed")
	}

	name := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, common.InvalidRequest("malformed filename")
	}

	dir, err := app.Backend.Canonicalize(ctx.Settings.GetDir[0])
	if err != nil {
		return nil, err
	}
	sep := app.Backend.Separator()
	dest := strings.TrimSuffix(dir, sep) + sep + name

	payload := &hooks.Payload{
		Ctx:           ctx.CtxKey,
		MediaSourceID: ctx.Settings.MediaSourceID,
		Path:          dest,
	}
	if app.Dispatcher.Fire(ctx, hooks.BeforeFileUpload, payload) != hooks.Continue {
		return nil, common.ErrNotPermitted
	}

	if err := app.Backend.Write(ctx, dest, file); err != nil {
		return nil, err
	}

	var entry *registry.PathEntry
	err = datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		var err error
		entry, err = registry.ResolveOrCreate(tctx, ctx.Settings.SaltText,
			ctx.CtxKey, ctx.Settings.MediaSourceID, dest, nil, ctx.Settings.ExtendedFields)
		return err
	})
	if err != nil {
		return nil, err
	}

	payload.Hash = entry.Hash
	app.Dispatcher.Fire(ctx, hooks.AfterFileUpload, payload)

	return map[string]interface{}{
		"uploaded": true,
		"filename": name,
		"hash":     entry.Hash,
	}, nil
}

func mimeAllowed(contentType string, allowList []string) bool {
	if len(allowList) == 0 {
		return true
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	for _, allowed := range allowList {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return true
		}
	}
	return false
}
