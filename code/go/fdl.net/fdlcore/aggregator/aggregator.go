package aggregator

import (
	"context"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/logging"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/hooks"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/ledger"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/mediasource"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/policy"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/registry"
)

// Aggregator assembles one listing. It holds only request-scoped inputs and
// returns an immutable Bundle; nothing is accumulated between calls.
type Aggregator struct {
	Backend    mediasource.Backend
	Dispatcher *hooks.Dispatcher
	Settings   *config.Settings

	// Ctx is the tenant context the request runs under.
	Ctx      string
	PageURL  string
	BasePath string
	CorePath string

	User   int64
	Groups []string

	// Descriptions maps canonical paths to admin text, parsed from the
	// description chunk.
	Descriptions map[string]string
	// Images maps lowercase extensions to icon names; "default" is the
	// fallback.
	Images map[string]string
}

// GetContents walks the configured roots and explicit files and returns the
// merged, deduplicated, ordered listing.
func (a *Aggregator) GetContents(ctx context.Context) (*Bundle, error) {
	if a.fire(ctx, hooks.Load, &hooks.Payload{Ctx: a.Ctx, MediaSourceID: a.Settings.MediaSourceID}) != hooks.Continue {
		return &Bundle{}, nil
	}

	var merged []Record
	for _, root := range a.Settings.GetDir {
		records, outcome := a.collectRoot(ctx, root)
		merged = append(merged, records...)
		if outcome == hooks.Abort {
			break
		}
	}
	for _, spec := range a.Settings.GetFile {
		record, err := a.collectFile(ctx, spec)
		if err != nil {
			logging.Logger.Warn("skipping file", zap.String("file", spec), zap.Error(err))
			continue
		}
		merged = append(merged, *record)
	}

	bundle := &Bundle{}
	seen := map[string]bool{}
	deduped := merged[:0]
	for _, r := range merged {
		if seen[r.FullPath] {
			continue
		}
		seen[r.FullPath] = true
		if r.Type == TypeDir {
			bundle.DirCount++
		} else {
			bundle.FileCount++
		}
		deduped = append(deduped, r)
	}

	for i := range deduped {
		if desc, ok := a.Descriptions[strings.TrimSuffix(deduped[i].FullPath, a.Backend.Separator())]; ok {
			deduped[i].Description = desc
		}
	}

	ordered, groupKeys := orderRecords(deduped, a.Settings, a.Backend.Separator())
	bundle.GroupKeys = groupKeys
	bundle.Total = bundle.FileCount
	bundle.Records = a.paginate(ordered)
	bundle.Breadcrumbs = a.breadcrumbs(ctx)
	return bundle, nil
}

// collectRoot enumerates one root. A canonicalization failure or hook veto
// drops the root without failing the aggregation; the returned outcome tells
// the caller whether to keep going with further roots.
func (a *Aggregator) collectRoot(ctx context.Context, root string) ([]Record, hooks.Outcome) {
	dir, err := a.Backend.Canonicalize(root)
	if err != nil {
		logging.Logger.Warn("skipping root", zap.String("root", root), zap.Error(err))
		return nil, hooks.Skip
	}

	sep := a.Backend.Separator()
	dirName := dir
	if !strings.HasSuffix(dirName, sep) {
		dirName += sep
	}
	rootEntry, err := registry.ResolveOrCreate(ctx, a.Settings.SaltText, a.Ctx,
		a.Settings.MediaSourceID, dirName, nil, a.Settings.ExtendedFields)
	if err != nil {
		logging.Logger.Warn("skipping root", zap.String("root", root), zap.Error(err))
		return nil, hooks.Skip
	}

	payload := &hooks.Payload{
		Hash: rootEntry.Hash, Ctx: a.Ctx,
		MediaSourceID: a.Settings.MediaSourceID, Path: dirName,
	}
	if outcome := a.fire(ctx, hooks.BeforeDirOpen, payload); outcome != hooks.Continue {
		return nil, outcome
	}

	entries, err := a.Backend.List(ctx, dir)
	if err != nil {
		logging.Logger.Warn("skipping root", zap.String("root", root), zap.Error(err))
		return nil, hooks.Skip
	}

	var records []Record
	for _, fi := range entries {
		if fi.IsDir {
			if !a.Settings.BrowseDirectories {
				continue
			}
			if !a.Settings.ShowEmptyDirectory && a.dirIsEmpty(ctx, fi.FullPath) {
				continue
			}
			record, err := a.buildDirRecord(ctx, fi)
			if err != nil {
				logging.Logger.Warn("skipping entry", zap.String("path", fi.FullPath), zap.Error(err))
				continue
			}
			records = append(records, *record)
			continue
		}
		if !a.extAllowed(fi.Name) {
			continue
		}
		record, err := a.buildFileRecord(ctx, fi, "")
		if err != nil {
			logging.Logger.Warn("skipping entry", zap.String("path", fi.FullPath), zap.Error(err))
			continue
		}
		records = append(records, *record)
	}

	if outcome := a.fire(ctx, hooks.AfterDirOpen, payload); outcome != hooks.Continue {
		return nil, outcome
	}
	return records, hooks.Continue
}

// collectFile resolves one explicit file, accepting "path|alias" notation.
func (a *Aggregator) collectFile(ctx context.Context, spec string) (*Record, error) {
	alias := ""
	if i := strings.Index(spec, "|"); i >= 0 {
		alias = strings.TrimSpace(spec[i+1:])
		spec = spec[:i]
	}
	p, err := a.Backend.Canonicalize(spec)
	if err != nil {
		return nil, err
	}
	fi, err := a.Backend.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	return a.buildFileRecord(ctx, *fi, alias)
}

func (a *Aggregator) buildFileRecord(ctx context.Context, fi mediasource.FileInfo, alias string) (*Record, error) {
	entry, err := registry.ResolveOrCreate(ctx, a.Settings.SaltText, a.Ctx,
		a.Settings.MediaSourceID, fi.FullPath, nil, a.Settings.ExtendedFields)
	if err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fi.Name)), ".")
	record := &Record{
		Ctx:      a.Ctx,
		FullPath: fi.FullPath,
		Path:     strings.TrimSuffix(fi.FullPath, fi.Name),
		Filename: fi.Name,
		Alias:    alias,
		Type:     TypeFile,
		Ext:      ext,
		Size:     fi.Size,
		SizeText: mediasource.SizeText(fi.Size),
		UnixDate: fi.ModTime.Unix(),
		Date:     fi.ModTime.Format(a.Settings.DateFormat),
		Image:    a.icon(ext),
		Hash:     entry.Hash,
	}
	if fi.ModTime.IsZero() {
		record.UnixDate = 0
		record.Date = ""
	}

	record.Link = a.fileLink(fi.FullPath, entry.Hash)
	if policy.Allowed(a.Settings.DeleteGroups, a.Groups) {
		record.DeleteLink = a.indirectLink("fdldelete", entry.Hash)
	}

	if a.Settings.CountDownloads {
		counts, err := ledger.GetCounts(ctx, entry.ID, a.User)
		if err != nil {
			return nil, err
		}
		record.Count = counts.Total
		if a.Settings.CountUserDownloads {
			record.Count = counts.ByUser
		}
	}

	if extended, err := entry.GetExtendedFields(); err == nil && len(extended) > 0 {
		record.Extended = extended
	}
	return record, nil
}

func (a *Aggregator) buildDirRecord(ctx context.Context, fi mediasource.FileInfo) (*Record, error) {
	entry, err := registry.ResolveOrCreate(ctx, a.Settings.SaltText, a.Ctx,
		a.Settings.MediaSourceID, fi.FullPath, nil, a.Settings.ExtendedFields)
	if err != nil {
		return nil, err
	}

	record := &Record{
		Ctx:      a.Ctx,
		FullPath: fi.FullPath,
		Path:     strings.TrimSuffix(strings.TrimSuffix(fi.FullPath, a.Backend.Separator()), fi.Name),
		Filename: fi.Name,
		Type:     TypeDir,
		SizeText: mediasource.SizeText(0),
		UnixDate: fi.ModTime.Unix(),
		Date:     fi.ModTime.Format(a.Settings.DateFormat),
		Image:    a.icon("dir"),
		Hash:     entry.Hash,
		Link:     a.indirectLink("fdldir", entry.Hash),
	}
	if fi.ModTime.IsZero() {
		record.UnixDate = 0
		record.Date = ""
	}
	if policy.Allowed(a.Settings.DeleteGroups, a.Groups) {
		record.DeleteLink = a.indirectLink("fdldelete", entry.Hash)
	}

	if a.Settings.CountDownloads {
		ids, err := registry.PathIDsUnder(ctx, a.Ctx, a.Settings.MediaSourceID,
			fi.FullPath, a.Backend.Separator())
		if err != nil {
			return nil, err
		}
		record.Count, err = ledger.CountForPaths(ctx, ids)
		if err != nil {
			return nil, err
		}
		record.CountNew, err = ledger.ZeroDownloadCount(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	return record, nil
}

// fileLink prefers a direct URL when allowed; eligibility is strictly
// prefix-anchored on the public root and never inside the platform core.
func (a *Aggregator) fileLink(fullPath, hash string) string {
	if a.Settings.DirectLink || a.Settings.NoDownload {
		if a.directLinkEligible(fullPath) {
			if u, err := a.Backend.ObjectURL(fullPath); err == nil {
				return u
			}
		}
	}
	return a.indirectLink("fdlfile", hash)
}

func (a *Aggregator) directLinkEligible(fullPath string) bool {
	if !a.Backend.Caps().CanObjectURL {
		return false
	}
	if a.BasePath != "" && !strings.HasPrefix(fullPath, a.BasePath) {
		return false
	}
	if a.CorePath != "" && strings.HasPrefix(fullPath, a.CorePath) {
		return false
	}
	return true
}

func (a *Aggregator) indirectLink(param, hash string) string {
	q := url.Values{}
	q.Set(param, hash)
	if a.Settings.FdlID != "" {
		q.Set("fdlid", a.Settings.FdlID)
	}
	sep := "?"
	if strings.Contains(a.PageURL, "?") {
		sep = "&"
	}
	return a.PageURL + sep + q.Encode()
}

func (a *Aggregator) extAllowed(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, hidden := range a.Settings.ExtHidden {
		if strings.EqualFold(strings.TrimSpace(hidden), ext) {
			return false
		}
	}
	if len(a.Settings.ExtShown) == 0 {
		return true
	}
	for _, shown := range a.Settings.ExtShown {
		if strings.EqualFold(strings.TrimSpace(shown), ext) {
			return true
		}
	}
	return false
}

func (a *Aggregator) dirIsEmpty(ctx context.Context, dir string) bool {
	entries, err := a.Backend.List(ctx, strings.TrimSuffix(dir, a.Backend.Separator()))
	return err == nil && len(entries) == 0
}

func (a *Aggregator) icon(ext string) string {
	icon, ok := a.Images[ext]
	if !ok {
		icon = a.Images["default"]
	}
	if icon == "" {
		return ""
	}
	return a.Settings.ImgLocat + icon
}

// paginate slices the file tail of the ordered list. It only applies when a
// single root is browsed without directory grouping; Total keeps the
// pre-slice file count either way.
func (a *Aggregator) paginate(records []Record) []Record {
	if a.Settings.Limit <= 0 && a.Settings.Offset <= 0 {
		return records
	}
	if len(a.Settings.GetDir) != 1 || a.Settings.GroupByDirectory {
		return records
	}

	split := 0
	for split < len(records) && records[split].Type == TypeDir {
		split++
	}
	dirs, files := records[:split], records[split:]

	offset := a.Settings.Offset
	if offset > len(files) {
		offset = len(files)
	}
	files = files[offset:]
	if a.Settings.Limit > 0 && a.Settings.Limit < len(files) {
		files = files[:a.Settings.Limit]
	}
	return append(append([]Record{}, dirs...), files...)
}

// breadcrumbs resolves the trail from the configured root down to the active
// directory. Ancestors are looked up without autocreation; the last crumb is
// plain text.
func (a *Aggregator) breadcrumbs(ctx context.Context) []Crumb {
	if len(a.Settings.GetDir) != 1 || len(a.Settings.OrigDir) != 1 {
		return nil
	}
	sep := a.Backend.Separator()
	orig := strings.TrimSuffix(a.Settings.OrigDir[0], sep)
	current := strings.TrimSuffix(a.Settings.GetDir[0], sep)
	if orig == current || !strings.HasPrefix(current, orig+sep) {
		return nil
	}

	crumbs := []Crumb{{Title: path.Base(strings.ReplaceAll(orig, sep, "/")), Link: a.PageURL}}
	rel := strings.TrimPrefix(current, orig+sep)
	walk := orig
	segments := strings.Split(rel, sep)
	for i, seg := range segments {
		walk += sep + seg
		if i == len(segments)-1 {
			crumbs = append(crumbs, Crumb{Title: seg})
			break
		}
		crumb := Crumb{Title: seg}
		if entry, err := registry.Lookup(ctx, a.Ctx, a.Settings.MediaSourceID, walk+sep); err == nil {
			crumb.Link = a.indirectLink("fdldir", entry.Hash)
		}
		crumbs = append(crumbs, crumb)
	}
	return crumbs
}

func (a *Aggregator) fire(ctx context.Context, event hooks.Event, payload *hooks.Payload) hooks.Outcome {
	if a.Dispatcher == nil {
		return hooks.Continue
	}
	return a.Dispatcher.Fire(ctx, event, payload)
}
