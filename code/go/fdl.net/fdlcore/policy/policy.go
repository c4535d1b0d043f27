package policy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/registry"
)

// Allowed reports whether a principal holding groups may pass the allow list.
// An empty list means the gate is open; otherwise any case-insensitive
// intersection admits.
func Allowed(allowList, groups []string) bool {
	if len(allowList) == 0 {
		return true
	}
	held := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			held[strings.ToLower(g)] = true
		}
	}
	for _, want := range allowList {
		if held[strings.ToLower(strings.TrimSpace(want))] {
			return true
		}
	}
	return false
}

// CheckReferrer verifies a download or delete request originated from the
// listing page. Only the page location and its id query value count; other
// query parameters on the referrer are ignored. A mismatch fails the whole
// request.
func CheckReferrer(r *http.Request, pageURL string) error {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.String() == "" {
		return common.ErrUnauthorized
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return common.ErrUnauthorized
	}
	if originPath(ref) != originPath(page) {
		return common.ErrUnauthorized
	}
	if ref.Query().Get("id") != page.Query().Get("id") {
		return common.ErrUnauthorized
	}
	return nil
}

func originPath(u *url.URL) string {
	return u.Host + strings.TrimSuffix(u.Path, "/")
}

// VerifyEntry checks a hash-resolved registry row against the active request.
// A hash minted for another context or media source is silently refused.
func VerifyEntry(entry *registry.PathEntry, requestCtx string, mediaSourceID int) error {
	if entry == nil {
		return common.ErrNotFound
	}
	if entry.Ctx != requestCtx || entry.MediaSourceID != mediaSourceID {
		return common.ErrNotPermitted
	}
	return nil
}
