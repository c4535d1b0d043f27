package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
)

// Context is the request-scoped state: the acting principal as declared by
// the host front controller plus the listing settings in effect.
type Context struct {
	context.Context

	// CtxKey is the tenant context the request runs under.
	CtxKey string
	// User is the principal's numeric id, 0 for anonymous.
	User int64
	// Groups are the principal's group names.
	Groups []string

	Settings config.Settings

	Request *http.Request
}

// WithContext reads the principal headers and overlays request options on the
// configured settings.
func WithContext(r *http.Request, settings config.Settings) (*Context, error) {
	ctx := &Context{
		Context:  r.Context(),
		CtxKey:   "web",
		Settings: settings,
		Request:  r,
	}

	if v := r.Header.Get(common.ContextHeader); v != "" {
		ctx.CtxKey = v
	}
	if v := r.Header.Get(common.UserHeader); v != "" {
		user, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, common.NewError("invalid_principal", "malformed user header")
		}
		ctx.User = user
	}
	if v := r.Header.Get(common.UserGroupsHeader); v != "" {
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimSpace(g); g != "" {
				ctx.Groups = append(ctx.Groups, g)
			}
		}
	}

	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			ctx.Settings.Offset = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			ctx.Settings.Limit = n
		}
	}
	return ctx, nil
}

// instanceMatch reports whether a tagged request addresses this listing
// instance. An fdlid mismatch is not an error, the request just renders the
// plain listing.
func (c *Context) instanceMatch() bool {
	requested := c.Request.URL.Query().Get("fdlid")
	if requested == "" || c.Settings.FdlID == "" {
		return true
	}
	return requested == c.Settings.FdlID
}
