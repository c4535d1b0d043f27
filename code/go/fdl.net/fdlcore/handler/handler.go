package handler

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/didip/tollbooth/v6/limiter"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/logging"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/aggregator"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/hooks"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/mediasource"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/policy"
)

const (
	FileRPS    = 5 // File Request Per Second
	GeneralRPS = 10

	DefaultExpirationTTL = time.Minute * 5
)

var (
	fileRL    *limiter.Limiter
	generalRL *limiter.Limiter
)

// App is the wired application: one media source, one hook dispatcher, one
// settings base per deployment.
type App struct {
	Backend    mediasource.Backend
	Dispatcher *hooks.Dispatcher
	Settings   config.Settings

	// Descriptions and Images feed the aggregator; parsed once at setup.
	Descriptions map[string]string
	Images       map[string]string
}

var app *App

// SetupApp installs the wired application the routes serve from.
func SetupApp(a *App) {
	app = a
}

func ConfigRateLimits() {
	tokenExpirettl := viper.GetDuration("rate_limiters.default_token_expire_duration")
	if tokenExpirettl <= 0 {
		tokenExpirettl = DefaultExpirationTTL
	}

	ipLookups := []string{"RemoteAddr", "X-Forwarded-For", "X-Real-IP"}
	if viper.GetBool("rate_limiters.proxy") {
		ipLookups = []string{"X-Forwarded-For", "RemoteAddr", "X-Real-IP"}
	}

	fRps := viper.GetFloat64("rate_limiters.file_rps")
	gRps := viper.GetFloat64("rate_limiters.general_rps")
	if fRps <= 0 {
		fRps = FileRPS
	}
	if gRps <= 0 {
		gRps = GeneralRPS
	}

	logging.Logger.Info("Setting rps",
		zap.Float64("file_rps", fRps),
		zap.Float64("general_rps", gRps))

	fileRL = common.GetRateLimiter(fRps, ipLookups, true, tokenExpirettl)
	generalRL = common.GetRateLimiter(gRps, ipLookups, true, tokenExpirettl)
}

func RateLimitByFileRL(handler common.ReqRespHandlerf) common.ReqRespHandlerf {
	return common.RateLimitByIP(handler, fileRL)
}

func RateLimitByGeneralRL(handler common.ReqRespHandlerf) common.ReqRespHandlerf {
	return common.RateLimitByIP(handler, generalRL)
}

/*SetupHandlers sets up the necessary API end points */
func SetupHandlers(r *mux.Router) {
	ConfigRateLimits()
	r.Use(UseRecovery)

	r.HandleFunc("/", RateLimitByFileRL(DispatchHandler)).
		Methods(http.MethodGet)

	r.HandleFunc("/upload", RateLimitByGeneralRL(UploadHandler)).
		Methods(http.MethodPost)

	r.HandleFunc("/_health", RateLimitByGeneralRL(common.ToJSONResponse(HealthHandler))).
		Methods(http.MethodGet)
}

func UseRecovery(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.Logger.Error("panic in handler",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())))
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		h.ServeHTTP(w, r)
	})
}

func HealthHandler(ctx context.Context, r *http.Request) (interface{}, error) {
	return map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// DispatchHandler is the listing page equivalent. The tracking query
// parameters select the action; without one the plain listing renders.
func DispatchHandler(w http.ResponseWriter, r *http.Request) {
	ctx, err := WithContext(r, app.Settings)
	if err != nil {
		common.Respond(w, nil, err)
		return
	}

	q := r.URL.Query()
	if !ctx.instanceMatch() {
		ListingHandler(w, ctx)
		return
	}
	if hash := q.Get("fdlfile"); hash != "" {
		DownloadHandler(w, ctx, hash)
		return
	}
	if hash := q.Get("fdldelete"); hash != "" {
		DeleteHandler(w, ctx, hash)
		return
	}
	if hash := q.Get("fdldir"); hash != "" {
		if err := navigate(ctx, hash); err != nil {
			common.Respond(w, nil, err)
			return
		}
	}
	ListingHandler(w, ctx)
}

// navigate swaps the browse root for the directory a hash points at.
func navigate(ctx *Context, hash string) error {
	return datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		entry, err := findVerifiedEntry(tctx, ctx, hash)
		if err != nil {
			return err
		}
		ctx.Settings.OrigDir = app.Settings.GetDir
		ctx.Settings.GetDir = []string{entry.Filename}
		return nil
	})
}

// ListingHandler aggregates and responds with the bundle as JSON.
func ListingHandler(w http.ResponseWriter, ctx *Context) {
	if !policy.Allowed(ctx.Settings.UserGroups, ctx.Groups) {
		common.Respond(w, nil, common.ErrNotPermitted)
		return
	}

	var bundle *aggregator.Bundle
	err := datastore.GetStore().WithNewTransaction(func(tctx context.Context) error {
		agg := newAggregator(ctx)
		var err error
		bundle, err = agg.GetContents(tctx)
		return err
	})
	common.Respond(w, bundle, err)
}

func newAggregator(ctx *Context) *aggregator.Aggregator {
	return &aggregator.Aggregator{
		Backend:      app.Backend,
		Dispatcher:   app.Dispatcher,
		Settings:     &ctx.Settings,
		Ctx:          ctx.CtxKey,
		PageURL:      config.Configuration.PageURL,
		BasePath:     config.Configuration.BasePath,
		CorePath:     config.Configuration.CorePath,
		User:         ctx.User,
		Groups:       ctx.Groups,
		Descriptions: app.Descriptions,
		Images:       app.Images,
	}
}
