package ledger

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/logging"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/geoip"
)

var trackingParams = []string{"fdlfile", "fdldelete", "fdldir", "fdlid"}

// Counts summarizes the ledger for one registry entry.
type Counts struct {
	Total     int64
	ByUser    int64
	NotByUser int64
}

// RecordDownload writes one ledger row after a completed stream. Geolocation
// is filled from loc when the lookup succeeded; a nil loc leaves the columns
// empty.
func RecordDownload(ctx context.Context, pathID int64, ip, referer string, user int64, loc *geoip.Location) error {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return common.ErrBadDataStore
	}

	event := &DownloadEvent{
		PathID:    pathID,
		IP:        ip,
		Referer:   CleanReferer(referer),
		User:      user,
		Timestamp: time.Now().Unix(),
	}
	if loc != nil {
		event.Country = loc.Country
		event.Region = loc.Region
		event.City = loc.City
		event.Zip = loc.Zip
		event.Geolocation = loc.Geolocation()
	}

	if err := db.Create(event).Error; err != nil {
		logging.Logger.Error("ledger write failed",
			zap.Int64("path_id", pathID), zap.Error(err))
		return common.NewErrorf("ledger_write", "%v", err)
	}
	return nil
}

// CleanReferer URL-decodes the referrer and strips the tracking parameters so
// stored referrers do not embed download links.
func CleanReferer(referer string) string {
	if referer == "" {
		return ""
	}
	decoded, err := url.QueryUnescape(referer)
	if err != nil {
		decoded = referer
	}
	u, err := url.Parse(decoded)
	if err != nil {
		return decoded
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// GetCounts returns the download totals for one entry, split by the given
// user.
func GetCounts(ctx context.Context, pathID, user int64) (*Counts, error) {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return nil, common.ErrBadDataStore
	}

	counts := &Counts{}
	err := db.Model(&DownloadEvent{}).
		Where("path_id = ?", pathID).
		Count(&counts.Total).Error
	if err != nil {
		return nil, common.NewErrorf("ledger_read", "%v", err)
	}
	err = db.Model(&DownloadEvent{}).
		Where("path_id = ? AND \"user\" = ?", pathID, user).
		Count(&counts.ByUser).Error
	if err != nil {
		return nil, common.NewErrorf("ledger_read", "%v", err)
	}
	counts.NotByUser = counts.Total - counts.ByUser
	return counts, nil
}

// CountForPaths sums the download events over a set of entries. Directory
// rows show it as their download total.
func CountForPaths(ctx context.Context, pathIDs []int64) (int64, error) {
	if len(pathIDs) == 0 {
		return 0, nil
	}
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return 0, common.ErrBadDataStore
	}
	var total int64
	err := db.Model(&DownloadEvent{}).
		Where("path_id IN ?", pathIDs).
		Count(&total).Error
	if err != nil {
		return 0, common.NewErrorf("ledger_read", "%v", err)
	}
	return total, nil
}

// ZeroDownloadCount reports how many of the given entries have no ledger rows
// at all. Directory rollups show it as the "fresh files" number.
func ZeroDownloadCount(ctx context.Context, pathIDs []int64) (int64, error) {
	if len(pathIDs) == 0 {
		return 0, nil
	}
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return 0, common.ErrBadDataStore
	}

	var downloaded int64
	err := db.Model(&DownloadEvent{}).
		Distinct("path_id").
		Where("path_id IN ?", pathIDs).
		Count(&downloaded).Error
	if err != nil {
		return 0, common.NewErrorf("ledger_read", "%v", err)
	}
	return int64(len(pathIDs)) - downloaded, nil
}
