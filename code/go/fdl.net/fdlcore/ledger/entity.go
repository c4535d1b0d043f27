package ledger

import (
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/registry"
)

// DownloadEvent is one completed download. Rows are removed with their
// registry entry via the foreign key.
type DownloadEvent struct {
	ID          int64              `gorm:"column:id;primaryKey"`
	PathID      int64              `gorm:"column:path_id;index:idx_fd_downloads_path;index:idx_fd_downloads_path_user,priority:1"`
	Path        registry.PathEntry `gorm:"foreignKey:PathID;constraint:OnDelete:CASCADE"`
	IP          string             `gorm:"column:ip;size:46;default:0.0.0.0"`
	Referer     string             `gorm:"column:referer;type:text"`
	Country     string             `gorm:"column:country;size:255;default:''"`
	Region      string             `gorm:"column:region;size:255;default:''"`
	City        string             `gorm:"column:city;size:255;default:''"`
	Zip         string             `gorm:"column:zip;size:30;default:''"`
	Geolocation string             `gorm:"column:geolocation;type:text"`
	User        int64              `gorm:"column:user;default:0;index:idx_fd_downloads_path_user,priority:2"`
	Timestamp   int64              `gorm:"column:timestamp"`
}

func (DownloadEvent) TableName() string {
	return "fd_downloads"
}

func init() {
	datastore.RegisterModel(&DownloadEvent{})
}
