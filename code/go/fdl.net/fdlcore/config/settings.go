package config

import (
	"github.com/mitchellh/mapstructure"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
)

// ExtendedField describes one admin-configured extra attribute on a path
// registry entry. Unknown keys in a request are dropped against this schema.
type ExtendedField struct {
	Name string `mapstructure:"name" json:"name"`
}

// Settings are the per-listing options, the equivalent of one snippet call's
// property set. A zero Settings is unusable; start from DefaultSettings.
type Settings struct {
	GetDir  []string `mapstructure:"getDir"`
	GetFile []string `mapstructure:"getFile"`
	// OrigDir keeps the configured (pre-navigation) roots for breadcrumb
	// trimming while GetDir changes when a directory hash is followed.
	OrigDir []string `mapstructure:"origDir"`

	BrowseDirectories  bool `mapstructure:"browseDirectories"`
	GroupByDirectory   bool `mapstructure:"groupByDirectory"`
	ShowEmptyDirectory bool `mapstructure:"showEmptyDirectory"`

	MediaSourceID int `mapstructure:"mediaSourceId"`

	UserGroups   []string `mapstructure:"userGroups"`
	DeleteGroups []string `mapstructure:"deleteGroups"`
	UploadGroups []string `mapstructure:"uploadGroups"`

	ExtShown  []string `mapstructure:"extShown"`
	ExtHidden []string `mapstructure:"extHidden"`

	SortBy              string `mapstructure:"sortBy"`
	SortOrder           string `mapstructure:"sortOrder"`
	SortOrderNatural    bool   `mapstructure:"sortOrderNatural"`
	SortByCaseSensitive bool   `mapstructure:"sortByCaseSensitive"`

	Limit  int `mapstructure:"limit"`
	Offset int `mapstructure:"offset"`

	DateFormat string `mapstructure:"dateFormat"`
	Prefix     string `mapstructure:"prefix"`
	SaltText   string `mapstructure:"saltText"`
	FdlID      string `mapstructure:"fdlid"`

	DirectLink bool `mapstructure:"directLink"`
	NoDownload bool `mapstructure:"noDownload"`

	CountDownloads     bool `mapstructure:"countDownloads"`
	CountUserDownloads bool `mapstructure:"countUserDownloads"`

	UploadFile      bool     `mapstructure:"uploadFile"`
	UploadFileTypes []string `mapstructure:"uploadFileTypes"`
	UploadMaxSize   int64    `mapstructure:"uploadMaxSize"`

	UseGeolocation bool   `mapstructure:"useGeolocation"`
	GeoAPIKey      string `mapstructure:"geoApiKey"`

	ImgLocat string `mapstructure:"imgLocat"`
	ImgTypes string `mapstructure:"imgTypes"`
	ChkDesc  string `mapstructure:"chkDesc"`

	BreadcrumbSeparator string `mapstructure:"breadcrumbSeparator"`

	TplDir        string `mapstructure:"tplDir"`
	TplFile       string `mapstructure:"tplFile"`
	TplGroupDir   string `mapstructure:"tplGroupDir"`
	TplWrapper    string `mapstructure:"tplWrapper"`
	TplBreadcrumb string `mapstructure:"tplBreadcrumb"`
	TplNotAllowed string `mapstructure:"tplNotAllowed"`

	ExtendedFields []ExtendedField `mapstructure:"extendedFields"`
}

// DefaultSettings mirrors the documented property defaults.
func DefaultSettings() Settings {
	return Settings{
		BreadcrumbSeparator: " / ",
		CountDownloads:      true,
		DateFormat:          "2006-01-02",
		ImgLocat:            "assets/img/filetypes/",
		ImgTypes:            "fdImages",
		Prefix:              "fd.",
		SaltText:            Configuration.SaltText,
		SortBy:              "filename",
		SortOrder:           "asc",
		SortOrderNatural:    true,
		TplBreadcrumb:       "fdBreadcrumbTpl",
		TplDir:              "fdRowDirTpl",
		TplFile:             "fdRowFileTpl",
		TplGroupDir:         "fdGroupDirTpl",
		TplNotAllowed:       "fdNotAllowedTpl",
		TplWrapper:          "fdWrapperTpl",
		UploadFileTypes:     Configuration.UploadFileTypes,
		UploadMaxSize:       Configuration.UploadMaxSize,
		UseGeolocation:      Configuration.UseGeolocation,
		GeoAPIKey:           Configuration.GeoAPIKey,
	}
}

// DecodeSettings overlays the given option map on the defaults. Keys not in
// the Settings struct are ignored, the way unknown snippet properties are.
func DecodeSettings(options map[string]interface{}) (Settings, error) {
	settings := DefaultSettings()
	if len(options) == 0 {
		return settings, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &settings,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return settings, common.NewErrorf("settings_decode", "building decoder: %v", err)
	}
	if err := decoder.Decode(options); err != nil {
		return settings, common.NewErrorf("settings_decode", "decoding options: %v", err)
	}
	return settings, nil
}
