package aggregator

// Record is one listed entry, produced fresh per request and never persisted.
type Record struct {
	Ctx         string                 `json:"ctx"`
	FullPath    string                 `json:"-"`
	Path        string                 `json:"path"`
	Filename    string                 `json:"filename"`
	Alias       string                 `json:"alias,omitempty"`
	Type        string                 `json:"type"`
	Ext         string                 `json:"ext,omitempty"`
	Size        int64                  `json:"size"`
	SizeText    string                 `json:"sizeText"`
	UnixDate    int64                  `json:"unixdate"`
	Date        string                 `json:"date"`
	Image       string                 `json:"image,omitempty"`
	Link        string                 `json:"link"`
	DeleteLink  string                 `json:"deleteLink,omitempty"`
	Hash        string                 `json:"hash"`
	Count       int64                  `json:"count"`
	// CountNew is the number of registered files under a directory that no
	// one has downloaded yet. Only set on dir records.
	CountNew    int64                  `json:"countNew,omitempty"`
	Extended    map[string]interface{} `json:"extended,omitempty"`
	Description string                 `json:"description,omitempty"`
}

const (
	TypeFile = "file"
	TypeDir  = "dir"
)

// Crumb is one breadcrumb of the directory trail. The last crumb carries no
// link.
type Crumb struct {
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}

// Bundle is the complete aggregation result. It is immutable once returned;
// repeated calls over unchanged inputs produce equal bundles.
type Bundle struct {
	Records     []Record `json:"records"`
	DirCount    int      `json:"dirCount"`
	FileCount   int      `json:"fileCount"`
	Total       int      `json:"total"`
	Breadcrumbs []Crumb  `json:"breadcrumbs,omitempty"`
	// GroupKeys holds the parent directories in render order when grouping
	// by directory is on.
	GroupKeys []string `json:"groupKeys,omitempty"`
}
