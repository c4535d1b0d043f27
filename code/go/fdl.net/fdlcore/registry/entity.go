package registry

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
)

// PathEntry is one row of the path registry. The (ctx, media_source_id,
// filename) triple is unique; the hash is the only identifier ever exposed
// in URLs.
type PathEntry struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Ctx           string         `gorm:"column:ctx;size:255;default:web;uniqueIndex:idx_fd_paths_triple,priority:1"`
	MediaSourceID int            `gorm:"column:media_source_id;default:0;uniqueIndex:idx_fd_paths_triple,priority:2"`
	Filename      string         `gorm:"column:filename;size:255;uniqueIndex:idx_fd_paths_triple,priority:3"`
	Extended      datatypes.JSON `gorm:"column:extended"`
	Hash          string         `gorm:"column:hash;size:255;index:idx_fd_paths_hash"`
	datastore.ModelWithTS
}

func (PathEntry) TableName() string {
	return "fd_paths"
}

func init() {
	datastore.RegisterModel(&PathEntry{})
}

// GetExtendedFields decodes the extended JSON column, empty map when unset.
func (p *PathEntry) GetExtendedFields() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(p.Extended) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(p.Extended, &out); err != nil {
		return nil, common.NewErrorf("decoding_extended_fields", "%v", err)
	}
	return out, nil
}

// SetExtendedFields replaces the extended JSON column. A nil or empty map
// clears it.
func (p *PathEntry) SetExtendedFields(fields map[string]interface{}) error {
	if len(fields) == 0 {
		p.Extended = nil
		return nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return common.NewErrorf("encoding_extended_fields", "%v", err)
	}
	p.Extended = datatypes.JSON(b)
	return nil
}

// ProjectExtended filters the given values against the configured field
// schema. Unknown keys are dropped, empty values omitted.
func ProjectExtended(schema []config.ExtendedField, values map[string]interface{}) map[string]interface{} {
	if len(schema) == 0 || len(values) == 0 {
		return nil
	}
	out := map[string]interface{}{}
	for _, field := range schema {
		v, ok := values[field.Name]
		if !ok || v == nil || v == "" {
			continue
		}
		out[field.Name] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
