package registry

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/logging"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
)

// ResolveOrCreate looks up the registry entry for the unique triple and
// creates it when absent. A duplicate-key race with a concurrent request is
// resolved by re-reading the row the other request inserted.
func ResolveOrCreate(ctx context.Context, salt, ctxKey string, mediaSourceID int, filename string, extended map[string]interface{}, schema []config.ExtendedField) (*PathEntry, error) {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return nil, common.ErrBadDataStore
	}

	entry, err := lookup(db, ctxKey, mediaSourceID, filename)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewErrorf("path_lookup", "looking up %v: %v", filename, err)
	}

	entry = &PathEntry{
		Ctx:           ctxKey,
		MediaSourceID: mediaSourceID,
		Filename:      filename,
		Hash:          HashedParam(salt, ctxKey, mediaSourceID, filename),
	}
	if projected := ProjectExtended(schema, extended); projected != nil {
		if err := entry.SetExtendedFields(projected); err != nil {
			return nil, err
		}
	}
	return createOrReread(db, entry)
}

// createOrReread inserts the entry, tolerating a concurrent insert of the
// same unique triple. The insert goes through ON CONFLICT DO NOTHING so a
// lost race never aborts the surrounding transaction; when no row was
// written the winner's row is re-read and returned instead.
func createOrReread(db *gorm.DB, entry *PathEntry) (*PathEntry, error) {
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if res.Error != nil {
		logging.Logger.Error("registry create failed",
			zap.String("filename", entry.Filename), zap.Error(res.Error))
		return nil, common.NewErrorf("path_create", "saving %v: %v", entry.Filename, res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := lookup(db, entry.Ctx, entry.MediaSourceID, entry.Filename)
		if err != nil {
			return nil, common.NewErrorf("path_create", "re-reading %v: %v", entry.Filename, err)
		}
		return existing, nil
	}
	return entry, nil
}

// Lookup returns the entry for the triple without creating it. Used for
// read-only resolution such as breadcrumb ancestors.
func Lookup(ctx context.Context, ctxKey string, mediaSourceID int, filename string) (*PathEntry, error) {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return nil, common.ErrBadDataStore
	}
	entry, err := lookup(db, ctxKey, mediaSourceID, filename)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.NewErrorf("path_lookup", "looking up %v: %v", filename, err)
	}
	return entry, nil
}

func lookup(db *gorm.DB, ctxKey string, mediaSourceID int, filename string) (*PathEntry, error) {
	entry := &PathEntry{}
	err := db.Where("ctx = ? AND media_source_id = ? AND filename = ?",
		ctxKey, mediaSourceID, filename).Take(entry).Error
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// FindByHash turns a public opaque identifier back into its entry. Callers
// must still verify the entry's context and media source against the active
// request (policy.VerifyEntry); the hash alone is not an authorization.
func FindByHash(ctx context.Context, hash string) (*PathEntry, error) {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return nil, common.ErrBadDataStore
	}
	entry := &PathEntry{}
	err := db.Where("hash = ?", hash).Take(entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.NewErrorf("path_lookup", "looking up hash: %v", err)
	}
	return entry, nil
}

// PathIDsUnder returns the ids of all entries below the given directory. The
// prefix always carries a trailing separator so /foo never matches /foobar.
func PathIDsUnder(ctx context.Context, ctxKey string, mediaSourceID int, dir, separator string) ([]int64, error) {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return nil, common.ErrBadDataStore
	}
	prefix := dir
	if !strings.HasSuffix(prefix, separator) {
		prefix += separator
	}
	var ids []int64
	err := db.Model(&PathEntry{}).
		Where("ctx = ? AND media_source_id = ? AND filename LIKE ?",
			ctxKey, mediaSourceID, escapeLike(prefix)+"%").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, common.NewErrorf("path_lookup", "listing descendants of %v: %v", dir, err)
	}
	return ids, nil
}

// Delete removes the entry; ledger rows cascade via the foreign key.
func Delete(ctx context.Context, entry *PathEntry) error {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return common.ErrBadDataStore
	}
	if err := db.Delete(&PathEntry{}, "id = ?", entry.ID).Error; err != nil {
		return common.NewErrorf("path_delete", "deleting %v: %v", entry.Filename, err)
	}
	return nil
}

// DeleteSubtree removes the entry and, for directories, every registered
// descendant. Ledger rows go with them via the cascade.
func DeleteSubtree(ctx context.Context, entry *PathEntry, separator string) error {
	db := datastore.GetStore().GetTransaction(ctx)
	if db == nil {
		return common.ErrBadDataStore
	}
	if strings.HasSuffix(entry.Filename, separator) {
		ids, err := PathIDsUnder(ctx, entry.Ctx, entry.MediaSourceID, entry.Filename, separator)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := db.Delete(&PathEntry{}, "id IN ?", ids).Error; err != nil {
				return common.NewErrorf("path_delete", "deleting descendants of %v: %v", entry.Filename, err)
			}
		}
	}
	return Delete(ctx, entry)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
