package datastore

import (
	"time"

	"gorm.io/gorm"
)

type ModelWithTS struct {
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

var migrations []interface{}

// RegisterModel adds a gorm model to the automigration set. Called from the
// model packages' init functions.
func RegisterModel(m interface{}) {
	migrations = append(migrations, m)
}

func automigrate(db *gorm.DB) error {
	return db.AutoMigrate(migrations...)
}
