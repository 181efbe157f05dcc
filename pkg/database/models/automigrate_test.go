package models_test

import (
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoncam/pkg/database/dbconn"
	"github.com/tauraamui/dragoncam/pkg/database/models"
)

func TestAutoMigrateRegistersEveryModel(t *testing.T) {
	is := is.New(t)
	db := dbconn.Mock()

	is.NoErr(models.AutoMigrate(db))
	is.Equal(len(db.Migrated()), 2)
}
