package refdata

import (
	"context"
	"embed"
	"io/fs"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/datastore"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

//go:embed builtin/*.csv
var builtinFiles embed.FS

// Builtin returns the Store built from the embedded demo tables.
func Builtin() (*Store, error) {
	t, err := BuiltinTables()
	if err != nil {
		return nil, err
	}
	return New(t)
}

// BuiltinTables returns the raw embedded tables, for seeding a database.
func BuiltinTables() (*datastore.Tables, error) {
	sub, err := fs.Sub(builtinFiles, "builtin")
	if err != nil {
		return nil, err
	}
	return ReadCSV(sub)
}

// LoadDB builds a Store from the reference tables of an open database.
func LoadDB(ctx context.Context, db *gorm.DB) (*Store, error) {
	ds := &datastore.DataStore{DB: db}
	t, err := ds.LoadTables(ctx)
	if err != nil {
		return nil, err
	}
	return New(t)
}

// Load builds the Store from the source selected in settings.
func Load(ctx context.Context, settings *conf.Settings) (*Store, error) {
	start := time.Now()
	source := settings.RefData.Source

	var (
		store *Store
		err   error
	)
	switch source {
	case "", "builtin":
		store, err = Builtin()
	case "csv":
		store, err = LoadCSV(settings.ResolvePath(settings.RefData.Dir))
	case "sqlite", "mysql":
		store, err = loadFromDatastore(ctx, datastore.New(settings))
	default:
		err = errors.Newf("unsupported reference data source %q", source).
			Component("refdata").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		GetLogger().Error("failed to load reference data",
			logger.String("source", source),
			logger.Error(err))
		return nil, err
	}

	GetLogger().Info("reference data loaded",
		logger.String("source", source),
		logger.Int("regions", len(store.regions)),
		logger.Int("diseases", store.DiseaseCount()),
		logger.Duration("elapsed", time.Since(start)))
	return store, nil
}

func loadFromDatastore(ctx context.Context, ds datastore.Interface) (*Store, error) {
	if err := ds.Open(); err != nil {
		return nil, err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			GetLogger().Warn("failed to close reference database", logger.Error(err))
		}
	}()
	return LoadDB(ctx, ds.GetDB())
}
