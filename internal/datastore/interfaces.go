// interfaces.go: this code defines the interface for the reference table store
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// Interface abstracts the SQL backend holding the reference tables.
type Interface interface {
	Open() error
	Close() error
	// ReplaceTables swaps the stored reference data for t in one transaction.
	ReplaceTables(ctx context.Context, t *Tables) error
	// LoadTables reads every reference table.
	LoadTables(ctx context.Context) (*Tables, error)
	// GetDB exposes the underlying connection.
	GetDB() *gorm.DB
}

// DataStore implements the table operations shared by all SQL backends.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a store for the configured reference data source, or nil when
// the source is not SQL backed.
func New(settings *conf.Settings) Interface {
	switch settings.RefData.Source {
	case "sqlite":
		return &SQLiteStore{Settings: settings}
	case "mysql":
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// GetDB returns the GORM handle.
func (ds *DataStore) GetDB() *gorm.DB {
	return ds.DB
}

// ReplaceTables deletes all reference rows and inserts t inside a transaction.
func (ds *DataStore) ReplaceTables(ctx context.Context, t *Tables) error {
	if ds.DB == nil {
		return errNotInitialized()
	}
	if t == nil {
		return errors.Newf("no tables to import").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&StateSoil{}, &StateWeather{}, &DiseaseInfo{}, &SupplementInfo{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clearing %T: %w", model, err)
			}
		}
		if err := createInBatches(tx, t.Soil); err != nil {
			return err
		}
		if err := createInBatches(tx, t.Weather); err != nil {
			return err
		}
		if err := createInBatches(tx, t.Diseases); err != nil {
			return err
		}
		return createInBatches(tx, t.Supplements)
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "replace_tables").
			Timing("replace_tables", time.Since(start)).
			Build()
	}

	GetLogger().Info("reference tables replaced",
		logger.Int("soil_rows", len(t.Soil)),
		logger.Int("weather_rows", len(t.Weather)),
		logger.Int("diseases", len(t.Diseases)),
		logger.Int("supplements", len(t.Supplements)),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

const insertBatchSize = 200

func createInBatches[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		var zero T
		return fmt.Errorf("inserting %T rows: %w", zero, err)
	}
	return nil
}

// LoadTables reads all reference tables ordered by their natural keys.
func (ds *DataStore) LoadTables(ctx context.Context) (*Tables, error) {
	if ds.DB == nil {
		return nil, errNotInitialized()
	}

	db := ds.DB.WithContext(ctx)
	t := &Tables{}
	queries := []struct {
		name  string
		order string
		dest  any
	}{
		{"state_soil_data", "state", &t.Soil},
		{"state_weather_data", "state, year", &t.Weather},
		{"disease_info", "idx", &t.Diseases},
		{"supplement_info", "idx", &t.Supplements},
	}
	for _, q := range queries {
		if err := db.Order(q.order).Find(q.dest).Error; err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "load_tables").
				Context("table", q.name).
				Build()
		}
	}
	return t, nil
}

func errNotInitialized() error {
	return errors.Newf("database connection is not initialized").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}

// closeDB closes the pool behind a GORM handle.
func closeDB(db *gorm.DB) error {
	if db == nil {
		return errNotInitialized()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}
