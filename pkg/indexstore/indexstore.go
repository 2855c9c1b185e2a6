package indexstore

import (
	"context"
	"fmt"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store persists the run history index.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// UpsertRun inserts or replaces the row for (run ID, suite name).
	UpsertRun(ctx context.Context, run *Run) error

	// ListRuns returns all indexed runs, newest first.
	ListRuns(ctx context.Context) ([]Run, error)

	// GetRun returns the per-suite rows of a single run ID.
	GetRun(ctx context.Context, runID string) ([]Run, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "indexstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unknown database driver %q", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db.WithContext(ctx)

	if err := s.db.AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Debug("Index store started")

	return nil
}

// Stop closes the database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}

	return sqlDB.Close()
}

func (s *store) UpsertRun(ctx context.Context, run *Run) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "suite_name"}},
		UpdateAll: true,
	}).Create(run).Error
	if err != nil {
		return fmt.Errorf("upserting run %s/%s: %w", run.RunID, run.SuiteName, err)
	}

	return nil
}

func (s *store) ListRuns(ctx context.Context) ([]Run, error) {
	var runs []Run

	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

func (s *store) GetRun(ctx context.Context, runID string) ([]Run, error) {
	var runs []Run

	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("suite_name ASC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}

	return runs, nil
}
