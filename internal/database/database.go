// Package database persists generation runs with gorm. Postgres serves
// deployments; a sqlite file or in-memory database serves local use and
// tests.
package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Conceptual-Machines/magda-groove/internal/models"
)

// DefaultSQLitePath is used when no database url is configured
const DefaultSQLitePath = "groove.sqlite3"

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = time.Hour
	maxRecentRuns   = 100
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("generation run not found")

// Connect opens the database named by url. postgres:// and postgresql://
// urls use Postgres; anything else is a sqlite path, optionally prefixed
// with sqlite://.
func Connect(url string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dialector = postgres.Open(url)
	default:
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			path = DefaultSQLitePath
		}
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.GenerationRun{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping checks the connection
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// RunStore reads and writes generation runs
type RunStore struct {
	db *gorm.DB
}

// NewRunStore wraps an open, migrated database
func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// Save inserts run, assigning a new id when it has none
func (s *RunStore) Save(ctx context.Context, run *models.GenerationRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get returns the run with id
func (s *RunStore) Get(ctx context.Context, id string) (*models.GenerationRun, error) {
	var run models.GenerationRun
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &run, nil
}

// FindBySeed returns the newest run of a design and seed
func (s *RunStore) FindBySeed(ctx context.Context, designHash string, seed uint64) (*models.GenerationRun, error) {
	var run models.GenerationRun
	err := s.db.WithContext(ctx).
		Where("design_hash = ? AND seed = ?", designHash, strconv.FormatUint(seed, 10)).
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	return &run, nil
}

// Recent lists the newest runs, newest first
func (s *RunStore) Recent(ctx context.Context, limit int) ([]models.GenerationRun, error) {
	if limit <= 0 || limit > maxRecentRuns {
		limit = maxRecentRuns
	}
	var runs []models.GenerationRun
	err := s.db.WithContext(ctx).
		Omit("track").
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
