// Package datastore keeps a local journal of saved observations in SQLite or
// MySQL and serves the aggregates shown on the Data page.
package datastore

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"

	slowQueryThreshold = 200 * time.Millisecond
)

// Recorder receives per-operation metrics.
type Recorder interface {
	RecordOperation(operation string, elapsed time.Duration, err error)
}

// Config selects and configures the database.
type Config struct {
	Type       string
	SQLitePath string
	MySQL      MySQLConfig
}

type MySQLConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// DSN returns the go-sql-driver connection string.
func (c MySQLConfig) DSN() string {
	dsn := mysqldriver.NewConfig()
	dsn.User = c.Username
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// Store is safe for concurrent use.
type Store struct {
	db       *gorm.DB
	log      logger.Logger
	recorder Recorder
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log logger.Logger, recorder Recorder) (*Store, error) {
	log = log.Module("datastore")

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Type) {
	case TypeSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			path = "birdo.db"
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("path", path).
					Build()
			}
		}
		dialector = sqlite.Open(path)
		log.Debug("opening sqlite database", logger.String("path", path))
	case TypeMySQL:
		dialector = mysql.Open(cfg.MySQL.DSN())
		log.Debug("opening mysql database",
			logger.String("host", cfg.MySQL.Host),
			logger.Int("port", cfg.MySQL.Port),
			logger.String("database", cfg.MySQL.Database))
	default:
		return nil, errors.Newf("unsupported datastore type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", cfg.Type, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", cfg.Type).
			Build()
	}

	if err := db.AutoMigrate(&Observation{}); err != nil {
		return nil, errors.New(fmt.Errorf("failed to auto-migrate database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Build()
	}

	return &Store{db: db, log: log, recorder: recorder}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) observe(operation string, start time.Time, err error) error {
	if s.recorder != nil {
		s.recorder.RecordOperation(operation, time.Since(start), err)
	}
	if err == nil {
		return nil
	}
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// Save inserts an observation. CreatedAt defaults to now.
func (s *Store) Save(ctx context.Context, obs *Observation) error {
	if obs.ID == "" || obs.Animal == "" {
		return errors.ValidationError("observation needs an id and an animal")
	}
	start := time.Now()
	err := s.db.WithContext(ctx).Create(obs).Error
	return s.observe("save", start, err)
}

// Recent returns the newest observations first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	var out []Observation
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, s.observe("recent", start, err)
}

// PopulationByAnimal sums quantities per animal, largest first.
func (s *Store) PopulationByAnimal(ctx context.Context) ([]Population, error) {
	start := time.Now()
	var out []Population
	err := s.db.WithContext(ctx).
		Model(&Observation{}).
		Select("animal, SUM(quantity) AS total").
		Group("animal").
		Order("total DESC, animal ASC").
		Scan(&out).Error
	return out, s.observe("population", start, err)
}

// Markers returns one marker per observation. A marker is endangered when
// its quantity is below EndangeredThreshold.
func (s *Store) Markers(ctx context.Context) ([]Marker, error) {
	start := time.Now()
	var rows []Observation
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error
	if err := s.observe("markers", start, err); err != nil {
		return nil, err
	}

	markers := make([]Marker, 0, len(rows))
	for _, o := range rows {
		markers = append(markers, Marker{
			ID:         o.ID,
			Animal:     o.Animal,
			Location:   o.Location,
			Quantity:   o.Quantity,
			Latitude:   o.Latitude,
			Longitude:  o.Longitude,
			Endangered: o.Quantity < EndangeredThreshold,
		})
	}
	return markers, nil
}
