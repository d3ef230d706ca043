package postgis

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/1F47E/station-cluster/pkg/models"
)

const (
	tableName = "stations"
	batchSize = 10000
)

// Config holds connection settings
type Config struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN returns the lib/pq connection string
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// Store keeps station points in a PostGIS table
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens and pings a PostGIS connection
func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, logger: logger}, nil
}

// InitSchema recreates the stations table
func (s *Store) InitSchema() error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`DROP TABLE IF EXISTS ` + tableName + `;`,
		`CREATE TABLE ` + tableName + ` (
			station_index INTEGER PRIMARY KEY,
			location GEOMETRY(POINT, 4326) NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}

	return nil
}

// CreateSpatialIndex creates a GIST index on the location column
func (s *Store) CreateSpatialIndex() error {
	start := time.Now()
	query := `CREATE INDEX IF NOT EXISTS idx_` + tableName + `_location ON ` + tableName + ` USING GIST(location);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}

	// Analyze table for better query planning
	if _, err := s.db.Exec("ANALYZE " + tableName + ";"); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}

	s.logger.Info("created spatial index", "table", tableName, "elapsed", time.Since(start))
	return nil
}

// BulkInsertPoints inserts points in batches of one transaction each
func (s *Store) BulkInsertPoints(points []models.Point) error {
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := s.insertBatch(points[start:end]); err != nil {
			return err
		}
		s.logger.Debug("inserted batch", "from", start, "to", end)
	}
	return nil
}

func (s *Store) insertBatch(points []models.Point) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO ` + tableName + ` (station_index, location)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326))
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, point := range points {
		if _, err := stmt.Exec(point.Index, point.Lon, point.Lat); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert station %d: %w", point.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// LoadPoints returns every station ordered by station index
func (s *Store) LoadPoints() ([]models.Point, error) {
	rows, err := s.db.Query(`
		SELECT station_index, ST_Y(location) AS lat, ST_X(location) AS lon
		FROM ` + tableName + `
		ORDER BY station_index
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return scanPoints(rows)
}

// QueryBox returns the stations inside box, edges included, ordered by
// station index
func (s *Store) QueryBox(box models.BoundingBox) ([]models.Point, error) {
	args, err := envelopeArgs(box)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT station_index, ST_Y(location) AS lat, ST_X(location) AS lon
		FROM `+tableName+`
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY station_index
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return scanPoints(rows)
}

// envelopeArgs orders box as ST_MakeEnvelope expects: xmin, ymin, xmax, ymax
func envelopeArgs(box models.BoundingBox) ([]any, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("invalid bounding box: %+v", box)
	}
	return []any{box.MinLon, box.MinLat, box.MaxLon, box.MaxLat}, nil
}

func scanPoints(rows *sql.Rows) ([]models.Point, error) {
	defer rows.Close()

	var results []models.Point
	for rows.Next() {
		var p models.Point
		if err := rows.Scan(&p.Index, &p.Lat, &p.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Count returns the number of stored stations
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + tableName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// Stats returns table and index sizes plus the row count
func (s *Store) Stats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var tableSize, indexSize string
	err := s.db.QueryRow(`
		SELECT
			pg_size_pretty(pg_total_relation_size('` + tableName + `')) AS total_size,
			pg_size_pretty(pg_indexes_size('` + tableName + `')) AS index_size
	`).Scan(&tableSize, &indexSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get table size: %w", err)
	}
	stats["table_size"] = tableSize
	stats["index_size"] = indexSize

	count, err := s.Count()
	if err != nil {
		return nil, err
	}
	stats["row_count"] = count

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
