package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-gorp/gorp"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/logger"
)

// recordRow is the database shape of a Record. Args travel as a JSON column
// so the schema stays flat regardless of engine-specific keys.
type recordRow struct {
	ID        string    `db:"id,primarykey"`
	Name      string    `db:"name"`
	Engine    string    `db:"engine"`
	Target    string    `db:"target"`
	Status    string    `db:"status"`
	Error     string    `db:"error"`
	Args      string    `db:"args"`
	DataRows  int       `db:"data_rows"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	TrainedAt time.Time `db:"trained_at"`
}

func (recordRow) TableName() string {
	return "model_records"
}

// SQLStore persists model records in a relational database. The sqlite3
// driver backs the default single-node setup, postgres backs shared ones.
type SQLStore struct {
	dbMap *gorp.DbMap
	log   *logger.Logger
}

const pingRetries = 10

// NewSQLStore opens the database, waits until it accepts connections and
// ensures the records table exists.
func NewSQLStore(driver, dsn string, log *logger.Logger) (*SQLStore, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	for i := 0; i < pingRetries; i++ {
		err = sqlDB.Ping()
		if err == nil {
			break
		}
		if i == pingRetries-1 {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("giving up connecting to registry database: %w", err)
		}
		log.WithFields(map[string]any{"driver": driver, "attempt": i + 1}).
			Warn("registry database not reachable yet, retrying")
		time.Sleep(1 * time.Second)
	}

	if driver == "sqlite3" {
		// go-sqlite3 reports locking errors under concurrent writers.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(16)
	}

	dbMap := &gorp.DbMap{Db: sqlDB, Dialect: dialect}
	table := dbMap.AddTableWithName(recordRow{}, recordRow{}.TableName())
	table.ColMap("name").SetUnique(true)

	if err := dbMap.CreateTablesIfNotExists(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create registry table: %w", err)
	}

	log.WithFields(map[string]any{"driver": driver}).Info("registry database is ready")
	return &SQLStore{dbMap: dbMap, log: log}, nil
}

func dialectFor(driver string) (gorp.Dialect, error) {
	switch driver {
	case "sqlite3":
		return gorp.SqliteDialect{}, nil
	case "postgres":
		return gorp.PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported registry driver: %s", driver)
	}
}

// Add inserts a new record
func (s *SQLStore) Add(rec Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}

	if err := s.dbMap.Insert(&row); err != nil {
		if isDuplicateName(err) {
			return ErrDuplicateName{Name: rec.Name}
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID
func (s *SQLStore) Get(id string) (Record, error) {
	return s.selectOne("SELECT * FROM model_records WHERE id = :key", id)
}

// GetByName retrieves a record by model name
func (s *SQLStore) GetByName(name string) (Record, error) {
	return s.selectOne("SELECT * FROM model_records WHERE name = :key", name)
}

func (s *SQLStore) selectOne(query, key string) (Record, error) {
	var row recordRow
	err := s.dbMap.SelectOne(&row, query, map[string]any{"key": key})
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound{Key: key}
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load record: %w", err)
	}
	return fromRow(row)
}

// List returns all records ordered by creation time
func (s *SQLStore) List() ([]Record, error) {
	var rows []recordRow
	if _, err := s.dbMap.Select(&rows, "SELECT * FROM model_records ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Update replaces the record with the same ID
func (s *SQLStore) Update(rec Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}

	count, err := s.dbMap.Update(&row)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if count == 0 {
		return ErrRecordNotFound{Key: rec.ID}
	}
	return nil
}

// Remove deletes the record with the given ID
func (s *SQLStore) Remove(id string) error {
	var row recordRow
	err := s.dbMap.SelectOne(&row, "SELECT * FROM model_records WHERE id = :key", map[string]any{"key": id})
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound{Key: id}
	}
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	if _, err := s.dbMap.Delete(&row); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLStore) Close() error {
	return s.dbMap.Db.Close()
}

// isDuplicateName recognizes unique-constraint violations on the name column
// across the postgres and sqlite3 drivers.
func isDuplicateName(err error) bool {
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value violates unique constraint") &&
		!strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return strings.Contains(msg, "name")
}

func toRow(rec Record) (recordRow, error) {
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return recordRow{}, fmt.Errorf("failed to encode record args: %w", err)
	}

	return recordRow{
		ID:        rec.ID,
		Name:      rec.Name,
		Engine:    rec.Engine,
		Target:    rec.Target,
		Status:    string(rec.Status),
		Error:     rec.Error,
		Args:      string(args),
		DataRows:  rec.DataRows,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		TrainedAt: rec.TrainedAt,
	}, nil
}

func fromRow(row recordRow) (Record, error) {
	var args engine.Args
	if row.Args != "" {
		if err := json.Unmarshal([]byte(row.Args), &args); err != nil {
			return Record{}, fmt.Errorf("failed to decode record args: %w", err)
		}
	}

	return Record{
		ID:        row.ID,
		Name:      row.Name,
		Engine:    row.Engine,
		Target:    row.Target,
		Status:    Status(row.Status),
		Error:     row.Error,
		Args:      args,
		DataRows:  row.DataRows,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		TrainedAt: row.TrainedAt,
	}, nil
}
