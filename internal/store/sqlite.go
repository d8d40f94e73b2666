package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the database at path. ":memory:" gives a private
// in-memory database.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: writes are serialized anyway and ":memory:" is
	// per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	return migrate(ctx, s.db, goose.DialectSQLite3, "sqlite")
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteDB) SchemaVersion(ctx context.Context) (int64, error) {
	return schemaVersion(ctx, s.db, goose.DialectSQLite3, "sqlite")
}

// CreateWheel inserts a wheel, assigning an id and timestamps when missing.
func (s *SQLiteDB) CreateWheel(ctx context.Context, w *Wheel) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wheels (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		w.ID.String(), w.Name, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: create wheel: %w", err)
	}
	return nil
}

// GetWheel retrieves a wheel by ID
func (s *SQLiteDB) GetWheel(ctx context.Context, id uuid.UUID) (*Wheel, error) {
	var w Wheel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM wheels WHERE id = ?`, id.String(),
	).Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get wheel: %w", err)
	}
	return &w, nil
}

// ListWheels returns every wheel, oldest first.
func (s *SQLiteDB) ListWheels(ctx context.Context) ([]Wheel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM wheels ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list wheels: %w", err)
	}
	defer rows.Close()

	wheels := []Wheel{}
	for rows.Next() {
		var w Wheel
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan wheel: %w", err)
		}
		wheels = append(wheels, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate wheels: %w", err)
	}
	return wheels, nil
}

// DeleteWheel removes a wheel with its slices, history and spin log.
func (s *SQLiteDB) DeleteWheel(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM spins WHERE wheel_id = ?`,
			`DELETE FROM history WHERE wheel_id = ?`,
			`DELETE FROM slices WHERE wheel_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id.String()); err != nil {
				return fmt.Errorf("store: delete wheel: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM wheels WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("store: delete wheel: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LoadSlices returns the wheel's slices in position order.
func (s *SQLiteDB) LoadSlices(ctx context.Context, wheelID uuid.UUID) ([]wheel.Slice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, drop_rate, color FROM slices WHERE wheel_id = ? ORDER BY position`,
		wheelID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: load slices: %w", err)
	}
	defer rows.Close()

	slices := []wheel.Slice{}
	for rows.Next() {
		var sl wheel.Slice
		if err := rows.Scan(&sl.ID, &sl.Label, &sl.DropRate, &sl.Color); err != nil {
			return nil, fmt.Errorf("store: scan slice: %w", err)
		}
		slices = append(slices, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate slices: %w", err)
	}
	return slices, nil
}

// SaveSlices replaces the wheel's slices in one transaction.
func (s *SQLiteDB) SaveSlices(ctx context.Context, wheelID uuid.UUID, slices []wheel.Slice) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveSlices(ctx, tx, wheelID, slices)
	})
}

// ReplaceSlices replaces the wheel's slices and, when resetHistory is set,
// clears its history in the same transaction.
func (s *SQLiteDB) ReplaceSlices(ctx context.Context, wheelID uuid.UUID, slices []wheel.Slice, resetHistory bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveSlices(ctx, tx, wheelID, slices); err != nil {
			return err
		}
		if resetHistory {
			return saveHistory(ctx, tx, wheelID, wheel.NewHistory())
		}
		return nil
	})
}

func saveSlices(ctx context.Context, tx *sql.Tx, wheelID uuid.UUID, slices []wheel.Slice) error {
	if err := touchWheel(ctx, tx, wheelID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM slices WHERE wheel_id = ?`, wheelID.String()); err != nil {
		return fmt.Errorf("store: clear slices: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO slices (wheel_id, id, position, label, drop_rate, color) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare slices: %w", err)
	}
	defer stmt.Close()

	for i, sl := range slices {
		if _, err := stmt.ExecContext(ctx, wheelID.String(), sl.ID.String(), i, sl.Label, sl.DropRate, sl.Color); err != nil {
			return fmt.Errorf("store: insert slice %d: %w", i, err)
		}
	}
	return nil
}

// LoadHistory returns the wheel's spin history.
func (s *SQLiteDB) LoadHistory(ctx context.Context, wheelID uuid.UUID) (wheel.History, error) {
	h := wheel.NewHistory()

	err := s.db.QueryRowContext(ctx,
		`SELECT total_spins FROM wheels WHERE id = ?`, wheelID.String(),
	).Scan(&h.TotalSpins)
	if errors.Is(err, sql.ErrNoRows) {
		return h, ErrNotFound
	}
	if err != nil {
		return h, fmt.Errorf("store: load history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT slice_id, wins FROM history WHERE wheel_id = ?`, wheelID.String())
	if err != nil {
		return h, fmt.Errorf("store: load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var wins int
		if err := rows.Scan(&id, &wins); err != nil {
			return h, fmt.Errorf("store: scan history: %w", err)
		}
		h.Wins[id] = wins
	}
	return h, rows.Err()
}

// SaveHistory replaces the wheel's spin history.
func (s *SQLiteDB) SaveHistory(ctx context.Context, wheelID uuid.UUID, h wheel.History) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveHistory(ctx, tx, wheelID, h)
	})
}

func saveHistory(ctx context.Context, tx *sql.Tx, wheelID uuid.UUID, h wheel.History) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wheels SET total_spins = ? WHERE id = ?`, h.TotalSpins, wheelID.String())
	if err != nil {
		return fmt.Errorf("store: save history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE wheel_id = ?`, wheelID.String()); err != nil {
		return fmt.Errorf("store: clear history: %w", err)
	}
	for id, wins := range h.Wins {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (wheel_id, slice_id, wins) VALUES (?, ?, ?)`,
			wheelID.String(), id.String(), wins,
		); err != nil {
			return fmt.Errorf("store: insert history: %w", err)
		}
	}
	return nil
}

// SaveSpin appends to the spin log and sets spin.ID.
func (s *SQLiteDB) SaveSpin(ctx context.Context, spin *Spin) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveSpin(ctx, tx, spin)
	})
}

// CommitSpin stores the updated history and appends spin to the log in one
// transaction.
func (s *SQLiteDB) CommitSpin(ctx context.Context, spin *Spin, h wheel.History) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveHistory(ctx, tx, spin.WheelID, h); err != nil {
			return err
		}
		return saveSpin(ctx, tx, spin)
	})
}

func saveSpin(ctx context.Context, tx *sql.Tx, spin *Spin) error {
	if spin.CreatedAt.IsZero() {
		spin.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO spins (wheel_id, slice_id, slice_index, label, target_angle, total_rotation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		spin.WheelID.String(), spin.SliceID.String(), spin.SliceIndex, spin.Label,
		spin.TargetAngle, spin.TotalRotation, spin.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save spin: %w", err)
	}
	spin.ID, err = res.LastInsertId()
	return err
}

// ListSpins returns a page of the spin log, newest first.
func (s *SQLiteDB) ListSpins(ctx context.Context, query SpinsQuery) (*SpinsPage, error) {
	offset := query.normalize()

	var totalCount int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spins WHERE wheel_id = ?`, query.WheelID.String(),
	).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get spins count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+spinColumns+`
		FROM spins WHERE wheel_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		query.WheelID.String(), query.PerPage, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query spins: %w", err)
	}
	defer rows.Close()

	spins := []Spin{}
	for rows.Next() {
		spin, err := scanSpin(rows)
		if err != nil {
			return nil, err
		}
		spins = append(spins, spin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spins: %w", err)
	}

	return &SpinsPage{
		Spins:      spins,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages(totalCount, query.PerPage),
	}, nil
}

// EachSpin streams the wheel's spin log oldest first.
func (s *SQLiteDB) EachSpin(ctx context.Context, wheelID uuid.UUID, fn func(Spin) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+spinColumns+`
		FROM spins WHERE wheel_id = ? ORDER BY id`, wheelID.String())
	if err != nil {
		return fmt.Errorf("store: export spins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		spin, err := scanSpin(rows)
		if err != nil {
			return err
		}
		if err := fn(spin); err != nil {
			return err
		}
	}
	return rows.Err()
}

const spinColumns = `id, wheel_id, slice_id, slice_index, label, target_angle, total_rotation, created_at`

func scanSpin(rows *sql.Rows) (Spin, error) {
	var spin Spin
	err := rows.Scan(&spin.ID, &spin.WheelID, &spin.SliceID, &spin.SliceIndex, &spin.Label,
		&spin.TargetAngle, &spin.TotalRotation, &spin.CreatedAt)
	if err != nil {
		return spin, fmt.Errorf("failed to scan spin: %w", err)
	}
	return spin, nil
}

func touchWheel(ctx context.Context, tx *sql.Tx, wheelID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wheels SET updated_at = ? WHERE id = ?`, time.Now().UTC(), wheelID.String())
	if err != nil {
		return fmt.Errorf("store: touch wheel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
