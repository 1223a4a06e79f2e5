// Package store is the SQLite-backed persistence layer for projects, budget
// items, dependency declarations, and computed period amounts. It is both
// sides of the resolver's boundary: LoadProjectItems supplies the immutable
// input snapshot, and ApplySchedule writes a run's results back.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/parcelgrid/proforma/internal/model"
	"github.com/parcelgrid/proforma/internal/timeline"
)

// ErrProjectNotFound is returned when a project id does not exist. Callers
// use errors.Is to map it to a 404 rather than a server fault.
var ErrProjectNotFound = errors.New("project not found")

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests. WAL mode keeps readers unblocked during writes.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS budget_items (
		id                  TEXT PRIMARY KEY,
		project_id          TEXT NOT NULL REFERENCES projects(id),
		name                TEXT NOT NULL,
		amount              TEXT NOT NULL,
		timing_method       TEXT NOT NULL,
		start_period        INTEGER,
		periods_to_complete INTEGER NOT NULL,
		s_curve_profile     TEXT NOT NULL,
		updated_at          TEXT NOT NULL,
		UNIQUE(project_id, name)
	);

	CREATE TABLE IF NOT EXISTS item_dependencies (
		id                TEXT PRIMARY KEY,
		item_id           TEXT NOT NULL REFERENCES budget_items(id) ON DELETE CASCADE,
		position          INTEGER NOT NULL,
		trigger_item_name TEXT NOT NULL,
		trigger_event     TEXT NOT NULL,
		offset_periods    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS period_amounts (
		id           TEXT PRIMARY KEY,
		item_id      TEXT NOT NULL REFERENCES budget_items(id) ON DELETE CASCADE,
		period_index INTEGER NOT NULL,
		amount       TEXT NOT NULL,
		run_id       TEXT NOT NULL,
		UNIQUE(item_id, period_index)
	);

	CREATE INDEX IF NOT EXISTS idx_budget_items_project ON budget_items(project_id);
	CREATE INDEX IF NOT EXISTS idx_item_dependencies_item ON item_dependencies(item_id, position);
	CREATE INDEX IF NOT EXISTS idx_period_amounts_item ON period_amounts(item_id, period_index);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

func (s *Store) ProjectExists(ctx context.Context, projectID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query project %s: %w", projectID, err)
	}
	return true, nil
}

func (s *Store) CreateProject(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create project %s: %w", id, err)
	}
	return nil
}

// CreateItem inserts a budget item and its dependency rows. The item and
// dependency columns are stored exactly as declared; validation is the
// resolver's job, not the storage layer's.
func (s *Store) CreateItem(ctx context.Context, projectID string, rec model.ItemRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_items
			(id, project_id, name, amount, timing_method, start_period,
			 periods_to_complete, s_curve_profile, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, projectID, rec.Name, rec.Amount.String(), rec.TimingMethod,
		nullableInt(rec.StartPeriod), rec.PeriodsToComplete, rec.CurveProfile, now)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", rec.ID, err)
	}

	for pos, dep := range rec.Dependencies {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO item_dependencies
				(id, item_id, position, trigger_item_name, trigger_event, offset_periods)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), rec.ID, pos, dep.TriggerItemName, dep.TriggerEvent, dep.OffsetPeriods)
		if err != nil {
			return fmt.Errorf("insert dependency %d of item %s: %w", pos, rec.ID, err)
		}
	}

	return tx.Commit()
}

// LoadProjectItems returns the project's full item set with dependency
// declarations in stored order, ready to hand to timeline.Calculate.
func (s *Store) LoadProjectItems(ctx context.Context, projectID string) ([]model.ItemRecord, error) {
	exists, err := s.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, amount, timing_method, start_period, periods_to_complete, s_curve_profile
		FROM budget_items
		WHERE project_id = ?
		ORDER BY rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var records []model.ItemRecord
	byID := make(map[string]int)
	for rows.Next() {
		var rec model.ItemRecord
		var amount string
		var start sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Name, &amount, &rec.TimingMethod,
			&start, &rec.PeriodsToComplete, &rec.CurveProfile); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("item %s: parse amount %q: %w", rec.ID, amount, err)
		}
		if start.Valid {
			v := int(start.Int64)
			rec.StartPeriod = &v
		}
		byID[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	depRows, err := s.db.QueryContext(ctx, `
		SELECT d.item_id, d.trigger_item_name, d.trigger_event, d.offset_periods
		FROM item_dependencies d
		JOIN budget_items i ON i.id = d.item_id
		WHERE i.project_id = ?
		ORDER BY d.item_id, d.position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer depRows.Close()

	for depRows.Next() {
		var itemID string
		var dep model.DependencyRecord
		if err := depRows.Scan(&itemID, &dep.TriggerItemName, &dep.TriggerEvent, &dep.OffsetPeriods); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		idx, ok := byID[itemID]
		if !ok {
			continue
		}
		records[idx].Dependencies = append(records[idx].Dependencies, dep)
	}
	if err := depRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependencies: %w", err)
	}

	return records, nil
}

// ApplySchedule persists a run's computed schedules: each item's resolved
// start period plus its full period-amount series, replacing any prior
// series. All given schedules commit in one transaction; items that failed
// the run are simply not in the list, so their stored schedule stays as-is.
func (s *Store) ApplySchedule(ctx context.Context, runID string, schedules []timeline.ItemSchedule) error {
	if len(schedules) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, sched := range schedules {
		res, err := tx.ExecContext(ctx, `
			UPDATE budget_items SET start_period = ?, updated_at = ? WHERE id = ?`,
			sched.StartPeriod, now, sched.ItemID)
		if err != nil {
			return fmt.Errorf("update item %s: %w", sched.ItemID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update item %s: no such item", sched.ItemID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM period_amounts WHERE item_id = ?`, sched.ItemID); err != nil {
			return fmt.Errorf("clear period amounts for %s: %w", sched.ItemID, err)
		}
		for _, row := range sched.Amounts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO period_amounts (id, item_id, period_index, amount, run_id)
				VALUES (?, ?, ?, ?, ?)`,
				uuid.NewString(), row.ItemID, row.PeriodIndex, row.Amount.String(), runID)
			if err != nil {
				return fmt.Errorf("insert period amount %s[%d]: %w", row.ItemID, row.PeriodIndex, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule: %w", err)
	}
	s.logger.Info("schedule applied",
		zap.String("run_id", runID),
		zap.Int("items", len(schedules)))
	return nil
}

// ScheduledItem is one item's stored schedule as the grid renders it.
type ScheduledItem struct {
	ItemID            string               `json:"item_id"`
	Name              string               `json:"name"`
	TimingMethod      string               `json:"timing_method"`
	StartPeriod       *int                 `json:"start_period"`
	PeriodsToComplete int                  `json:"periods_to_complete"`
	CurveProfile      string               `json:"s_curve_profile"`
	Amounts           []model.PeriodAmount `json:"amounts"`
}

// LoadSchedule reads back the stored schedule for a project.
func (s *Store) LoadSchedule(ctx context.Context, projectID string) ([]ScheduledItem, error) {
	records, err := s.LoadProjectItems(ctx, projectID)
	if err != nil {
		return nil, err
	}

	items := make([]ScheduledItem, 0, len(records))
	byID := make(map[string]int)
	for _, rec := range records {
		byID[rec.ID] = len(items)
		items = append(items, ScheduledItem{
			ItemID:            rec.ID,
			Name:              rec.Name,
			TimingMethod:      rec.TimingMethod,
			StartPeriod:       rec.StartPeriod,
			PeriodsToComplete: rec.PeriodsToComplete,
			CurveProfile:      rec.CurveProfile,
		})
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.item_id, p.period_index, p.amount
		FROM period_amounts p
		JOIN budget_items i ON i.id = p.item_id
		WHERE i.project_id = ?
		ORDER BY p.item_id, p.period_index`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query period amounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, amount string
		var period int
		if err := rows.Scan(&itemID, &period, &amount); err != nil {
			return nil, fmt.Errorf("scan period amount: %w", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("item %s: parse period amount %q: %w", itemID, amount, err)
		}
		idx, ok := byID[itemID]
		if !ok {
			continue
		}
		items[idx].Amounts = append(items[idx].Amounts, model.PeriodAmount{
			ItemID:      itemID,
			PeriodIndex: period,
			Amount:      amt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate period amounts: %w", err)
	}

	return items, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
