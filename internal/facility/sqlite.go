package facility

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lodgeleads/enrich/internal/model"
)

// SQLiteStore is a Store backed by modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the facility database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "facility: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "facility: exec %s", pragma)
		}
	}

	const migration = `
CREATE TABLE IF NOT EXISTS facilities (
	id             TEXT PRIMARY KEY,
	raw_id         TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL,
	city           TEXT NOT NULL DEFAULT '',
	district       TEXT NOT NULL DEFAULT '',
	type           TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	website_source TEXT NOT NULL DEFAULT '',
	website_score  REAL NOT NULL DEFAULT 0,
	email          TEXT NOT NULL DEFAULT '',
	email_source   TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'idle',
	updated_at     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_facilities_status ON facilities(status);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "facility: migrate")
	}

	return &SQLiteStore{db: db}, nil
}

const facilityColumns = `id, raw_id, name, city, district, type, address,
	website, website_source, website_score, email, email_source, status, updated_at`

func scanFacility(row interface{ Scan(...any) error }) (*model.Facility, error) {
	var f model.Facility
	var updatedAt int64
	err := row.Scan(
		&f.ID, &f.RawID, &f.Name, &f.City, &f.District, &f.Type, &f.Address,
		&f.Website, &f.WebsiteSource, &f.WebsiteScore, &f.Email, &f.EmailSource,
		&f.Status, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt > 0 {
		f.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	}
	return &f, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Facility, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id)
	f, err := scanFacility(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "facility: get %s", id)
	}
	return f, nil
}

func (s *SQLiteStore) ListPending(ctx context.Context, jobType model.JobType, sel Selector, limit int, exclude map[string]bool) ([]model.Facility, error) {
	var (
		where []string
		args  []any
	)

	if sel.Mode == ModeIDs {
		where = append(where, `id IN (`+placeholders(len(sel.IDs))+`)`)
		for _, id := range sel.IDs {
			args = append(args, id)
		}
	} else {
		statuses := pendingStatuses(jobType, sel.Mode)
		if len(statuses) == 0 {
			return nil, eris.Errorf("facility: unknown job type %q", jobType)
		}
		where = append(where, `status IN (`+placeholders(len(statuses))+`)`)
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}

	if len(exclude) > 0 {
		ids := make([]string, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		where = append(where, `id NOT IN (`+placeholders(len(ids))+`)`)
		for _, id := range ids {
			args = append(args, id)
		}
	}

	args = append(args, limit)
	query := `SELECT ` + facilityColumns + ` FROM facilities WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY name LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "facility: list pending")
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "facility: scan pending row")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "facility: iterate pending rows")
}

func (s *SQLiteStore) Insert(ctx context.Context, f *model.Facility) error {
	if f.Status == "" {
		f.Status = model.StatusIdle
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facilities (`+facilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.RawID, f.Name, f.City, f.District, f.Type, f.Address,
		f.Website, string(f.WebsiteSource), f.WebsiteScore, f.Email, f.EmailSource,
		string(f.Status), f.UpdatedAt.Unix(),
	)
	return eris.Wrapf(err, "facility: insert %s", f.ID)
}

func (s *SQLiteStore) UpdateEnrichment(ctx context.Context, f *model.Facility) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE facilities SET
			website = ?, website_source = ?, website_score = ?,
			email = ?, email_source = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		f.Website, string(f.WebsiteSource), f.WebsiteScore,
		f.Email, f.EmailSource, string(f.Status), time.Now().UTC().Unix(),
		f.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "facility: update %s", f.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
