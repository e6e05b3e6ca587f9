package facility

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lodgeleads/enrich/internal/model"
)

// pgQuerier is the slice of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a Store backed by pgx/v5.
type PostgresStore struct {
	db    pgQuerier
	close func()
}

// NewPostgresStore connects to the database and ensures the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "facility: connect postgres")
	}
	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// newPostgresStoreWith wraps an existing querier, for tests.
func newPostgresStoreWith(db pgQuerier) *PostgresStore {
	return &PostgresStore{db: db, close: func() {}}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
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
	website_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	email          TEXT NOT NULL DEFAULT '',
	email_source   TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'idle',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_facilities_status ON facilities(status)`
	if _, err := s.db.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "facility: migrate postgres")
	}
	return nil
}

const pgFacilityColumns = `id, raw_id, name, city, district, type, address,
	website, website_source, website_score, email, email_source, status, updated_at`

func scanPgFacility(row pgx.Row) (*model.Facility, error) {
	var f model.Facility
	err := row.Scan(
		&f.ID, &f.RawID, &f.Name, &f.City, &f.District, &f.Type, &f.Address,
		&f.Website, &f.WebsiteSource, &f.WebsiteScore, &f.Email, &f.EmailSource,
		&f.Status, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Facility, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+pgFacilityColumns+` FROM facilities WHERE id = $1`, id)
	f, err := scanPgFacility(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "facility: get %s", id)
	}
	return f, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, jobType model.JobType, sel Selector, limit int, exclude map[string]bool) ([]model.Facility, error) {
	var (
		where []string
		args  []any
	)

	if sel.Mode == ModeIDs {
		args = append(args, sel.IDs)
		where = append(where, `id = ANY($1)`)
	} else {
		statuses := pendingStatuses(jobType, sel.Mode)
		if len(statuses) == 0 {
			return nil, eris.Errorf("facility: unknown job type %q", jobType)
		}
		ss := make([]string, len(statuses))
		for i, st := range statuses {
			ss[i] = string(st)
		}
		args = append(args, ss)
		where = append(where, `status = ANY($1)`)
	}

	if len(exclude) > 0 {
		ids := make([]string, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		args = append(args, ids)
		where = append(where, `NOT (id = ANY($2))`)
	}

	args = append(args, limit)
	query := `SELECT ` + pgFacilityColumns + ` FROM facilities WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY name LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "facility: list pending")
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		f, err := scanPgFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "facility: scan pending row")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "facility: iterate pending rows")
}

func (s *PostgresStore) Insert(ctx context.Context, f *model.Facility) error {
	if f.Status == "" {
		f.Status = model.StatusIdle
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO facilities (`+pgFacilityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		f.ID, f.RawID, f.Name, f.City, f.District, f.Type, f.Address,
		f.Website, string(f.WebsiteSource), f.WebsiteScore, f.Email, f.EmailSource,
		string(f.Status), f.UpdatedAt,
	)
	return eris.Wrapf(err, "facility: insert %s", f.ID)
}

func (s *PostgresStore) UpdateEnrichment(ctx context.Context, f *model.Facility) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE facilities SET
			website = $1, website_source = $2, website_score = $3,
			email = $4, email_source = $5, status = $6, updated_at = now()
		WHERE id = $7`,
		f.Website, string(f.WebsiteSource), f.WebsiteScore,
		f.Email, f.EmailSource, string(f.Status),
		f.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "facility: update %s", f.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.close()
	return nil
}

