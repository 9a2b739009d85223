package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"AfricaScraper/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)

// Dialect selects SQL differences between the supported databases.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Store is a thin layer around the database connection.
type Store struct {
	DB      *sql.DB
	dialect Dialect
	log     zerolog.Logger
}

// Open connects to driver ("sqlite" or "postgres") and creates the run manifest table.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch Dialect(driver) {
	case SQLite:
		db, err = sql.Open("sqlite", dsn)
	case Postgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if Dialect(driver) == SQLite {
		// One writer at a time; parallel runs otherwise hit SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	s := New(db, Dialect(driver))
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info().Str("driver", driver).Msg("database initialized")
	return s, nil
}

// New wraps an existing connection.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		DB:      db,
		dialect: dialect,
		log:     log.With().Str("component", "database").Logger(),
	}
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) Dialect() Dialect { return s.dialect }

// EnsureSchema creates the run manifest table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		"id" TEXT NOT NULL PRIMARY KEY,
		"source" TEXT NOT NULL,
		"state" TEXT NOT NULL,
		"pages" INTEGER,
		"records" INTEGER,
		"rejected" INTEGER,
		"artifact" TEXT,
		"error" TEXT,
		"started_at" TEXT,
		"finished_at" TEXT
	)`)
	if err != nil {
		return fmt.Errorf("creating scrape_runs table: %w", err)
	}
	return nil
}

// QuoteIdent quotes an identifier for both dialects.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *Store) placeholder(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) placeholders(from, count int) string {
	ps := make([]string, count)
	for i := range ps {
		ps[i] = s.placeholder(from + i)
	}
	return strings.Join(ps, ", ")
}

func (s *Store) columnType(kind models.ColumnKind) string {
	if kind == models.DoubleColumn {
		if s.dialect == Postgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	}
	return "TEXT"
}

// ReplaceTable drops table and recreates it from rs in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, table string, rs *models.ResultSet) (err error) {
	cols := models.ResolveColumns(rs)
	if len(cols) == 0 {
		return fmt.Errorf("table %s: result set has no columns", table)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = QuoteIdent(c.Name)
		defs[i] = names[i] + " " + s.columnType(c.Kind)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), strings.Join(names, ", "), s.placeholders(1, len(cols))))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", table, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, r := range rs.Records() {
		for i, c := range cols {
			args[i] = models.Cell(r, c)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.log.Info().Str("table", table).Int("rows", rs.Len()).Msg("table written")
	return nil
}

// MaterializeFiltered (re)creates target as the rows of base whose field is one of values.
// It returns the number of rows in target.
func (s *Store) MaterializeFiltered(ctx context.Context, base, target, field string, values []string) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("materializing %s: empty value list", target)
	}
	if _, err := s.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(target)); err != nil {
		return 0, fmt.Errorf("dropping %s: %w", target, err)
	}

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	query := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s WHERE %s IN (%s)",
		QuoteIdent(target), QuoteIdent(base), QuoteIdent(field), s.placeholders(1, len(values)))
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("creating %s: %w", target, err)
	}
	return s.CountRows(ctx, target)
}

// RewriteValues replaces values of field in table following mapping (old -> new).
// It returns the number of rows changed.
func (s *Store) RewriteValues(ctx context.Context, table, field string, mapping map[string]string) (int64, error) {
	if len(mapping) == 0 {
		return 0, nil
	}
	olds := make([]string, 0, len(mapping))
	for o := range mapping {
		olds = append(olds, o)
	}
	sort.Strings(olds)

	col := QuoteIdent(field)
	args := make([]any, 0, 3*len(olds))
	whens := make([]string, len(olds))
	for i, o := range olds {
		whens[i] = fmt.Sprintf("WHEN %s THEN %s", s.placeholder(2*i+1), s.placeholder(2*i+2))
		args = append(args, o, mapping[o])
	}
	for _, o := range olds {
		args = append(args, o)
	}
	query := fmt.Sprintf("UPDATE %s SET %s = CASE %s %s END WHERE %s IN (%s)",
		QuoteIdent(table), col, col, strings.Join(whens, " "), col, s.placeholders(2*len(olds)+1, len(olds)))
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("rewriting %s.%s: %w", table, field, err)
	}
	return res.RowsAffected()
}

func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// RunEntry is one row of the run manifest.
type RunEntry struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	State      string    `json:"state"`
	Pages      int       `json:"pages"`
	Records    int       `json:"records"`
	Rejected   int       `json:"rejected"`
	Artifact   string    `json:"artifact,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecordRun inserts or replaces a manifest entry.
func (s *Store) RecordRun(ctx context.Context, e RunEntry) error {
	query := fmt.Sprintf(`
	INSERT INTO scrape_runs (id, source, state, pages, records, rejected, artifact, error, started_at, finished_at)
	VALUES (%s)
	ON CONFLICT(id) DO UPDATE SET
		state=excluded.state,
		pages=excluded.pages,
		records=excluded.records,
		rejected=excluded.rejected,
		artifact=excluded.artifact,
		error=excluded.error,
		finished_at=excluded.finished_at`, s.placeholders(1, 10))

	_, err := s.DB.ExecContext(ctx, query,
		e.ID, e.Source, e.State, e.Pages, e.Records, e.Rejected, e.Artifact, e.Error,
		formatTime(e.StartedAt), formatTime(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", e.ID, err)
	}
	return nil
}

// ListRuns returns the most recent manifest entries first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, source, state, pages, records, rejected, artifact, error, started_at, finished_at
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT %s`, s.placeholder(1)), limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var (
			e                 RunEntry
			artifact, errText sql.NullString
			started, finished sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.State, &e.Pages, &e.Records, &e.Rejected,
			&artifact, &errText, &started, &finished); err != nil {
			s.log.Warn().Err(err).Msg("error scanning run row")
			continue
		}
		e.Artifact, e.Error = artifact.String, errText.String
		e.StartedAt = parseTime(started.String)
		e.FinishedAt = parseTime(finished.String)
		out = append(out, e)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
