package store

//go:generate mockgen -source=db.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"car-sales-pipeline/internal/model"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const driverName = "sqlite3"

// maxVariables keeps a multi-row INSERT under SQLite's host parameter limit.
const maxVariables = 999

// Store persists the cleaned sales table and answers the region KPI query.
type Store interface {
	ReplaceSales(ctx context.Context, table *model.SalesTable) error
	RegionKPIs(ctx context.Context) ([]model.RegionSummary, error)
}

// SQLiteStore keeps the sales table in a single SQLite file. The file is
// opened and closed for every operation.
type SQLiteStore struct {
	path  string
	table string
}

// NewSQLiteStore returns a store for the database file at path. The table
// name must already be validated as a plain identifier.
func NewSQLiteStore(path, table string) *SQLiteStore {
	return &SQLiteStore{path: path, table: table}
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(driverName, s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", s.path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping database %s", s.path)
	}
	return db, nil
}

// ReplaceSales drops the sales table and recreates it with the given rows,
// all inside one transaction.
func (s *SQLiteStore) ReplaceSales(ctx context.Context, table *model.SalesTable) error {
	if table == nil {
		table = &model.SalesTable{}
	}
	for _, c := range table.ExtraColumns {
		if c == model.ColSeq {
			return errors.Errorf("column name %q is reserved", c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, "create database directory for %s", s.path)
	}

	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return runInTransaction(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(s.table)); err != nil {
			return errors.Wrapf(err, "drop table %s", s.table)
		}
		if _, err := tx.ExecContext(ctx, createTableSQL(s.table, table.ExtraColumns)); err != nil {
			return errors.Wrapf(err, "create table %s", s.table)
		}
		return s.insertRecords(ctx, tx, table)
	})
}

func (s *SQLiteStore) insertRecords(ctx context.Context, tx *sql.Tx, table *model.SalesTable) error {
	columns := append([]string{model.ColSeq}, table.Columns()...)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	batchSize := maxVariables / len(columns)
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(table.Records); start += batchSize {
		end := start + batchSize
		if end > len(table.Records) {
			end = len(table.Records)
		}

		query := squirrel.Insert(quoteIdent(s.table)).Columns(quoted...)
		for i, rec := range table.Records[start:end] {
			values := append([]interface{}{start + i + 1}, recordValues(rec, table.ExtraColumns)...)
			query = query.Values(values...)
		}

		sqlQuery, args, err := query.ToSql()
		if err != nil {
			return errors.Wrap(err, "build insert query")
		}
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return errors.Wrapf(err, "insert rows %d-%d", start, end-1)
		}
	}
	return nil
}

// RegionKPIs groups the persisted table by region. Rows come back ordered by
// total sales descending, ties by the lowest insertion ordinal.
func (s *SQLiteStore) RegionKPIs(ctx context.Context) ([]model.RegionSummary, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, errors.Wrapf(err, "stat database %s", s.path)
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query, args, err := squirrel.
		Select(
			quoteIdent(model.ColRegion),
			"COALESCE(SUM(sales), 0) AS total_sales",
			"COALESCE(SUM(revenue), 0) AS total_revenue",
			"AVG(revenue) AS avg_revenue_per_region",
		).
		From(quoteIdent(s.table)).
		GroupBy(quoteIdent(model.ColRegion)).
		OrderBy("total_sales DESC", "MIN("+quoteIdent(model.ColSeq)+") ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build region kpi query")
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query region kpis from %s", s.table)
	}
	defer rows.Close()

	var out []model.RegionSummary
	for rows.Next() {
		var r model.RegionSummary
		if err := rows.Scan(&r.Region, &r.TotalSales, &r.TotalRevenue, &r.AvgRevenue); err != nil {
			return nil, errors.Wrap(err, "scan region kpi row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate region kpi rows")
	}
	return out, nil
}

// CountSales returns the number of persisted rows.
func (s *SQLiteStore) CountSales(ctx context.Context) (int, error) {
	db, err := s.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	query, args, err := squirrel.Select("COUNT(*)").From(quoteIdent(s.table)).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build count query")
	}

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count rows in %s", s.table)
	}
	return n, nil
}

func runInTransaction(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}

func createTableSQL(table string, extras []string) string {
	defs := []string{
		quoteIdent(model.ColSeq) + " INTEGER NOT NULL",
		quoteIdent(model.ColRegion) + " TEXT",
		quoteIdent(model.ColModel) + " TEXT",
		quoteIdent(model.ColSales) + " REAL",
		quoteIdent(model.ColRevenue) + " REAL",
		quoteIdent(model.ColDate) + " TEXT",
	}
	for _, c := range extras {
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	return "CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(defs, ", ") + ")"
}

func recordValues(rec model.SalesRecord, extras []string) []interface{} {
	values := []interface{}{
		rec.Region,
		rec.Model,
		rec.Sales,
		rec.Revenue,
		rec.Date.Format(model.DateLayout),
	}
	for _, c := range extras {
		v, ok := rec.Extra[c]
		values = append(values, sql.NullString{String: v, Valid: ok && v != ""})
	}
	return values
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
