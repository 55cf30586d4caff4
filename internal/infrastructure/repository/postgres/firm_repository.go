package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

type FirmRepository struct {
	db *sql.DB
}

func NewFirmRepository(db *sql.DB) *FirmRepository {
	return &FirmRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *FirmRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/seeder startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082301)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ria_profiles (
	crd_number BIGINT PRIMARY KEY,
	cik BIGINT,
	legal_name TEXT NOT NULL,
	city TEXT,
	state TEXT,
	aum BIGINT,
	private_fund_count INT,
	private_fund_aum BIGINT,
	services TEXT,
	form_adv_date DATE,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ria_profiles_state ON ria_profiles(state);
CREATE INDEX IF NOT EXISTS idx_ria_profiles_city_upper ON ria_profiles(UPPER(city));
CREATE INDEX IF NOT EXISTS idx_ria_profiles_aum ON ria_profiles(aum DESC NULLS LAST);

CREATE TABLE IF NOT EXISTS narratives (
	crd_number BIGINT PRIMARY KEY REFERENCES ria_profiles(crd_number) ON DELETE CASCADE,
	narrative TEXT NOT NULL,
	embedded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	user_id TEXT PRIMARY KEY,
	email TEXT,
	is_subscriber BOOLEAN NOT NULL DEFAULT FALSE,
	share_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const firmColumns = `crd_number, cik, legal_name, COALESCE(city, ''), COALESCE(state, ''), COALESCE(aum, 0), COALESCE(private_fund_count, 0), COALESCE(private_fund_aum, 0), COALESCE(services, ''), COALESCE(form_adv_date, '1970-01-01'::date)`

// FilterFirms builds one SELECT per query: variant slices turn into IN lists
// with OR semantics inside a field, AUM bounds into range predicates, and a
// CRD set into a literal identifier restriction.
func (r *FirmRepository) FilterFirms(ctx context.Context, q domain.FirmQuery) ([]domain.FirmRow, error) {
	var (
		conds []string
		args  []any
	)
	placeholder := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	inList := func(column string, values []string) {
		ps := make([]string, 0, len(values))
		for _, v := range values {
			ps = append(ps, placeholder(v))
		}
		conds = append(conds, fmt.Sprintf("%s IN (%s)", column, strings.Join(ps, ", ")))
	}

	if len(q.StateVariants) > 0 {
		inList("UPPER(state)", upperAll(q.StateVariants))
	}
	if len(q.CityVariants) > 0 {
		inList("UPPER(city)", upperAll(q.CityVariants))
	}
	if q.MinAUM != nil {
		conds = append(conds, fmt.Sprintf("aum >= %s", placeholder(*q.MinAUM)))
	}
	if q.MaxAUM != nil {
		conds = append(conds, fmt.Sprintf("aum <= %s", placeholder(*q.MaxAUM)))
	}
	for _, service := range q.Services {
		conds = append(conds, fmt.Sprintf("services ILIKE '%%' || %s || '%%'", placeholder(service)))
	}
	if len(q.CRDs) > 0 {
		ps := make([]string, 0, len(q.CRDs))
		for _, crd := range q.CRDs {
			ps = append(ps, placeholder(crd))
		}
		conds = append(conds, fmt.Sprintf("crd_number IN (%s)", strings.Join(ps, ", ")))
	}

	query := "SELECT " + firmColumns + " FROM ria_profiles"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if q.Order == domain.SuperlativeSmallest {
		query += " ORDER BY aum ASC NULLS LAST"
	} else {
		query += " ORDER BY aum DESC NULLS LAST"
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s", placeholder(q.Limit))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ria_profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.FirmRow
	for rows.Next() {
		row, err := scanFirmRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ria_profiles: %w", err)
	}
	return out, nil
}

func (r *FirmRepository) FirmByCRD(ctx context.Context, crd int64) (*domain.FirmRow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+firmColumns+" FROM ria_profiles WHERE crd_number = $1", crd)

	firm, err := scanFirmRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFirmNotFound, "firm by crd", fmt.Errorf("crd %d", crd))
		}
		return nil, err
	}
	return &firm, nil
}

func (r *FirmRepository) UpsertProfile(ctx context.Context, firm *domain.FirmRow) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ria_profiles (
	crd_number, cik, legal_name, city, state, aum, private_fund_count, private_fund_aum, services, form_adv_date, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (crd_number) DO UPDATE SET
	cik = EXCLUDED.cik,
	legal_name = EXCLUDED.legal_name,
	city = EXCLUDED.city,
	state = EXCLUDED.state,
	aum = EXCLUDED.aum,
	private_fund_count = EXCLUDED.private_fund_count,
	private_fund_aum = EXCLUDED.private_fund_aum,
	services = EXCLUDED.services,
	form_adv_date = EXCLUDED.form_adv_date,
	updated_at = EXCLUDED.updated_at
`,
		firm.CRD, nullableInt64(firm.CIK), firm.LegalName, firm.City, firm.State,
		firm.AUM, firm.PrivateFundCount, firm.PrivateFundAUM, firm.Services,
		firm.FilingDate, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert ria profile: %w", err)
	}
	return nil
}

func (r *FirmRepository) ListCRDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT crd_number FROM ria_profiles ORDER BY crd_number`)
	if err != nil {
		return nil, fmt.Errorf("list crd numbers: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var crd int64
		if err := rows.Scan(&crd); err != nil {
			return nil, fmt.Errorf("scan crd number: %w", err)
		}
		out = append(out, crd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crd numbers: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFirmRow(scanner rowScanner) (domain.FirmRow, error) {
	var (
		firm domain.FirmRow
		cik  sql.NullInt64
	)
	err := scanner.Scan(
		&firm.CRD, &cik, &firm.LegalName, &firm.City, &firm.State,
		&firm.AUM, &firm.PrivateFundCount, &firm.PrivateFundAUM,
		&firm.Services, &firm.FilingDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.FirmRow{}, err
		}
		return domain.FirmRow{}, fmt.Errorf("scan ria profile: %w", err)
	}
	if cik.Valid {
		firm.CIK = &cik.Int64
	}
	return firm, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func upperAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}
