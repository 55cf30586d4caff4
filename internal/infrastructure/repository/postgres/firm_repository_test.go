package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

func newFirmRepoWithMock(t *testing.T) (*FirmRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &FirmRepository{db: db}, mock, func() { _ = db.Close() }
}

func firmRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"crd_number", "cik", "legal_name", "city", "state", "aum",
		"private_fund_count", "private_fund_aum", "services", "form_adv_date",
	})
}

func TestFilterFirmsBuildsVariantClauses(t *testing.T) {
	repo, mock, done := newFirmRepoWithMock(t)
	defer done()

	minAUM := int64(500000000)
	expected := "SELECT " + firmColumns + " FROM ria_profiles" +
		" WHERE UPPER(state) IN ($1, $2, $3)" +
		" AND UPPER(city) IN ($4, $5, $6)" +
		" AND aum >= $7" +
		" ORDER BY aum DESC NULLS LAST LIMIT $8"

	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs("MO", "MISSOURI", "MISSOURI", "SAINT LOUIS", "ST. LOUIS", "ST LOUIS", minAUM, 50).
		WillReturnRows(firmRows().
			AddRow(int64(100), nil, "Acme Capital LLC", "SAINT LOUIS", "MO", int64(900000000), 2, int64(100000000), "private placements", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	rows, err := repo.FilterFirms(context.Background(), domain.FirmQuery{
		StateVariants: []string{"MO", "Missouri", "MISSOURI"},
		CityVariants:  []string{"SAINT LOUIS", "ST. LOUIS", "ST LOUIS"},
		MinAUM:        &minAUM,
		Order:         domain.SuperlativeLargest,
		Limit:         50,
	})
	if err != nil {
		t.Fatalf("FilterFirms() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].CRD != 100 || rows[0].LegalName != "Acme Capital LLC" {
		t.Fatalf("unexpected row %+v", rows[0])
	}
	if rows[0].CIK != nil {
		t.Fatalf("expected nil CIK for NULL column, got %v", *rows[0].CIK)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFilterFirmsRestrictsToCRDSetAscending(t *testing.T) {
	repo, mock, done := newFirmRepoWithMock(t)
	defer done()

	expected := "SELECT " + firmColumns + " FROM ria_profiles" +
		" WHERE crd_number IN ($1, $2)" +
		" ORDER BY aum ASC NULLS LAST LIMIT $3"

	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs(int64(7), int64(9), 25).
		WillReturnRows(firmRows())

	_, err := repo.FilterFirms(context.Background(), domain.FirmQuery{
		CRDs:  []int64{7, 9},
		Order: domain.SuperlativeSmallest,
		Limit: 25,
	})
	if err != nil {
		t.Fatalf("FilterFirms() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFilterFirmsAppliesServiceFilters(t *testing.T) {
	repo, mock, done := newFirmRepoWithMock(t)
	defer done()

	expected := "SELECT " + firmColumns + " FROM ria_profiles" +
		" WHERE services ILIKE '%' || $1 || '%'" +
		" ORDER BY aum DESC NULLS LAST LIMIT $2"

	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs("private placements", 10).
		WillReturnRows(firmRows())

	_, err := repo.FilterFirms(context.Background(), domain.FirmQuery{
		Services: []string{"private placements"},
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("FilterFirms() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFirmByCRDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newFirmRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT crd_number, cik, legal_name").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FirmByCRD(context.Background(), 404)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrFirmNotFound) {
		t.Fatalf("expected ErrFirmNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertProfileInsertsAllColumns(t *testing.T) {
	repo, mock, done := newFirmRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO ria_profiles").
		WithArgs(int64(100), nil, "Acme Capital LLC", "Saint Louis", "MO",
			int64(900000000), 2, int64(100000000), "private placements",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertProfile(context.Background(), &domain.FirmRow{
		CRD:              100,
		LegalName:        "Acme Capital LLC",
		City:             "Saint Louis",
		State:            "MO",
		AUM:              900000000,
		PrivateFundCount: 2,
		PrivateFundAUM:   100000000,
		Services:         "private placements",
		FilingDate:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
