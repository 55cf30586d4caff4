package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

func TestAccountReturnsDomainNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewAccountRepository(db)

	mock.ExpectQuery("SELECT user_id, COALESCE").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Account(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAccountScansSubscriberRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewAccountRepository(db)

	mock.ExpectQuery("SELECT user_id, COALESCE").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "is_subscriber", "share_count"}).
			AddRow("user-1", "a@b.co", true, 3))

	account, err := repo.Account(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if !account.IsSubscriber || account.ShareCount != 3 {
		t.Fatalf("unexpected account %+v", account)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
