package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Account loads subscription state for a caller. A missing row is reported
// as ErrAccountNotFound; the quota gate treats that as the free tier with no
// share bonus.
func (r *AccountRepository) Account(ctx context.Context, userID string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, COALESCE(email, ''), is_subscriber, share_count
FROM accounts
WHERE user_id = $1
`, userID)

	var account domain.Account
	err := row.Scan(&account.UserID, &account.Email, &account.IsSubscriber, &account.ShareCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAccountNotFound, "load account", fmt.Errorf("user %s", userID))
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &account, nil
}
