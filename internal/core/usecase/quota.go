package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
)

// QuotaUseCase is the request gate. Subscribers pass unconditionally, free
// accounts get a monthly allowance plus share bonuses, anonymous callers get a
// small cookie-tracked trial.
type QuotaUseCase struct {
	accounts       ports.AccountStore
	usage          ports.UsageStore
	monthlyLimit   int64
	shareBonusMax  int64
	anonymousLimit int64
	now            func() time.Time
	log            *slog.Logger
}

func NewQuotaUseCase(
	accounts ports.AccountStore,
	usage ports.UsageStore,
	monthlyLimit int,
	shareBonusMax int,
	anonymousLimit int,
	log *slog.Logger,
) *QuotaUseCase {
	if monthlyLimit <= 0 {
		monthlyLimit = 15
	}
	if shareBonusMax < 0 {
		shareBonusMax = 0
	}
	if anonymousLimit <= 0 {
		anonymousLimit = 3
	}
	return &QuotaUseCase{
		accounts:       accounts,
		usage:          usage,
		monthlyLimit:   int64(monthlyLimit),
		shareBonusMax:  int64(shareBonusMax),
		anonymousLimit: int64(anonymousLimit),
		now:            time.Now,
		log:            log,
	}
}

// CheckUser decides whether an authenticated caller may run another query this
// calendar month. Infrastructure failures fail open: a broken counter store
// must not lock paying or trial users out of the product.
func (uc *QuotaUseCase) CheckUser(ctx context.Context, userID string) domain.QuotaDecision {
	limit := uc.monthlyLimit

	account, err := uc.accounts.Account(ctx, userID)
	switch {
	case err == nil:
		if account.IsSubscriber {
			return domain.QuotaDecision{
				Allowed:      true,
				Remaining:    domain.UnlimitedQuota,
				IsSubscriber: true,
			}
		}
		limit += min(int64(account.ShareCount), uc.shareBonusMax)
	case errors.Is(err, domain.ErrAccountNotFound):
		// Authenticated but never billed: plain free tier.
	default:
		uc.log.Error("account lookup failed, allowing request", "user_id", userID, "error", err)
		return domain.QuotaDecision{Allowed: true, Remaining: limit}
	}

	used, err := uc.usage.MonthlyUsage(ctx, userID, uc.period())
	if err != nil {
		uc.log.Error("usage lookup failed, allowing request", "user_id", userID, "error", err)
		return domain.QuotaDecision{Allowed: true, Remaining: limit}
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaDecision{
		Allowed:   used < limit,
		Remaining: remaining,
	}
}

// CheckAnonymous gates cookie-identified callers on the count the cookie
// carries. No store round trip: the cookie is the counter.
func (uc *QuotaUseCase) CheckAnonymous(count int64) domain.QuotaDecision {
	if count < 0 {
		count = 0
	}
	remaining := uc.anonymousLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaDecision{
		Allowed:   count < uc.anonymousLimit,
		Remaining: remaining,
	}
}

// ChargeUser records one consumed request for the current period. Callers
// charge only after the query succeeded, so failures never burn quota.
func (uc *QuotaUseCase) ChargeUser(ctx context.Context, userID string) error {
	if _, err := uc.usage.IncrementMonthly(ctx, userID, uc.period()); err != nil {
		return fmt.Errorf("charge user %s: %w", userID, err)
	}
	return nil
}

// period is the UTC calendar month the counters key on.
func (uc *QuotaUseCase) period() string {
	return uc.now().UTC().Format("2006-01")
}
