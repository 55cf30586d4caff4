package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

type accountStoreFake struct {
	accounts map[string]*domain.Account
	err      error
}

func (f *accountStoreFake) Account(_ context.Context, userID string) (*domain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	account, ok := f.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

type usageStoreFake struct {
	counts     map[string]int64
	getErr     error
	incrErr    error
	increments []string
}

func (f *usageStoreFake) MonthlyUsage(_ context.Context, userID, period string) (int64, error) {
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.counts[userID+"/"+period], nil
}

func (f *usageStoreFake) IncrementMonthly(_ context.Context, userID, period string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	key := userID + "/" + period
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	f.increments = append(f.increments, key)
	return f.counts[key], nil
}

func newQuotaForTest(accounts *accountStoreFake, usage *usageStoreFake) *QuotaUseCase {
	uc := NewQuotaUseCase(accounts, usage, 15, 5, 3, testLogger())
	uc.now = func() time.Time {
		return time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)
	}
	return uc
}

func TestCheckUserSubscriberIsUnlimited(t *testing.T) {
	accounts := &accountStoreFake{accounts: map[string]*domain.Account{
		"sub-1": {UserID: "sub-1", IsSubscriber: true},
	}}
	usage := &usageStoreFake{counts: map[string]int64{"sub-1/2026-08": 10_000}}
	uc := newQuotaForTest(accounts, usage)

	d := uc.CheckUser(context.Background(), "sub-1")
	if !d.Allowed || !d.IsSubscriber {
		t.Fatalf("expected subscriber allowed, got %+v", d)
	}
	if d.Remaining != domain.UnlimitedQuota {
		t.Fatalf("expected unlimited marker, got %d", d.Remaining)
	}
}

func TestCheckUserFreeTierCountsDown(t *testing.T) {
	accounts := &accountStoreFake{accounts: map[string]*domain.Account{
		"free-1": {UserID: "free-1"},
	}}
	usage := &usageStoreFake{counts: map[string]int64{"free-1/2026-08": 14}}
	uc := newQuotaForTest(accounts, usage)

	d := uc.CheckUser(context.Background(), "free-1")
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected one request left, got %+v", d)
	}

	usage.counts["free-1/2026-08"] = 15
	d = uc.CheckUser(context.Background(), "free-1")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected exhausted quota denied, got %+v", d)
	}
}

func TestCheckUserShareBonusIsCapped(t *testing.T) {
	accounts := &accountStoreFake{accounts: map[string]*domain.Account{
		"sharer": {UserID: "sharer", ShareCount: 12},
	}}
	usage := &usageStoreFake{counts: map[string]int64{"sharer/2026-08": 19}}
	uc := newQuotaForTest(accounts, usage)

	// 15 base + 5 capped bonus = 20.
	d := uc.CheckUser(context.Background(), "sharer")
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected capped bonus to leave 1 request, got %+v", d)
	}

	usage.counts["sharer/2026-08"] = 20
	if d := uc.CheckUser(context.Background(), "sharer"); d.Allowed {
		t.Fatalf("expected denial at capped limit, got %+v", d)
	}
}

func TestCheckUserUnknownAccountGetsFreeTier(t *testing.T) {
	uc := newQuotaForTest(&accountStoreFake{}, &usageStoreFake{})

	d := uc.CheckUser(context.Background(), "never-billed")
	if !d.Allowed || d.Remaining != 15 {
		t.Fatalf("expected plain free tier for unknown account, got %+v", d)
	}
}

func TestCheckUserFailsOpenOnStoreErrors(t *testing.T) {
	uc := newQuotaForTest(&accountStoreFake{err: errors.New("db down")}, &usageStoreFake{})
	if d := uc.CheckUser(context.Background(), "u"); !d.Allowed {
		t.Fatalf("expected fail-open on account store error, got %+v", d)
	}

	accounts := &accountStoreFake{accounts: map[string]*domain.Account{"u": {UserID: "u"}}}
	uc = newQuotaForTest(accounts, &usageStoreFake{getErr: errors.New("redis down")})
	if d := uc.CheckUser(context.Background(), "u"); !d.Allowed {
		t.Fatalf("expected fail-open on usage store error, got %+v", d)
	}
}

func TestCheckUserNewMonthResetsUsage(t *testing.T) {
	accounts := &accountStoreFake{accounts: map[string]*domain.Account{
		"free-1": {UserID: "free-1"},
	}}
	usage := &usageStoreFake{counts: map[string]int64{"free-1/2026-08": 15}}
	uc := newQuotaForTest(accounts, usage)

	if d := uc.CheckUser(context.Background(), "free-1"); d.Allowed {
		t.Fatalf("expected August exhausted, got %+v", d)
	}

	uc.now = func() time.Time {
		return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	}
	d := uc.CheckUser(context.Background(), "free-1")
	if !d.Allowed || d.Remaining != 15 {
		t.Fatalf("expected fresh allowance in September, got %+v", d)
	}
}

func TestCheckAnonymousTrial(t *testing.T) {
	uc := newQuotaForTest(&accountStoreFake{}, &usageStoreFake{})

	cases := []struct {
		count     int64
		allowed   bool
		remaining int64
	}{
		{0, true, 3},
		{2, true, 1},
		{3, false, 0},
		{99, false, 0},
		{-1, true, 3},
	}
	for _, tc := range cases {
		d := uc.CheckAnonymous(tc.count)
		if d.Allowed != tc.allowed || d.Remaining != tc.remaining {
			t.Fatalf("CheckAnonymous(%d) = %+v, want allowed=%v remaining=%d",
				tc.count, d, tc.allowed, tc.remaining)
		}
		if d.IsSubscriber {
			t.Fatal("anonymous caller can never be a subscriber")
		}
	}
}

func TestChargeUserUsesCurrentPeriod(t *testing.T) {
	usage := &usageStoreFake{}
	uc := newQuotaForTest(&accountStoreFake{}, usage)

	if err := uc.ChargeUser(context.Background(), "free-1"); err != nil {
		t.Fatalf("ChargeUser() error = %v", err)
	}
	if len(usage.increments) != 1 || usage.increments[0] != "free-1/2026-08" {
		t.Fatalf("expected one increment for 2026-08, got %v", usage.increments)
	}
}

func TestChargeUserSurfacesStoreError(t *testing.T) {
	uc := newQuotaForTest(&accountStoreFake{}, &usageStoreFake{incrErr: errors.New("redis down")})
	if err := uc.ChargeUser(context.Background(), "u"); err == nil {
		t.Fatal("expected increment error to surface")
	}
}
