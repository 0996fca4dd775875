package entitlement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *RepoMock) LockUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) MarkFreeTrialUsed(ctx context.Context, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) BindFreeTrialReading(ctx context.Context, userID, readingID string) (bool, error) {
	args := m.Called(ctx, userID, readingID)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) GetLiveSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) IncrementReadingsUsed(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

type PricingMock struct{ mock.Mock }

func (m *PricingMock) Price(ctx context.Context, readingType string) (*models.ReadingPrice, error) {
	args := m.Called(ctx, readingType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReadingPrice), args.Error(1)
}

type LedgerMock struct{ mock.Mock }

func (m *LedgerMock) Debit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error) {
	args := m.Called(ctx, userID, amount, reason, reference)
	return args.Get(0).(int64), args.Error(1)
}

type AuditMock struct{ mock.Mock }

func (m *AuditMock) Record(ctx context.Context, e models.AuditEntry) error {
	return m.Called(ctx, e).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var (
	fixedNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	tiers    = map[models.Tier]models.TierPolicy{
		models.TierBasic:  {ReadingsPerPeriod: 2},
		models.TierPro:    {FullSectionAccess: true, ReadingsPerPeriod: 10},
		models.TierMaster: {FullSectionAccess: true, ReadingsPerPeriod: -1},
	}
)

type fixture struct {
	repo    *RepoMock
	pricing *PricingMock
	ledger  *LedgerMock
	audit   *AuditMock
	svc     *EntitlementService
}

func newFixture() *fixture {
	f := &fixture{repo: &RepoMock{}, pricing: &PricingMock{}, ledger: &LedgerMock{}, audit: &AuditMock{}}
	f.svc = New(f.repo, f.pricing, f.ledger, f.audit, tiers, newNoopLogger())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func liveSub(tier models.Tier, used int) *models.Subscription {
	return &models.Subscription{
		ID: "sub-1", UserID: "u-1", Tier: tier, Status: models.SubscriptionActive,
		PeriodStart: fixedNow.AddDate(0, 0, -1), PeriodEnd: fixedNow.AddDate(0, 0, 29), ReadingsUsed: used,
	}
}

func TestConsumeFreeTrial_ExactlyOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("LockUser", mock.Anything, "u-1").Return(&models.User{ID: "u-1"}, nil).Once()
	f.repo.On("MarkFreeTrialUsed", mock.Anything, "u-1", fixedNow).Return(true, nil).Once()
	f.audit.On("Record", mock.Anything, mock.MatchedBy(func(e models.AuditEntry) bool {
		return e.Action == models.ActionFreeTrialGrant && e.Reason == models.ReasonFreeTrial && e.Delta == 0
	})).Return(nil).Once()

	granted, err := f.svc.ConsumeFreeTrial(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, granted)

	f.repo.On("LockUser", mock.Anything, "u-1").Return(&models.User{ID: "u-1", FreeTrialUsed: true}, nil).Once()
	granted, err = f.svc.ConsumeFreeTrial(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, granted)

	f.repo.AssertExpectations(t)
	f.audit.AssertExpectations(t)
}

func TestFreeTrialAvailable(t *testing.T) {
	bound := "r-0"
	tests := []struct {
		name string
		user *models.User
		want bool
	}{
		{name: "never granted", user: &models.User{ID: "u-1"}, want: true},
		{name: "granted but not spent", user: &models.User{ID: "u-1", FreeTrialUsed: true}, want: true},
		{name: "spent on a reading", user: &models.User{ID: "u-1", FreeTrialUsed: true, FreeTrialReadingID: &bound}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("GetUser", mock.Anything, "u-1").Return(tt.user, nil).Once()

			ok, err := f.svc.FreeTrialAvailable(context.Background(), "u-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestSubscriber(t *testing.T) {
	tests := []struct {
		name     string
		sub      *models.Subscription
		err      error
		wantSub  bool
		wantFull bool
	}{
		{name: "no subscription", err: models.ErrNotFound},
		{name: "basic tier", sub: liveSub(models.TierBasic, 0), wantSub: true},
		{name: "pro tier", sub: liveSub(models.TierPro, 0), wantSub: true, wantFull: true},
		{
			name: "canceled pending before period end",
			sub: func() *models.Subscription {
				s := liveSub(models.TierMaster, 0)
				s.Status = models.SubscriptionCanceledPending
				return s
			}(),
			wantSub: true, wantFull: true,
		},
		{
			name: "period already ended",
			sub: func() *models.Subscription {
				s := liveSub(models.TierPro, 0)
				s.PeriodEnd = fixedNow.Add(-time.Second)
				return s
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.err != nil {
				f.repo.On("GetLiveSubscription", mock.Anything, "u-1").Return(nil, tt.err).Once()
			} else {
				f.repo.On("GetLiveSubscription", mock.Anything, "u-1").Return(tt.sub, nil).Once()
			}

			sub, full, err := f.svc.Subscriber(context.Background(), "u-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, sub != nil)
			assert.Equal(t, tt.wantFull, full)
		})
	}
}

func TestResolveReadingCost(t *testing.T) {
	tests := []struct {
		name    string
		sub     *models.Subscription
		want    models.ReadingCharge
		wantErr error
	}{
		{name: "no subscription pays credits", want: models.ReadingCharge{Credits: 3, Source: models.ChargeCredits}},
		{name: "allotment left", sub: liveSub(models.TierBasic, 1), want: models.ReadingCharge{Source: models.ChargeSubscription}},
		{name: "allotment exhausted", sub: liveSub(models.TierBasic, 2), want: models.ReadingCharge{Credits: 3, Source: models.ChargeCredits}},
		{name: "unlimited tier", sub: liveSub(models.TierMaster, 500), want: models.ReadingCharge{Source: models.ChargeSubscription}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.pricing.On("Price", mock.Anything, "natal").Return(&models.ReadingPrice{ReadingType: "natal", Cost: 3}, nil).Once()
			if tt.sub == nil {
				f.repo.On("GetLiveSubscription", mock.Anything, "u-1").Return(nil, models.ErrNotFound).Once()
			} else {
				f.repo.On("GetLiveSubscription", mock.Anything, "u-1").Return(tt.sub, nil).Once()
			}

			got, err := f.svc.ResolveReadingCost(context.Background(), "u-1", "natal")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown reading type", func(t *testing.T) {
		f := newFixture()
		f.pricing.On("Price", mock.Anything, "palmistry").Return(nil, models.ErrUnknownReadingType).Once()
		_, err := f.svc.ResolveReadingCost(context.Background(), "u-1", "palmistry")
		assert.ErrorIs(t, err, models.ErrUnknownReadingType)
	})
}

func TestChargeReading(t *testing.T) {
	price := &models.ReadingPrice{ReadingType: "natal", Cost: 3}

	t.Run("free trial first", func(t *testing.T) {
		f := newFixture()
		f.pricing.On("Price", mock.Anything, "natal").Return(price, nil).Once()
		f.repo.On("LockUser", mock.Anything, "u-1").Return(&models.User{ID: "u-1"}, nil).Twice()
		f.repo.On("MarkFreeTrialUsed", mock.Anything, "u-1", fixedNow).Return(true, nil).Once()
		f.repo.On("BindFreeTrialReading", mock.Anything, "u-1", "r-1").Return(true, nil).Once()
		f.audit.On("Record", mock.Anything, mock.MatchedBy(func(e models.AuditEntry) bool {
			return e.TargetID == "r-1" && e.Reason == models.ReasonFreeTrial
		})).Return(nil).Once()

		got, err := f.svc.ChargeReading(context.Background(), "u-1", "natal", "r-1", true)
		require.NoError(t, err)
		assert.Equal(t, models.ReadingCharge{Source: models.ChargeFreeTrial}, got)
		f.repo.AssertExpectations(t)
		f.ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("granted trial pays next reading without flag", func(t *testing.T) {
		f := newFixture()
		f.pricing.On("Price", mock.Anything, "natal").Return(price, nil).Once()
		f.repo.On("LockUser", mock.Anything, "u-1").Return(&models.User{ID: "u-1", FreeTrialUsed: true}, nil).Once()
		f.repo.On("BindFreeTrialReading", mock.Anything, "u-1", "r-1").Return(true, nil).Once()

		got, err := f.svc.ChargeReading(context.Background(), "u-1", "natal", "r-1", false)
		require.NoError(t, err)
		assert.Equal(t, models.ReadingCharge{Source: models.ChargeFreeTrial}, got)
		f.repo.AssertExpectations(t)
		f.repo.AssertNotCalled(t, "MarkFreeTrialUsed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("spent trial falls through to credits", func(t *testing.T) {
		bound := "r-0"
		f := newFixture()
		f.pricing.On("Price", mock.Anything, "natal").Return(price, nil).Once()
		f.repo.On("LockUser", mock.Anything, "u-1").
			Return(&models.User{ID: "u-1", FreeTrialUsed: true, FreeTrialReadingID: &bound}, nil).Once()
		f.repo.On("GetLiveSubscription", mock.Anything, "u-1").Return(nil, models.ErrNotFound).Once()
		f.ledger.On("Debit", mock.Anything, "u-1", int64(3), models.ReasonReadingPurchase, "r-1").Return(int64(7), nil).Once()

		got, err := f.svc.ChargeReading(context.Background(), "u-1", "natal", "r-1", true)
		require.NoError(t, err)
		assert.Equal(t, models.ReadingCharge{Credits: 3, Source: models.ChargeCredits}, got)
		f.ledger.AssertExpectations(t)
	})

	t.Run("subscription allotment", func(t *testing.T) {
		f := newFixture()
		f.pricing.On("Price", mock.Anything, "natal").Return(price, nil).Once()
		f.repo.On("LockUser", mock.Anything, "u-1").Return(&models.User{ID: "u-1"}, nil).Once()
		f.repo.On("GetLiveSubscription", mock.Anything, "u-1").Return(liveSub(models.TierPro, 3), nil).Once()
		f.repo.On("IncrementReadingsUsed", mock.Anything, "sub-1").Return(nil).Once()

		got, err := f.svc.ChargeReading(context.Background(), "u-1", "natal", "r-1", false)
		require.NoError(t, err)
		assert.Equal(t, models.ReadingCharge{Source: models.ChargeSubscription}, got)
		f.repo.AssertExpectations(t)
	})

	t.Run("insufficient credits propagates", func(t *testing.T) {
		f := newFixture()
		f.pricing.On("Price", mock.Anything, "natal").Return(price, nil).Once()
		f.repo.On("LockUser", mock.Anything, "u-1").Return(&models.User{ID: "u-1"}, nil).Once()
		f.repo.On("GetLiveSubscription", mock.Anything, "u-1").Return(nil, models.ErrNotFound).Once()
		f.ledger.On("Debit", mock.Anything, "u-1", int64(3), models.ReasonReadingPurchase, "r-1").
			Return(int64(0), &models.InsufficientCreditsError{Balance: 1, Required: 3}).Once()

		_, err := f.svc.ChargeReading(context.Background(), "u-1", "natal", "r-1", false)
		assert.ErrorIs(t, err, models.ErrInsufficientCredits)
	})

	t.Run("unknown type does not consume trial", func(t *testing.T) {
		f := newFixture()
		f.pricing.On("Price", mock.Anything, "palmistry").Return(nil, models.ErrUnknownReadingType).Once()

		_, err := f.svc.ChargeReading(context.Background(), "u-1", "palmistry", "r-1", true)
		assert.ErrorIs(t, err, models.ErrUnknownReadingType)
		f.repo.AssertNotCalled(t, "MarkFreeTrialUsed", mock.Anything, mock.Anything, mock.Anything)
	})
}

// userStore хранит пользователей в памяти с той же семантикой пробы, что и Postgres.
type userStore struct {
	users map[string]*models.User
}

func (r *userStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *userStore) LockUser(_ context.Context, userID string) (*models.User, error) {
	u, ok := r.users[userID]
	if !ok {
		u = &models.User{ID: userID, SubscriptionTier: models.TierFree}
		r.users[userID] = u
	}
	cp := *u
	return &cp, nil
}

func (r *userStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return r.LockUser(ctx, userID)
}

func (r *userStore) MarkFreeTrialUsed(_ context.Context, userID string, at time.Time) (bool, error) {
	u := r.users[userID]
	if u.FreeTrialUsed {
		return false, nil
	}
	u.FreeTrialUsed, u.FreeTrialUsedAt = true, &at
	return true, nil
}

func (r *userStore) BindFreeTrialReading(_ context.Context, userID, readingID string) (bool, error) {
	u := r.users[userID]
	if !u.FreeTrialPending() {
		return false, nil
	}
	u.FreeTrialReadingID = &readingID
	return true, nil
}

func (r *userStore) GetLiveSubscription(context.Context, string) (*models.Subscription, error) {
	return nil, models.ErrNotFound
}

func (r *userStore) IncrementReadingsUsed(context.Context, string) error {
	return nil
}

type emptyWallet struct{}

func (emptyWallet) Debit(_ context.Context, _ string, amount int64, _ models.Reason, _ string) (int64, error) {
	return 0, &models.InsufficientCreditsError{Balance: 0, Required: amount}
}

func TestFreeTrial_GrantPaysExactlyOneReading(t *testing.T) {
	ctx := context.Background()
	store := &userStore{users: map[string]*models.User{}}
	pricing := &PricingMock{}
	pricing.On("Price", mock.Anything, "natal").Return(&models.ReadingPrice{ReadingType: "natal", Cost: 3}, nil)
	audit := &AuditMock{}
	audit.On("Record", mock.Anything, mock.Anything).Return(nil)
	svc := New(store, pricing, emptyWallet{}, audit, tiers, newNoopLogger())
	svc.now = func() time.Time { return fixedNow }

	granted, err := svc.ConsumeFreeTrial(ctx, "u-1")
	require.NoError(t, err)
	require.True(t, granted)

	available, err := svc.FreeTrialAvailable(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, available)

	first, err := svc.ChargeReading(ctx, "u-1", "natal", "r-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.ReadingCharge{Credits: 0, Source: models.ChargeFreeTrial}, first)

	_, err = svc.ChargeReading(ctx, "u-1", "natal", "r-2", true)
	var ice *models.InsufficientCreditsError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, int64(3), ice.Required)

	require.NotNil(t, store.users["u-1"].FreeTrialReadingID)
	assert.Equal(t, "r-1", *store.users["u-1"].FreeTrialReadingID)

	granted, err = svc.ConsumeFreeTrial(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, granted)
	available, err = svc.FreeTrialAvailable(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, available)
}
