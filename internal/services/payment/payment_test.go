package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/reading-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *RepoMock) InsertPayment(ctx context.Context, p models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *RepoMock) GetCreditPackage(ctx context.Context, id string) (*models.CreditPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditPackage), args.Error(1)
}

type SubsMock struct{ mock.Mock }

func (m *SubsMock) Activate(ctx context.Context, userID, planID, paymentID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, planID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type LedgerMock struct{ mock.Mock }

func (m *LedgerMock) Credit(ctx context.Context, userID string, amount int64, reason models.Reason, reference string) (int64, error) {
	args := m.Called(ctx, userID, amount, reason, reference)
	return args.Get(0).(int64), args.Error(1)
}

type UnlockMock struct{ mock.Mock }

func (m *UnlockMock) Unlock(ctx context.Context, req models.UnlockRequest) (models.UnlockResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.UnlockResult), args.Error(1)
}

type PromoMock struct{ mock.Mock }

func (m *PromoMock) Redeem(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromoCode), args.Error(1)
}

type AuditMock struct{ mock.Mock }

func (m *AuditMock) Record(ctx context.Context, e models.AuditEntry) error {
	return m.Called(ctx, e).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	repo   *RepoMock
	subs   *SubsMock
	ledger *LedgerMock
	unlock *UnlockMock
	promo  *PromoMock
	audit  *AuditMock
	svc    *PaymentService
}

func newFixture() *fixture {
	f := &fixture{
		repo: &RepoMock{}, subs: &SubsMock{}, ledger: &LedgerMock{},
		unlock: &UnlockMock{}, promo: &PromoMock{}, audit: &AuditMock{},
	}
	f.audit.On("Record", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = New(f.repo, f.subs, f.ledger, f.unlock, f.promo, f.audit, newNoopLogger())
	return f
}

func TestApply_CreditPackage(t *testing.T) {
	f := newFixture()
	ev := models.PaymentEvent{
		PaymentID: "pay-1", UserID: "u-1", AmountCents: 599,
		Kind: models.PaymentCreditPackage, PackageOrPlanID: "credits_20",
	}
	f.repo.On("InsertPayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
		return p.ID == "pay-1" && p.AmountCents == 599
	})).Return(nil).Once()
	f.repo.On("GetCreditPackage", mock.Anything, "credits_20").
		Return(&models.CreditPackage{ID: "credits_20", Credits: 20, PriceCents: 599}, nil).Once()
	f.ledger.On("Credit", mock.Anything, "u-1", int64(20), models.ReasonPurchase, "pay-1").Return(int64(20), nil).Once()

	res, err := f.svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentResult{Applied: true, Credits: 20}, res)
	f.ledger.AssertExpectations(t)
	f.promo.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything)
}

func TestApply_DuplicateIsNoOp(t *testing.T) {
	f := newFixture()
	ev := models.PaymentEvent{
		PaymentID: "pay-1", UserID: "u-1", AmountCents: 599,
		Kind: models.PaymentCreditPackage, PackageOrPlanID: "credits_20", PromoCode: "SPRING",
	}
	f.repo.On("InsertPayment", mock.Anything, mock.Anything).
		Return(fmt.Errorf("storage.InsertPayment: %w", models.ErrConflict)).Once()

	res, err := f.svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	f.ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.promo.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything)
}

func TestApply_Subscription(t *testing.T) {
	f := newFixture()
	ev := models.PaymentEvent{
		PaymentID: "pay-2", UserID: "u-1", AmountCents: 999,
		Kind: models.PaymentSubscription, PackageOrPlanID: "pro_monthly",
	}
	f.repo.On("InsertPayment", mock.Anything, mock.Anything).Return(nil).Once()
	f.subs.On("Activate", mock.Anything, "u-1", "pro_monthly", "pay-2").
		Return(&models.Subscription{ID: "sub-1", CreditsPerPeriod: 30}, nil).Once()

	res, err := f.svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Credits)
}

func TestApply_SectionUnlockUsesCash(t *testing.T) {
	f := newFixture()
	ev := models.PaymentEvent{
		PaymentID: "pay-3", UserID: "u-1", AmountCents: 299,
		Kind: models.PaymentSectionUnlock, ReadingID: "r-1", SectionKey: "career",
	}
	f.repo.On("InsertPayment", mock.Anything, mock.Anything).Return(nil).Once()
	f.unlock.On("Unlock", mock.Anything, models.UnlockRequest{
		ReadingID: "r-1", SectionKey: "career", UserID: "u-1", Method: models.UnlockCash, PaymentID: "pay-3",
	}).Return(models.UnlockResult{Success: true}, nil).Once()

	res, err := f.svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	f.unlock.AssertExpectations(t)
}

func TestApply_PromoExhaustedDoesNotFailPayment(t *testing.T) {
	f := newFixture()
	ev := models.PaymentEvent{
		PaymentID: "pay-4", UserID: "u-1", AmountCents: 499,
		Kind: models.PaymentCreditPackage, PackageOrPlanID: "credits_5", PromoCode: "SPRING",
	}
	f.repo.On("InsertPayment", mock.Anything, mock.Anything).Return(nil).Once()
	f.repo.On("GetCreditPackage", mock.Anything, "credits_5").Return(&models.CreditPackage{ID: "credits_5", Credits: 5}, nil).Once()
	f.ledger.On("Credit", mock.Anything, "u-1", int64(5), models.ReasonPurchase, "pay-4").Return(int64(5), nil).Once()
	f.promo.On("Redeem", mock.Anything, "SPRING").
		Return(nil, &models.PromoExhaustedError{Code: "SPRING", MaxUses: 100}).Once()

	res, err := f.svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	f.promo.AssertExpectations(t)
}

func TestApply_InvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		ev   models.PaymentEvent
	}{
		{name: "missing payment id", ev: models.PaymentEvent{UserID: "u-1", Kind: models.PaymentCreditPackage, PackageOrPlanID: "credits_5"}},
		{name: "missing user", ev: models.PaymentEvent{PaymentID: "p", Kind: models.PaymentCreditPackage, PackageOrPlanID: "credits_5"}},
		{name: "unknown kind", ev: models.PaymentEvent{PaymentID: "p", UserID: "u-1", Kind: "GIFT"}},
		{name: "package without id", ev: models.PaymentEvent{PaymentID: "p", UserID: "u-1", Kind: models.PaymentCreditPackage}},
		{name: "unlock without section", ev: models.PaymentEvent{PaymentID: "p", UserID: "u-1", Kind: models.PaymentSectionUnlock, ReadingID: "r-1"}},
		{name: "negative amount", ev: models.PaymentEvent{PaymentID: "p", UserID: "u-1", AmountCents: -1, Kind: models.PaymentCreditPackage, PackageOrPlanID: "credits_5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Apply(context.Background(), tt.ev)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			f.repo.AssertNotCalled(t, "InsertPayment", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleMessage(t *testing.T) {
	t.Run("malformed json is dropped", func(t *testing.T) {
		f := newFixture()
		err := f.svc.HandleMessage(context.Background(), []byte(`{"payment_id":`))
		assert.ErrorIs(t, err, rabbitmq.ErrDrop)
	})

	t.Run("unknown package is dropped", func(t *testing.T) {
		f := newFixture()
		f.repo.On("InsertPayment", mock.Anything, mock.Anything).Return(nil).Once()
		f.repo.On("GetCreditPackage", mock.Anything, "nope").Return(nil, models.ErrNotFound).Once()

		err := f.svc.HandleMessage(context.Background(),
			[]byte(`{"payment_id":"p","user_id":"u-1","amount":100,"kind":"CREDIT_PACKAGE","package_or_plan_id":"nope"}`))
		assert.ErrorIs(t, err, rabbitmq.ErrDrop)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("transient failure is requeued", func(t *testing.T) {
		f := newFixture()
		f.repo.On("InsertPayment", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

		err := f.svc.HandleMessage(context.Background(),
			[]byte(`{"payment_id":"p","user_id":"u-1","amount":100,"kind":"CREDIT_PACKAGE","package_or_plan_id":"credits_5"}`))
		require.Error(t, err)
		assert.NotErrorIs(t, err, rabbitmq.ErrDrop)
	})

	t.Run("applied event is acked", func(t *testing.T) {
		f := newFixture()
		f.repo.On("InsertPayment", mock.Anything, mock.Anything).Return(models.ErrConflict).Once()

		err := f.svc.HandleMessage(context.Background(),
			[]byte(`{"payment_id":"p","user_id":"u-1","amount":100,"kind":"CREDIT_PACKAGE","package_or_plan_id":"credits_5"}`))
		assert.NoError(t, err)
	})
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"payment_id":"p"}`)
	sig := Sign("whsec", body)

	assert.True(t, VerifySignature("whsec", body, sig))
	assert.False(t, VerifySignature("whsec", []byte(`{"payment_id":"q"}`), sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("", body, Sign("", body)))
	assert.False(t, VerifySignature("whsec", body, "not-hex"))
	assert.False(t, VerifySignature("whsec", body, ""))
}
