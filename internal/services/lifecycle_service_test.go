package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
	"spreadchecker/internal/processor"
	"spreadchecker/pkg/utils"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestLifecycle(repo *fakeCompanyRepo, proc *fakeProcessor) *LifecycleService {
	return newTestLifecycleWith(repo, newFakeMemberRepo(), proc, &fakeMail{})
}

func newTestLifecycleWith(repo *fakeCompanyRepo, members *fakeMemberRepo, proc *fakeProcessor, mail *fakeMail) *LifecycleService {
	return &LifecycleService{
		companyRepo: repo,
		memberRepo:  members,
		client:      proc,
		mail:        mail,
		log:         zap.NewNop(),
		now:         func() time.Time { return testNow },
	}
}

func trialingCompany() *db_models.Company {
	trialEnd := testNow.AddDate(0, 0, 30).Unix()
	return &db_models.Company{
		Name:               "Acme Brokers",
		SubscriptionStatus: billing.StatusTrialing,
		TrialEndsAt:        &trialEnd,
		AdminSeats:         1,
	}
}

func activeCompany(period billing.BillingPeriod) *db_models.Company {
	trialEnd := testNow.AddDate(0, 0, -30).Unix()
	started := testNow.AddDate(0, 0, -20).Unix()
	return &db_models.Company{
		Name:                   "Acme Brokers",
		SubscriptionStatus:     billing.StatusActive,
		SubscriptionType:       &period,
		SubscriptionActive:     true,
		TrialEndsAt:            &trialEnd,
		AdminSeats:             2,
		JuniorSeats:            8,
		SubscriptionSeats:      10,
		SubscriptionPricePence: billing.PeriodTotal(10, period),
		SubscriptionStartedAt:  &started,
		CustomerRef:            "cus_test",
		SubscriptionRef:        "sub_test",
	}
}

func TestCancelTrialLocksImmediately(t *testing.T) {
	company := trialingCompany()
	repo := newFakeCompanyRepo(company)
	proc := &fakeProcessor{}
	svc := newTestLifecycle(repo, proc)

	resp, err := svc.Cancel(context.Background(), company.ID.String(), "too expensive", "")
	require.NoError(t, err)

	assert.True(t, resp.AccountLocked)
	assert.Equal(t, 0, proc.retrieveCalls, "trial cancellation must not touch the processor")
	assert.False(t, proc.cancelled)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusCancelled, stored.SubscriptionStatus)
	assert.True(t, stored.AccountLocked)
	assert.False(t, stored.GracePeriodUsed, "a trial cancellation does not consume the grace period")
	require.NotNil(t, stored.TrialEndsAt)
	assert.LessOrEqual(t, *stored.TrialEndsAt, testNow.Unix())
}

func TestCancelMonthlyFirstTimeSchedulesPeriodEnd(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	repo := newFakeCompanyRepo(company)

	periodEnd := testNow.AddDate(0, 0, 20)
	proc := &fakeProcessor{sub: processor.Subscription{
		ID:                 "sub_test",
		Status:             "active",
		CurrentPeriodStart: testNow.AddDate(0, 0, -10),
		CurrentPeriodEnd:   periodEnd,
	}}
	svc := newTestLifecycle(repo, proc)

	resp, err := svc.Cancel(context.Background(), company.ID.String(), "switching tools", "")
	require.NoError(t, err)

	assert.False(t, resp.AccountLocked)
	require.NotNil(t, resp.DaysRemaining)
	assert.Equal(t, 20, *resp.DaysRemaining, "access runs to the paid period end, not a flat 30 days")

	require.Len(t, proc.updates, 1)
	require.NotNil(t, proc.updates[0].CancelAtPeriodEnd)
	assert.True(t, *proc.updates[0].CancelAtPeriodEnd)
	assert.False(t, proc.cancelled)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusCanceling, stored.SubscriptionStatus)
	assert.True(t, stored.SubscriptionActive, "access continues through the paid period")
	assert.True(t, stored.CancelAtPeriodEnd)
	assert.True(t, stored.GracePeriodUsed)
	require.NotNil(t, stored.ScheduledCancellationDate)
	assert.Equal(t, periodEnd.Unix(), *stored.ScheduledCancellationDate)
}

func TestCancelAnnualFirstTimeGrantsThirtyDays(t *testing.T) {
	company := activeCompany(billing.PeriodAnnual)
	repo := newFakeCompanyRepo(company)
	proc := &fakeProcessor{sub: processor.Subscription{
		ID:               "sub_test",
		CurrentPeriodEnd: testNow.AddDate(0, 10, 0),
	}}
	svc := newTestLifecycle(repo, proc)

	resp, err := svc.Cancel(context.Background(), company.ID.String(), "downsizing", "team shrank")
	require.NoError(t, err)

	assert.False(t, resp.AccountLocked)
	require.NotNil(t, resp.DaysRemaining)
	assert.Equal(t, billing.AnnualGraceDays, *resp.DaysRemaining)

	assert.True(t, proc.cancelled, "annual cancellation cancels the processor subscription immediately")
	assert.Empty(t, proc.updates)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusCanceling, stored.SubscriptionStatus)
	assert.True(t, stored.GracePeriodUsed)
	require.NotNil(t, stored.ScheduledCancellationDate)
	assert.Equal(t, testNow.AddDate(0, 0, billing.AnnualGraceDays).Unix(), *stored.ScheduledCancellationDate)
}

func TestCancelSecondTimeLocksImmediately(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	company.GracePeriodUsed = true
	repo := newFakeCompanyRepo(company)
	proc := &fakeProcessor{sub: processor.Subscription{ID: "sub_test"}}
	svc := newTestLifecycle(repo, proc)

	resp, err := svc.Cancel(context.Background(), company.ID.String(), "done", "")
	require.NoError(t, err)

	assert.True(t, resp.AccountLocked)
	assert.True(t, proc.cancelled)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusCancelled, stored.SubscriptionStatus)
	assert.True(t, stored.AccountLocked)
	assert.False(t, stored.SubscriptionActive)
	assert.Nil(t, stored.ScheduledCancellationDate)
}

func TestCancelRepeatSkipsAlreadyCancelledProcessorSub(t *testing.T) {
	company := activeCompany(billing.PeriodAnnual)
	company.SubscriptionStatus = billing.StatusCanceling
	company.GracePeriodUsed = true
	scheduled := testNow.AddDate(0, 0, 20).Unix()
	company.ScheduledCancellationDate = &scheduled
	repo := newFakeCompanyRepo(company)

	// The first annual cancellation already cancelled the processor side; a
	// repeat cancel call there would only fail.
	proc := &fakeProcessor{
		sub:       processor.Subscription{ID: "sub_test", Status: processor.SubscriptionStatusCanceled},
		cancelErr: errors.New("subscription is already canceled"),
	}
	svc := newTestLifecycle(repo, proc)

	resp, err := svc.Cancel(context.Background(), company.ID.String(), "leave now", "")
	require.NoError(t, err)

	assert.True(t, resp.AccountLocked)
	assert.False(t, proc.cancelled)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusCancelled, stored.SubscriptionStatus)
	assert.True(t, stored.AccountLocked)
	assert.False(t, stored.SubscriptionActive)
}

func TestCancelNotifiesFirstAdmin(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	repo := newFakeCompanyRepo(company)
	members := newFakeMemberRepo(&db_models.Member{
		CompanyID: company.ID,
		Email:     "owner@acme.test",
		RoleType:  db_models.RoleAdmin,
		IsActive:  true,
	})
	proc := &fakeProcessor{sub: processor.Subscription{
		CurrentPeriodEnd: testNow.AddDate(0, 0, 20),
	}}
	mail := &fakeMail{}
	svc := newTestLifecycleWith(repo, members, proc, mail)

	_, err := svc.Cancel(context.Background(), company.ID.String(), "switching tools", "")
	require.NoError(t, err)
	assert.Equal(t, 1, mail.cancels)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	company.SubscriptionStatus = billing.StatusCancelled
	company.SubscriptionActive = false
	repo := newFakeCompanyRepo(company)
	svc := newTestLifecycle(repo, &fakeProcessor{})

	_, err := svc.Cancel(context.Background(), company.ID.String(), "again", "")
	assert.ErrorIs(t, err, utils.ErrNoSubscription)
}

func TestCancelProcessorFailureLeavesRecordUntouched(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	repo := newFakeCompanyRepo(company)
	proc := &fakeProcessor{
		sub:       processor.Subscription{CurrentPeriodEnd: testNow.AddDate(0, 0, 20)},
		updateErr: utils.ErrProcessor,
	}
	svc := newTestLifecycle(repo, proc)

	_, err := svc.Cancel(context.Background(), company.ID.String(), "reason", "")
	assert.ErrorIs(t, err, utils.ErrProcessor)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusActive, stored.SubscriptionStatus)
	assert.False(t, stored.GracePeriodUsed)
	assert.Nil(t, stored.ScheduledCancellationDate)
}

func TestCancelInternalFailureAfterProcessorIsReconciliation(t *testing.T) {
	company := activeCompany(billing.PeriodAnnual)
	repo := newFakeCompanyRepo(company)
	repo.failNextWrites = 10
	proc := &fakeProcessor{}
	svc := newTestLifecycle(repo, proc)

	_, err := svc.Cancel(context.Background(), company.ID.String(), "reason", "")
	require.Error(t, err)

	var recon *utils.ReconciliationError
	require.True(t, errors.As(err, &recon))
	assert.Equal(t, company.ID, recon.CompanyID)
	assert.True(t, proc.cancelled, "the processor side had already been cancelled")
}

func TestActivateFromCheckout(t *testing.T) {
	company := trialingCompany()
	repo := newFakeCompanyRepo(company)
	svc := newTestLifecycle(repo, &fakeProcessor{})

	err := svc.ActivateFromCheckout(context.Background(), company.ID.String(), ActivationPayload{
		BillingPeriod:   billing.PeriodMonthly,
		AdminSeats:      2,
		JuniorSeats:     8,
		PricePence:      30000,
		SubscriptionRef: "sub_new",
	})
	require.NoError(t, err)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusActive, stored.SubscriptionStatus)
	assert.True(t, stored.SubscriptionActive)
	assert.Equal(t, 10, stored.SubscriptionSeats)
	assert.Equal(t, int64(30000), stored.SubscriptionPricePence)
	assert.Equal(t, "sub_new", stored.SubscriptionRef)
	require.NotNil(t, stored.TrialEndsAt)
	assert.Equal(t, testNow.Unix(), *stored.TrialEndsAt, "activation ends the trial")
}

func TestActivateFromCheckoutRejectsZeroAdminSeats(t *testing.T) {
	company := trialingCompany()
	repo := newFakeCompanyRepo(company)
	svc := newTestLifecycle(repo, &fakeProcessor{})

	err := svc.ActivateFromCheckout(context.Background(), company.ID.String(), ActivationPayload{
		BillingPeriod:   billing.PeriodMonthly,
		AdminSeats:      0,
		JuniorSeats:     8,
		PricePence:      30000,
		SubscriptionRef: "sub_new",
	})
	assert.ErrorIs(t, err, utils.ErrAdminSeatRequired)

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusTrialing, stored.SubscriptionStatus)
	assert.False(t, stored.SubscriptionActive)
}

func TestActivateFromCheckoutIsIdempotent(t *testing.T) {
	company := trialingCompany()
	repo := newFakeCompanyRepo(company)
	svc := newTestLifecycle(repo, &fakeProcessor{})

	payload := ActivationPayload{
		BillingPeriod:   billing.PeriodMonthly,
		AdminSeats:      1,
		JuniorSeats:     0,
		PricePence:      3000,
		SubscriptionRef: "sub_new",
	}
	require.NoError(t, svc.ActivateFromCheckout(context.Background(), company.ID.String(), payload))
	versionAfterFirst := repo.stored(company.ID).LockVersion

	require.NoError(t, svc.ActivateFromCheckout(context.Background(), company.ID.String(), payload))
	assert.Equal(t, versionAfterFirst, repo.stored(company.ID).LockVersion, "replay must not write")
}

func TestActivateFromCheckoutClearsCancellationState(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	company.SubscriptionStatus = billing.StatusCancelled
	company.SubscriptionActive = false
	company.AccountLocked = true
	lockedAt := testNow.AddDate(0, 0, -5).Unix()
	company.LockedAt = &lockedAt
	company.CancelledAt = &lockedAt
	reason := "old reason"
	company.CancellationReason = &reason
	repo := newFakeCompanyRepo(company)
	svc := newTestLifecycle(repo, &fakeProcessor{})

	err := svc.ActivateFromCheckout(context.Background(), company.ID.String(), ActivationPayload{
		BillingPeriod:   billing.PeriodAnnual,
		AdminSeats:      2,
		JuniorSeats:     8,
		PricePence:      billing.PeriodTotal(10, billing.PeriodAnnual),
		SubscriptionRef: "sub_fresh",
	})
	require.NoError(t, err)

	stored := repo.stored(company.ID)
	assert.False(t, stored.AccountLocked)
	assert.Nil(t, stored.LockedAt)
	assert.Nil(t, stored.CancelledAt)
	assert.Nil(t, stored.CancellationReason)
	assert.Nil(t, stored.ScheduledCancellationDate)
	assert.True(t, stored.GracePeriodUsed == company.GracePeriodUsed, "grace is one per customer and survives reactivation")
}

func TestCommitSeatChangeRetriesOnceOnConflict(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	repo := newFakeCompanyRepo(company)
	repo.failNextWrites = 1
	svc := newTestLifecycle(repo, &fakeProcessor{})

	err := svc.CommitSeatChange(context.Background(), company.ID.String(), 3, 9, 36000)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.writeCalls)

	stored := repo.stored(company.ID)
	assert.Equal(t, 3, stored.AdminSeats)
	assert.Equal(t, 9, stored.JuniorSeats)
	assert.Equal(t, int64(36000), stored.SubscriptionPricePence)
}

func TestCommitSeatChangeGivesUpAfterSecondConflict(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	repo := newFakeCompanyRepo(company)
	repo.failNextWrites = 2
	svc := newTestLifecycle(repo, &fakeProcessor{})

	err := svc.CommitSeatChange(context.Background(), company.ID.String(), 3, 9, 36000)
	assert.ErrorIs(t, err, utils.ErrStateConflict)
}

func TestHandleSubscriptionDeletedDuringGraceKeepsAccess(t *testing.T) {
	company := activeCompany(billing.PeriodAnnual)
	company.SubscriptionStatus = billing.StatusCanceling
	scheduled := testNow.AddDate(0, 0, 20).Unix()
	company.ScheduledCancellationDate = &scheduled
	company.GracePeriodUsed = true
	repo := newFakeCompanyRepo(company)
	svc := newTestLifecycle(repo, &fakeProcessor{})

	require.NoError(t, svc.HandleSubscriptionDeleted(context.Background(), "sub_test"))

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusCanceling, stored.SubscriptionStatus)
	assert.True(t, stored.SubscriptionActive, "deletion inside the grace window must not revoke access")
}

func TestHandleSubscriptionDeletedAfterGraceCancels(t *testing.T) {
	company := activeCompany(billing.PeriodMonthly)
	company.SubscriptionStatus = billing.StatusCanceling
	scheduled := testNow.AddDate(0, 0, -1).Unix()
	company.ScheduledCancellationDate = &scheduled
	repo := newFakeCompanyRepo(company)
	svc := newTestLifecycle(repo, &fakeProcessor{})

	require.NoError(t, svc.HandleSubscriptionDeleted(context.Background(), "sub_test"))

	stored := repo.stored(company.ID)
	assert.Equal(t, billing.StatusCancelled, stored.SubscriptionStatus)
	assert.False(t, stored.SubscriptionActive)
}

func TestHandleSubscriptionDeletedUnknownRefIsNoOp(t *testing.T) {
	repo := newFakeCompanyRepo()
	svc := newTestLifecycle(repo, &fakeProcessor{})
	assert.NoError(t, svc.HandleSubscriptionDeleted(context.Background(), "sub_unknown"))
}
