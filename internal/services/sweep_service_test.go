package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
)

func newTestSweep(repo *fakeCompanyRepo) *SweepService {
	return newTestSweepWith(repo, newFakeMemberRepo(), &fakeMail{})
}

func newTestSweepWith(repo *fakeCompanyRepo, members *fakeMemberRepo, mail *fakeMail) *SweepService {
	return &SweepService{
		companyRepo: repo,
		memberRepo:  members,
		mail:        mail,
		log:         zap.NewNop(),
		now:         func() time.Time { return testNow },
	}
}

func TestSweepLocksLapsedTrialAndGrace(t *testing.T) {
	lapsedTrial := trialingCompany()
	expired := testNow.AddDate(0, 0, -2).Unix()
	lapsedTrial.TrialEndsAt = &expired

	lapsedGrace := activeCompany(billing.PeriodAnnual)
	lapsedGrace.SubscriptionStatus = billing.StatusCanceling
	scheduled := testNow.AddDate(0, 0, -1).Unix()
	lapsedGrace.ScheduledCancellationDate = &scheduled

	healthy := activeCompany(billing.PeriodMonthly)
	healthy.SubscriptionRef = "sub_other"

	repo := newFakeCompanyRepo(lapsedTrial, lapsedGrace, healthy)

	locked, err := newTestSweep(repo).LockExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, locked)

	assert.True(t, repo.stored(lapsedTrial.ID).AccountLocked)

	gone := repo.stored(lapsedGrace.ID)
	assert.True(t, gone.AccountLocked)
	assert.Equal(t, billing.StatusCancelled, gone.SubscriptionStatus)
	assert.False(t, gone.SubscriptionActive)

	assert.False(t, repo.stored(healthy.ID).AccountLocked)
}

func TestTrialRemindersFireOnlyAtThresholds(t *testing.T) {
	atSeven := trialingCompany()
	seven := testNow.AddDate(0, 0, 7).Unix()
	atSeven.TrialEndsAt = &seven

	atThirty := trialingCompany()

	between := trialingCompany()
	ten := testNow.AddDate(0, 0, 10).Unix()
	between.TrialEndsAt = &ten

	paying := activeCompany(billing.PeriodMonthly)

	repo := newFakeCompanyRepo(atSeven, atThirty, between, paying)
	members := newFakeMemberRepo(
		&db_models.Member{CompanyID: atSeven.ID, Email: "a@acme.test", RoleType: db_models.RoleAdmin, IsActive: true},
		&db_models.Member{CompanyID: atThirty.ID, Email: "b@acme.test", RoleType: db_models.RoleAdmin, IsActive: true},
		&db_models.Member{CompanyID: between.ID, Email: "c@acme.test", RoleType: db_models.RoleAdmin, IsActive: true},
	)
	mail := &fakeMail{}

	sent, err := newTestSweepWith(repo, members, mail).SendTrialReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sent)
	assert.ElementsMatch(t, []int{7, 30}, mail.reminders)
}

func TestTrialRemindersSkipCompanyWithoutAdminEmail(t *testing.T) {
	company := trialingCompany()
	seven := testNow.AddDate(0, 0, 7).Unix()
	company.TrialEndsAt = &seven

	repo := newFakeCompanyRepo(company)
	mail := &fakeMail{}

	sent, err := newTestSweepWith(repo, newFakeMemberRepo(), mail).SendTrialReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, mail.reminders)
}

func TestSweepContinuesPastConflicts(t *testing.T) {
	a := trialingCompany()
	b := trialingCompany()
	expired := testNow.AddDate(0, 0, -2).Unix()
	a.TrialEndsAt = &expired
	b.TrialEndsAt = &expired

	repo := newFakeCompanyRepo(a, b)
	repo.failNextWrites = 1

	locked, err := newTestSweep(repo).LockExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locked, "one row lost its race, the other still locks")
}
