package services

import (
	"context"
	"time"

	"spreadchecker/internal/models/response_models"
	"spreadchecker/internal/repositories"
	"spreadchecker/pkg/utils"
)

// Access decision reasons surfaced to callers.
const (
	AccessReasonLocked             = "account_locked"
	AccessReasonGraceExpired       = "grace_period_expired"
	AccessReasonSubscriptionActive = "subscription_active"
	AccessReasonTrialing           = "trialing"
	AccessReasonTrialExpired       = "trial_expired"
	AccessReasonNoSubscription     = "no_active_subscription"
)

type AccessServiceInterface interface {
	Status(ctx context.Context, companyID string) (response_models.AccessStatus, error)
}

type AccessService struct {
	companyRepo repositories.CompanyRepository
	now         func() time.Time
}

func NewAccessService(companyRepo repositories.CompanyRepository) AccessServiceInterface {
	return &AccessService{
		companyRepo: companyRepo,
		now:         time.Now,
	}
}

// Status is evaluated fresh from the company row on every call; the UI never
// infers access from cached fields.
func (a *AccessService) Status(ctx context.Context, companyID string) (response_models.AccessStatus, error) {
	company, err := a.companyRepo.FindById(ctx, companyID)
	if err != nil {
		return response_models.AccessStatus{}, utils.ErrDatabaseError
	}
	if company == nil {
		return response_models.AccessStatus{}, utils.ErrCompanyNotFound
	}

	now := a.now()

	if company.AccountLocked {
		return response_models.AccessStatus{Granted: false, Reason: AccessReasonLocked}, nil
	}

	// The lock sweep flips AccountLocked once the scheduled date passes, but
	// a slow sweep must never grant stale access, so the date is re-checked
	// here on every decision.
	if company.ScheduledCancellationDate != nil && *company.ScheduledCancellationDate <= now.Unix() {
		return response_models.AccessStatus{Granted: false, Reason: AccessReasonGraceExpired}, nil
	}

	if company.SubscriptionActive {
		return response_models.AccessStatus{Granted: true, Reason: AccessReasonSubscriptionActive}, nil
	}

	if company.TrialEndsAt != nil {
		if *company.TrialEndsAt > now.Unix() {
			days := utils.DaysUntil(*company.TrialEndsAt, now)
			return response_models.AccessStatus{
				Granted:            true,
				Reason:             AccessReasonTrialing,
				TrialDaysRemaining: &days,
			}, nil
		}
		return response_models.AccessStatus{Granted: false, Reason: AccessReasonTrialExpired}, nil
	}

	return response_models.AccessStatus{Granted: false, Reason: AccessReasonNoSubscription}, nil
}
