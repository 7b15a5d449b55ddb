package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
	"spreadchecker/internal/models/response_models"
	"spreadchecker/internal/processor"
	"spreadchecker/internal/repositories"
	"spreadchecker/pkg/utils"
)

// ActivationPayload is the confirmed checkout configuration applied to the
// company record once the processor reports payment.
type ActivationPayload struct {
	BillingPeriod   billing.BillingPeriod
	AdminSeats      int
	JuniorSeats     int
	PricePence      int64
	SubscriptionRef string
}

type LifecycleServiceInterface interface {
	ActivateFromCheckout(ctx context.Context, companyID string, payload ActivationPayload) error
	Cancel(ctx context.Context, companyID, reason, feedback string) (response_models.CancellationResponse, error)
	CommitSeatChange(ctx context.Context, companyID string, adminSeats, juniorSeats int, pricePence int64) error
	HandleSubscriptionDeleted(ctx context.Context, subscriptionRef string) error
}

type LifecycleService struct {
	companyRepo repositories.CompanyRepository
	memberRepo  repositories.MemberRepository
	client      processor.Client
	mail        MailServiceInterface
	log         *zap.Logger
	now         func() time.Time
}

func NewLifecycleService(
	companyRepo repositories.CompanyRepository,
	memberRepo repositories.MemberRepository,
	client processor.Client,
	mail MailServiceInterface,
	log *zap.Logger,
) LifecycleServiceInterface {
	return &LifecycleService{
		companyRepo: companyRepo,
		memberRepo:  memberRepo,
		client:      client,
		mail:        mail,
		log:         log,
		now:         time.Now,
	}
}

// ActivateFromCheckout commits a processor-confirmed checkout. Replays of the
// same confirmation are no-ops: the subscription ref is already recorded.
func (l *LifecycleService) ActivateFromCheckout(ctx context.Context, companyID string, payload ActivationPayload) error {
	if payload.AdminSeats < 1 {
		// Mangled confirmation metadata; activating would strand the company
		// without an admin seat.
		return utils.ErrAdminSeatRequired
	}

	_, err := l.mutateCompany(ctx, companyID, func(c *db_models.Company) error {
		if c.SubscriptionActive && c.SubscriptionRef == payload.SubscriptionRef {
			return errAlreadyApplied
		}
		// A canceling company completing a fresh checkout supersedes its
		// old subscription; everything else must be a legal edge.
		if c.SubscriptionStatus != billing.StatusCanceling &&
			!billing.CanTransition(c.SubscriptionStatus, billing.StatusActive) {
			return utils.ErrAlreadySubscribed
		}

		now := l.now().Unix()
		subType := payload.BillingPeriod

		c.SubscriptionStatus = billing.StatusActive
		c.SubscriptionType = &subType
		c.SubscriptionActive = true
		c.AccountLocked = false
		c.LockedAt = nil
		c.TrialEndsAt = &now // trial ends the moment a paid plan starts
		c.AdminSeats = payload.AdminSeats
		c.JuniorSeats = payload.JuniorSeats
		c.SubscriptionSeats = payload.AdminSeats + payload.JuniorSeats
		c.SubscriptionPricePence = payload.PricePence
		c.SubscriptionRef = payload.SubscriptionRef
		c.SubscriptionStartedAt = &now
		c.CancelAtPeriodEnd = false
		c.ScheduledCancellationDate = nil
		c.CancelledAt = nil
		c.CancellationReason = nil
		c.CancellationFeedback = nil
		return nil
	})

	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	if err != nil {
		// The processor has taken payment; losing this write needs a human.
		recon := &utils.ReconciliationError{Op: "activate subscription", Err: err}
		if id, parseErr := uuid.Parse(companyID); parseErr == nil {
			recon.CompanyID = id
		}
		l.log.Error("activation write failed after confirmed payment",
			zap.String("company_id", companyID),
			zap.String("subscription_ref", payload.SubscriptionRef),
			zap.Error(err))
		return recon
	}

	l.log.Info("subscription activated",
		zap.String("company_id", companyID),
		zap.String("billing_period", string(payload.BillingPeriod)),
		zap.Int("seats", payload.AdminSeats+payload.JuniorSeats))
	return nil
}

// Cancel runs the cancellation state machine. The processor mutation is the
// commit point for money-moving paths: it happens first, and an internal
// write failure afterwards is surfaced as a reconciliation error rather than
// silently un-cancelling anything.
func (l *LifecycleService) Cancel(ctx context.Context, companyID, reason, feedback string) (response_models.CancellationResponse, error) {
	company, err := l.companyRepo.FindById(ctx, companyID)
	if err != nil {
		return response_models.CancellationResponse{}, utils.ErrDatabaseError
	}
	if company == nil {
		return response_models.CancellationResponse{}, utils.ErrCompanyNotFound
	}

	st := stateOf(company)
	now := l.now()

	// The monthly first-cancellation path schedules access to the paid
	// period's end, so the processor's period dates are fetched up front.
	var periodEnd time.Time
	var processorStatus string
	if st.Status != billing.StatusTrialing {
		if company.SubscriptionRef == "" {
			return response_models.CancellationResponse{}, utils.ErrNoSubscription
		}
		sub, err := l.client.RetrieveSubscription(ctx, company.SubscriptionRef)
		if err != nil {
			return response_models.CancellationResponse{}, err
		}
		periodEnd = sub.CurrentPeriodEnd
		processorStatus = sub.Status
	}

	plan, err := billing.PlanCancellation(st, now, periodEnd)
	if err != nil {
		if errors.Is(err, billing.ErrAlreadyCancelled) {
			return response_models.CancellationResponse{}, utils.ErrNoSubscription
		}
		return response_models.CancellationResponse{}, err
	}

	comment := reason
	if feedback != "" {
		comment = reason + ": " + feedback
	}

	processorTouched := false
	switch {
	case plan.CancelProcessorNow:
		// An annual first cancellation has already cancelled the processor
		// side; the repeat attempt only needs the internal lock.
		if processorStatus != processor.SubscriptionStatusCanceled {
			if _, err := l.client.CancelSubscription(ctx, company.SubscriptionRef, comment); err != nil {
				return response_models.CancellationResponse{}, err
			}
			processorTouched = true
		}
	case plan.DeferToPeriodEnd:
		cancelAtEnd := true
		sub, err := l.client.UpdateSubscription(ctx, company.SubscriptionRef, processor.UpdateSubscriptionParams{
			CancelAtPeriodEnd: &cancelAtEnd,
			Comment:           comment,
			IdempotencyKey:    "cancel-defer:" + company.SubscriptionRef,
		})
		if err != nil {
			return response_models.CancellationResponse{}, err
		}
		processorTouched = true
		// The processor's answer is authoritative for when access lapses.
		if !sub.CurrentPeriodEnd.IsZero() {
			end := sub.CurrentPeriodEnd
			plan.ScheduledEnd = &end
		}
	}

	_, err = l.mutateCompany(ctx, companyID, func(c *db_models.Company) error {
		applyCancellation(c, plan, now, reason, feedback)
		return nil
	})
	if err != nil {
		if processorTouched {
			recon := &utils.ReconciliationError{CompanyID: company.ID, Op: "cancel subscription", Err: err}
			l.log.Error("internal cancellation write failed after processor cancel",
				zap.String("company_id", companyID),
				zap.String("subscription_ref", company.SubscriptionRef),
				zap.Error(err))
			return response_models.CancellationResponse{}, recon
		}
		return response_models.CancellationResponse{}, err
	}

	resp := response_models.CancellationResponse{AccountLocked: plan.LockImmediately}
	switch {
	case plan.LockImmediately:
		resp.Message = "Subscription cancelled and account locked"
	case plan.ScheduledEnd != nil:
		days := utils.DaysUntil(plan.ScheduledEnd.Unix(), now)
		resp.DaysRemaining = &days
		resp.Message = "Subscription scheduled for cancellation"
	}

	if email := firstActiveAdminEmail(ctx, l.memberRepo, company.ID); email != "" {
		days := 0
		if resp.DaysRemaining != nil {
			days = *resp.DaysRemaining
		}
		if mailErr := l.mail.SendCancellationNotice(email, company.Name, plan.LockImmediately, days); mailErr != nil {
			l.log.Warn("cancellation email failed",
				zap.String("company_id", companyID),
				zap.Error(mailErr))
		}
	}

	l.log.Info("subscription cancelled",
		zap.String("company_id", companyID),
		zap.Bool("locked", plan.LockImmediately),
		zap.Bool("grace_consumed", plan.ConsumesGrace))
	return resp, nil
}

// CommitSeatChange applies a confirmed seat allocation. Paid increases reach
// here from the processor webhook; reductions synchronously after the
// processor update.
func (l *LifecycleService) CommitSeatChange(ctx context.Context, companyID string, adminSeats, juniorSeats int, pricePence int64) error {
	_, err := l.mutateCompany(ctx, companyID, func(c *db_models.Company) error {
		if !c.SubscriptionActive && c.SubscriptionStatus != billing.StatusTrialing {
			return utils.ErrNoSubscription
		}
		c.AdminSeats = adminSeats
		c.JuniorSeats = juniorSeats
		c.SubscriptionSeats = adminSeats + juniorSeats
		if pricePence > 0 {
			c.SubscriptionPricePence = pricePence
		}
		return nil
	})
	if err != nil {
		l.log.Error("seat change write failed",
			zap.String("company_id", companyID),
			zap.Int("admin_seats", adminSeats),
			zap.Int("junior_seats", juniorSeats),
			zap.Error(err))
	}
	return err
}

// HandleSubscriptionDeleted reacts to the processor deleting a subscription.
// During an annual grace window the deletion is expected and access is kept
// until the scheduled date; otherwise the record moves to cancelled and the
// sweep locks it.
func (l *LifecycleService) HandleSubscriptionDeleted(ctx context.Context, subscriptionRef string) error {
	company, err := l.companyRepo.FindBySubscriptionRef(ctx, subscriptionRef)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if company == nil {
		l.log.Warn("subscription deleted for unknown ref", zap.String("subscription_ref", subscriptionRef))
		return nil
	}

	now := l.now().Unix()
	if company.ScheduledCancellationDate != nil && *company.ScheduledCancellationDate > now {
		l.log.Info("processor subscription deleted inside grace window",
			zap.String("company_id", company.ID.String()))
		return nil
	}

	_, err = l.mutateCompany(ctx, company.ID.String(), func(c *db_models.Company) error {
		if c.SubscriptionStatus == billing.StatusCancelled {
			return errAlreadyApplied
		}
		c.SubscriptionStatus = billing.StatusCancelled
		c.SubscriptionActive = false
		cancelledAt := now
		if c.CancelledAt == nil {
			c.CancelledAt = &cancelledAt
		}
		return nil
	})
	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	return err
}

// errAlreadyApplied short-circuits an idempotent replay inside mutateCompany.
var errAlreadyApplied = errors.New("mutation already applied")

// mutateCompany is the single write path to the company row: read, apply,
// conditional write, with one automatic retry on an optimistic-concurrency
// collision.
func (l *LifecycleService) mutateCompany(ctx context.Context, companyID string, apply func(*db_models.Company) error) (*db_models.Company, error) {
	for attempt := 0; ; attempt++ {
		company, err := l.companyRepo.FindById(ctx, companyID)
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if company == nil {
			return nil, utils.ErrCompanyNotFound
		}

		if err := apply(company); err != nil {
			return nil, err
		}

		err = l.companyRepo.UpdateWithVersion(ctx, company)
		if err == nil {
			return company, nil
		}
		if errors.Is(err, utils.ErrStateConflict) {
			if attempt == 0 {
				continue
			}
			return nil, err
		}
		return nil, utils.ErrDatabaseError
	}
}

// firstActiveAdminEmail picks the notification recipient: the first active
// admin on the company, or empty when there is none to mail.
func firstActiveAdminEmail(ctx context.Context, repo repositories.MemberRepository, companyID uuid.UUID) string {
	members, err := repo.ListByCompany(ctx, companyID)
	if err != nil {
		return ""
	}
	for _, m := range members {
		if m.RoleType == db_models.RoleAdmin && m.IsActive {
			return m.Email
		}
	}
	return ""
}

func stateOf(c *db_models.Company) billing.State {
	st := billing.State{
		Status:          c.SubscriptionStatus,
		GracePeriodUsed: c.GracePeriodUsed,
	}
	if c.SubscriptionType != nil {
		st.Type = *c.SubscriptionType
	}
	return st
}

func applyCancellation(c *db_models.Company, plan billing.CancellationPlan, now time.Time, reason, feedback string) {
	nowUnix := now.Unix()
	c.CancelledAt = &nowUnix
	c.CancellationReason = &reason
	c.CancellationFeedback = &feedback

	if plan.ConsumesGrace {
		c.GracePeriodUsed = true
	}

	if plan.LockImmediately {
		c.SubscriptionStatus = billing.StatusCancelled
		c.SubscriptionActive = false
		c.AccountLocked = true
		c.LockedAt = &nowUnix
		c.CancelAtPeriodEnd = false
		c.ScheduledCancellationDate = nil
		if c.TrialEndsAt != nil && *c.TrialEndsAt > nowUnix {
			c.TrialEndsAt = &nowUnix
		}
		return
	}

	c.SubscriptionStatus = billing.StatusCanceling
	c.CancelAtPeriodEnd = plan.DeferToPeriodEnd
	if plan.ScheduledEnd != nil {
		end := plan.ScheduledEnd.Unix()
		c.ScheduledCancellationDate = &end
	}
	// Access continues through the grace window; the sweep and the access
	// gate's date check take it from here.
}
