package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
	"spreadchecker/internal/models/request_models"
	"spreadchecker/internal/models/response_models"
	"spreadchecker/internal/processor"
	"spreadchecker/internal/repositories"
	"spreadchecker/pkg/utils"
)

// CheckoutConfig carries the redirect targets for hosted checkout sessions.
type CheckoutConfig struct {
	SuccessURL string
	CancelURL  string
}

type CheckoutServiceInterface interface {
	Quote(totalSeats int) response_models.PricingQuote
	StartCheckout(ctx context.Context, req request_models.StartCheckoutRequest) (response_models.CheckoutResponse, error)
	UpdateSeats(ctx context.Context, req request_models.UpdateSeatsRequest) (response_models.SeatUpdateResponse, error)
	StartAddonCheckout(ctx context.Context, req request_models.AddonCheckoutRequest) (response_models.CheckoutResponse, error)
	DisableAddon(ctx context.Context, req request_models.AddonDisableRequest) error
	ListAddons(ctx context.Context, companyID string) ([]response_models.AddonResponse, error)
	Reactivate(ctx context.Context, req request_models.ReactivateRequest) (response_models.CheckoutResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type CheckoutService struct {
	companyRepo repositories.CompanyRepository
	memberRepo  repositories.MemberRepository
	addonRepo   repositories.AddonRepository
	chargeRepo  repositories.ChargeRepository
	webhookRepo repositories.WebhookEventRepository
	client      processor.Client
	lifecycle   LifecycleServiceInterface
	mail        MailServiceInterface
	cfg         CheckoutConfig
	log         *zap.Logger
	now         func() time.Time
}

func NewCheckoutService(
	companyRepo repositories.CompanyRepository,
	memberRepo repositories.MemberRepository,
	addonRepo repositories.AddonRepository,
	chargeRepo repositories.ChargeRepository,
	webhookRepo repositories.WebhookEventRepository,
	client processor.Client,
	lifecycle LifecycleServiceInterface,
	mail MailServiceInterface,
	cfg CheckoutConfig,
	log *zap.Logger,
) CheckoutServiceInterface {
	return &CheckoutService{
		companyRepo: companyRepo,
		memberRepo:  memberRepo,
		addonRepo:   addonRepo,
		chargeRepo:  chargeRepo,
		webhookRepo: webhookRepo,
		client:      client,
		lifecycle:   lifecycle,
		mail:        mail,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

func (s *CheckoutService) Quote(totalSeats int) response_models.PricingQuote {
	perSeat, monthly := billing.PriceForSeats(totalSeats)
	return response_models.PricingQuote{
		TotalSeats:        totalSeats,
		PerSeatPence:      perSeat,
		MonthlyTotalPence: monthly,
		AnnualTotalPence:  billing.AnnualTotal(monthly),
	}
}

// StartCheckout opens a hosted checkout session for the initial subscription.
// All validation happens before any processor call; the internal record is
// only touched once the processor confirms payment through the webhook.
func (s *CheckoutService) StartCheckout(ctx context.Context, req request_models.StartCheckoutRequest) (response_models.CheckoutResponse, error) {
	company, err := s.companyRepo.FindById(ctx, req.CompanyID)
	if err != nil {
		return response_models.CheckoutResponse{}, utils.ErrDatabaseError
	}
	if company == nil {
		return response_models.CheckoutResponse{}, utils.ErrCompanyNotFound
	}
	if company.SubscriptionActive {
		return response_models.CheckoutResponse{}, utils.ErrAlreadySubscribed
	}

	adminsInUse, juniorsInUse, err := s.memberRepo.CountActiveByRole(ctx, company.ID)
	if err != nil {
		return response_models.CheckoutResponse{}, utils.ErrDatabaseError
	}
	if req.AdminSeats < adminsInUse || req.JuniorSeats < juniorsInUse {
		return response_models.CheckoutResponse{}, utils.ErrSeatsBelowUsage
	}

	period := billing.BillingPeriod(req.BillingPeriod)
	totalSeats := req.AdminSeats + req.JuniorSeats
	periodTotal := billing.PeriodTotal(totalSeats, period)
	interval := billingInterval(period)

	lineItems := []processor.LineItem{{
		Name:        "Team plan",
		Description: fmt.Sprintf("%d seats, billed %s", totalSeats, period),
		AmountPence: perSeatPeriodAmount(totalSeats, period),
		Quantity:    int64(totalSeats),
		Interval:    interval,
	}}
	chargeTotal := periodTotal

	for _, a := range req.Addons {
		addonType := billing.AddonType(a)
		existing, err := s.addonRepo.FindByCompanyAndType(ctx, company.ID, addonType)
		if err != nil {
			return response_models.CheckoutResponse{}, utils.ErrDatabaseError
		}
		if existing != nil && existing.Active {
			return response_models.CheckoutResponse{}, utils.ErrAddonAlreadyActive
		}

		// Add-on prices are charged VAT-inclusive; the base plan is an
		// ex-VAT tier figure taxed by the processor.
		addonTotal := billing.AddVAT(billing.AddonPeriodTotal(totalSeats, period))
		lineItems = append(lineItems, processor.LineItem{
			Name:        addonDisplayName(addonType),
			Description: fmt.Sprintf("Synced to %d seats", totalSeats),
			AmountPence: addonTotal,
			Quantity:    1,
			Interval:    interval,
		})
		chargeTotal += addonTotal
	}

	customerRef, err := s.ensureCustomer(ctx, company)
	if err != nil {
		return response_models.CheckoutResponse{}, err
	}

	session, err := s.client.CreateCheckoutSession(ctx, processor.CheckoutSessionParams{
		CustomerRef: customerRef,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		LineItems:   lineItems,
		Metadata: map[string]string{
			"purpose":        string(db_models.ChargePurposeCheckout),
			"company_id":     company.ID.String(),
			"billing_period": string(period),
			"admin_seats":    strconv.Itoa(req.AdminSeats),
			"junior_seats":   strconv.Itoa(req.JuniorSeats),
			"price_pence":    strconv.FormatInt(periodTotal, 10),
			"addons":         strings.Join(req.Addons, ","),
		},
		IdempotencyKey: fmt.Sprintf("checkout:%s:%s:%d:%d", company.ID, period, req.AdminSeats, req.JuniorSeats),
	})
	if err != nil {
		return response_models.CheckoutResponse{}, err
	}

	if err := s.recordPendingCharge(ctx, company.ID, chargeTotal, db_models.ChargePurposeCheckout, session.ID); err != nil {
		return response_models.CheckoutResponse{}, err
	}

	return response_models.CheckoutResponse{RedirectURL: session.URL, SessionID: session.ID}, nil
}

// UpdateSeats re-allocates seats. Reductions and trial-time changes apply
// straight away; a paid increase is charged the prorated, VAT-inclusive
// difference through a one-off checkout before anything is committed.
func (s *CheckoutService) UpdateSeats(ctx context.Context, req request_models.UpdateSeatsRequest) (response_models.SeatUpdateResponse, error) {
	company, err := s.companyRepo.FindById(ctx, req.CompanyID)
	if err != nil {
		return response_models.SeatUpdateResponse{}, utils.ErrDatabaseError
	}
	if company == nil {
		return response_models.SeatUpdateResponse{}, utils.ErrCompanyNotFound
	}
	if company.AccountLocked {
		return response_models.SeatUpdateResponse{}, utils.ErrNoSubscription
	}
	if req.AdminSeats < 1 {
		return response_models.SeatUpdateResponse{}, utils.ErrAdminSeatRequired
	}

	adminsInUse, juniorsInUse, err := s.memberRepo.CountActiveByRole(ctx, company.ID)
	if err != nil {
		return response_models.SeatUpdateResponse{}, utils.ErrDatabaseError
	}
	if req.AdminSeats < adminsInUse || req.JuniorSeats < juniorsInUse {
		return response_models.SeatUpdateResponse{}, utils.ErrSeatsBelowUsage
	}

	now := s.now()
	newTotal := req.AdminSeats + req.JuniorSeats

	// Trial-time changes are free: no subscription exists to reprice.
	if !company.SubscriptionActive {
		if company.SubscriptionStatus != billing.StatusTrialing {
			return response_models.SeatUpdateResponse{}, utils.ErrNoSubscription
		}
		if err := s.lifecycle.CommitSeatChange(ctx, req.CompanyID, req.AdminSeats, req.JuniorSeats, 0); err != nil {
			return response_models.SeatUpdateResponse{}, err
		}
		return response_models.SeatUpdateResponse{
			NewPricePence: billing.PeriodTotal(newTotal, billing.PeriodMonthly),
			EffectiveDate: utils.FormatRFC3339UK(now),
		}, nil
	}

	period := billing.PeriodMonthly
	if company.SubscriptionType != nil {
		period = *company.SubscriptionType
	}
	newPeriodTotal := billing.PeriodTotal(newTotal, period)
	currentTotal := company.AdminSeats + company.JuniorSeats

	// Same seat count at the same price: a pure admin/junior re-shuffle.
	if newTotal == currentTotal {
		if err := s.lifecycle.CommitSeatChange(ctx, req.CompanyID, req.AdminSeats, req.JuniorSeats, company.SubscriptionPricePence); err != nil {
			return response_models.SeatUpdateResponse{}, err
		}
		return response_models.SeatUpdateResponse{
			NewPricePence: company.SubscriptionPricePence,
			EffectiveDate: utils.FormatRFC3339UK(now),
		}, nil
	}

	if newTotal < currentTotal {
		return s.repriceSubscription(ctx, company, req.AdminSeats, req.JuniorSeats, period, newPeriodTotal)
	}

	// Increase: charge the prorated remainder of the period up front.
	sub, err := s.client.RetrieveSubscription(ctx, company.SubscriptionRef)
	if err != nil {
		return response_models.SeatUpdateResponse{}, err
	}

	delta := newPeriodTotal - company.SubscriptionPricePence
	if delta <= 0 {
		// Crossing a tier boundary upward can cheapen the whole allocation.
		return s.repriceSubscription(ctx, company, req.AdminSeats, req.JuniorSeats, period, newPeriodTotal)
	}

	prorated, err := billing.Prorate(delta, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, now)
	if err != nil {
		// The period rolled over under us; the caller retries against the
		// fresh period.
		return response_models.SeatUpdateResponse{}, utils.ErrStateConflict
	}
	if prorated < billing.MinimumChargePence {
		prorated = billing.MinimumChargePence
	}

	amount := billing.AddVAT(prorated)
	session, err := s.client.CreateCheckoutSession(ctx, processor.CheckoutSessionParams{
		CustomerRef: company.CustomerRef,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		LineItems: []processor.LineItem{{
			Name:        "Additional seats",
			Description: fmt.Sprintf("Prorated charge for moving from %d to %d seats", currentTotal, newTotal),
			AmountPence: amount,
			Quantity:    1,
		}},
		Metadata: map[string]string{
			"purpose":      string(db_models.ChargePurposeSeatUpdate),
			"company_id":   company.ID.String(),
			"admin_seats":  strconv.Itoa(req.AdminSeats),
			"junior_seats": strconv.Itoa(req.JuniorSeats),
			"price_pence":  strconv.FormatInt(newPeriodTotal, 10),
		},
		IdempotencyKey: fmt.Sprintf("seat-update:%s:%d:%d:%d", company.ID, req.AdminSeats, req.JuniorSeats, sub.CurrentPeriodStart.Unix()),
	})
	if err != nil {
		return response_models.SeatUpdateResponse{}, err
	}

	if err := s.recordPendingCharge(ctx, company.ID, amount, db_models.ChargePurposeSeatUpdate, session.ID); err != nil {
		return response_models.SeatUpdateResponse{}, err
	}

	return response_models.SeatUpdateResponse{
		NewPricePence:   newPeriodTotal,
		RedirectURL:     session.URL,
		RequiresPayment: true,
	}, nil
}

// repriceSubscription updates the processor subscription to the new quantity
// and rate, then commits the allocation. No up-front payment: the new price
// starts at the next invoice.
func (s *CheckoutService) repriceSubscription(ctx context.Context, company *db_models.Company, adminSeats, juniorSeats int, period billing.BillingPeriod, newPeriodTotal int64) (response_models.SeatUpdateResponse, error) {
	newTotal := adminSeats + juniorSeats
	qty := int64(newTotal)
	unit := perSeatPeriodAmount(newTotal, period)

	sub, err := s.client.UpdateSubscription(ctx, company.SubscriptionRef, processor.UpdateSubscriptionParams{
		SeatQuantity:    &qty,
		UnitAmountPence: &unit,
		Interval:        billingInterval(period),
		IdempotencyKey:  fmt.Sprintf("reprice:%s:%d:%d", company.ID, adminSeats, juniorSeats),
	})
	if err != nil {
		return response_models.SeatUpdateResponse{}, err
	}

	if err := s.lifecycle.CommitSeatChange(ctx, company.ID.String(), adminSeats, juniorSeats, newPeriodTotal); err != nil {
		recon := &utils.ReconciliationError{CompanyID: company.ID, Op: "reprice subscription", Err: err}
		s.log.Error("seat commit failed after processor reprice",
			zap.String("company_id", company.ID.String()),
			zap.Error(err))
		return response_models.SeatUpdateResponse{}, recon
	}

	return response_models.SeatUpdateResponse{
		NewPricePence: newPeriodTotal,
		EffectiveDate: utils.FormatRFC3339UK(sub.CurrentPeriodEnd),
	}, nil
}

// StartAddonCheckout opens a checkout session for a recurring add-on. The
// add-on price is synced to the current seat count and the company's billing
// period; the item only becomes active once the webhook confirms payment.
func (s *CheckoutService) StartAddonCheckout(ctx context.Context, req request_models.AddonCheckoutRequest) (response_models.CheckoutResponse, error) {
	company, err := s.companyRepo.FindById(ctx, req.CompanyID)
	if err != nil {
		return response_models.CheckoutResponse{}, utils.ErrDatabaseError
	}
	if company == nil {
		return response_models.CheckoutResponse{}, utils.ErrCompanyNotFound
	}
	if !company.SubscriptionActive || company.SubscriptionType == nil {
		return response_models.CheckoutResponse{}, utils.ErrNoSubscription
	}

	addonType := billing.AddonType(req.AddonType)
	existing, err := s.addonRepo.FindByCompanyAndType(ctx, company.ID, addonType)
	if err != nil {
		return response_models.CheckoutResponse{}, utils.ErrDatabaseError
	}
	if existing != nil && existing.Active {
		return response_models.CheckoutResponse{}, utils.ErrAddonAlreadyActive
	}

	period := *company.SubscriptionType
	totalSeats := company.AdminSeats + company.JuniorSeats
	addonTotal := billing.AddVAT(billing.AddonPeriodTotal(totalSeats, period))

	session, err := s.client.CreateCheckoutSession(ctx, processor.CheckoutSessionParams{
		CustomerRef: company.CustomerRef,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		LineItems: []processor.LineItem{{
			Name:        addonDisplayName(addonType),
			Description: fmt.Sprintf("Synced to %d seats, billed %s", totalSeats, period),
			AmountPence: addonTotal,
			Quantity:    1,
			Interval:    billingInterval(period),
		}},
		Metadata: map[string]string{
			"purpose":           string(db_models.ChargePurposeAddon),
			"company_id":        company.ID.String(),
			"addon_type":        string(addonType),
			"addon_price_pence": strconv.FormatInt(addonTotal, 10),
			"seat_count":        strconv.Itoa(totalSeats),
		},
		IdempotencyKey: fmt.Sprintf("addon:%s:%s", company.ID, addonType),
	})
	if err != nil {
		return response_models.CheckoutResponse{}, err
	}

	if err := s.recordPendingCharge(ctx, company.ID, addonTotal, db_models.ChargePurposeAddon, session.ID); err != nil {
		return response_models.CheckoutResponse{}, err
	}

	return response_models.CheckoutResponse{RedirectURL: session.URL, SessionID: session.ID}, nil
}

// DisableAddon turns a recurring add-on off. A standalone add-on subscription
// is cancelled at the processor; an add-on bundled into the plan subscription
// at initial checkout simply stops renewing, its line runs out at period end.
func (s *CheckoutService) DisableAddon(ctx context.Context, req request_models.AddonDisableRequest) error {
	company, err := s.companyRepo.FindById(ctx, req.CompanyID)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if company == nil {
		return utils.ErrCompanyNotFound
	}

	addon, err := s.addonRepo.FindByCompanyAndType(ctx, company.ID, billing.AddonType(req.AddonType))
	if err != nil {
		return utils.ErrDatabaseError
	}
	if addon == nil || !addon.Active {
		return utils.ErrAddonNotActive
	}

	if addon.ItemRef != "" && addon.ItemRef != company.SubscriptionRef {
		if _, err := s.client.CancelSubscription(ctx, addon.ItemRef, "add-on disabled"); err != nil {
			return err
		}
	}

	addon.Active = false
	if err := s.addonRepo.Update(ctx, addon); err != nil {
		recon := &utils.ReconciliationError{CompanyID: company.ID, Op: "disable add-on", Err: err}
		s.log.Error("addon deactivation write failed after processor cancel",
			zap.String("company_id", company.ID.String()),
			zap.String("addon_type", req.AddonType),
			zap.Error(err))
		return recon
	}
	return nil
}

func (s *CheckoutService) ListAddons(ctx context.Context, companyID string) ([]response_models.AddonResponse, error) {
	cid, err := uuid.Parse(companyID)
	if err != nil {
		return nil, utils.ErrCompanyNotFound
	}

	addons, err := s.addonRepo.ListActiveByCompany(ctx, cid)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}

	out := make([]response_models.AddonResponse, 0, len(addons))
	for _, a := range addons {
		out = append(out, response_models.AddonResponse{
			AddonType:           string(a.AddonType),
			RecurringPricePence: a.RecurringPricePence,
			SeatCountAtPurchase: a.SeatCountAtPurchase,
		})
	}
	return out, nil
}

// Reactivate opens a fresh checkout for a cancelled or locked company at its
// previous seat allocation and billing period. There is no undo path for a
// cancellation: coming back always means paying again.
func (s *CheckoutService) Reactivate(ctx context.Context, req request_models.ReactivateRequest) (response_models.CheckoutResponse, error) {
	company, err := s.companyRepo.FindById(ctx, req.CompanyID)
	if err != nil {
		return response_models.CheckoutResponse{}, utils.ErrDatabaseError
	}
	if company == nil {
		return response_models.CheckoutResponse{}, utils.ErrCompanyNotFound
	}
	if company.SubscriptionActive {
		return response_models.CheckoutResponse{}, utils.ErrAlreadySubscribed
	}

	period := billing.PeriodMonthly
	if company.SubscriptionType != nil {
		period = *company.SubscriptionType
	}
	adminSeats := company.AdminSeats
	if adminSeats < 1 {
		adminSeats = 1
	}

	return s.StartCheckout(ctx, request_models.StartCheckoutRequest{
		CompanyID:     req.CompanyID,
		AdminSeats:    adminSeats,
		JuniorSeats:   company.JuniorSeats,
		BillingPeriod: string(period),
	})
}

// HandleWebhook verifies and dispatches one processor delivery. The event id
// is recorded before any side effect, so a replayed delivery is a no-op.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.client.ConstructEvent(payload, signature)
	if err != nil {
		return utils.ErrWebhookSignature
	}
	if evt.Type == processor.EventIgnored {
		return nil
	}

	alreadySeen, err := s.webhookRepo.MarkProcessed(ctx, evt.ID, evt.Type)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if alreadySeen {
		s.log.Info("webhook replay ignored", zap.String("event_id", evt.ID), zap.String("type", evt.Type))
		return nil
	}

	if err := s.dispatchEvent(ctx, evt); err != nil {
		// Release the mark so the processor's redelivery gets another run;
		// a transient failure must not swallow a paid confirmation.
		if forgetErr := s.webhookRepo.Forget(ctx, evt.ID); forgetErr != nil {
			s.log.Error("failed to release webhook event for redelivery",
				zap.String("event_id", evt.ID), zap.Error(forgetErr))
		}
		return err
	}
	return nil
}

func (s *CheckoutService) dispatchEvent(ctx context.Context, evt *processor.Event) error {
	switch evt.Type {
	case processor.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, evt)
	case processor.EventSubscriptionDeleted:
		return s.lifecycle.HandleSubscriptionDeleted(ctx, evt.SubscriptionRef)
	case processor.EventSubscriptionUpdated:
		s.log.Info("processor subscription updated",
			zap.String("subscription_ref", evt.SubscriptionRef))
		return nil
	case processor.EventPaymentFailed:
		// No dunning state: the processor retries on its own schedule and
		// eventually deletes the subscription, which we do react to.
		s.log.Warn("recurring payment failed",
			zap.String("subscription_ref", evt.SubscriptionRef))
		return nil
	default:
		s.log.Info("unhandled webhook event", zap.String("type", evt.Type))
		return nil
	}
}

func (s *CheckoutService) handleCheckoutCompleted(ctx context.Context, evt *processor.Event) error {
	purpose := evt.Metadata["purpose"]
	companyID := evt.Metadata["company_id"]
	if companyID == "" {
		s.log.Warn("checkout completed without company metadata", zap.String("event_id", evt.ID))
		return nil
	}

	switch db_models.ChargePurpose(purpose) {
	case db_models.ChargePurposeCheckout:
		return s.completeInitialCheckout(ctx, evt, companyID)
	case db_models.ChargePurposeSeatUpdate:
		return s.completeSeatUpdate(ctx, evt, companyID)
	case db_models.ChargePurposeAddon:
		return s.completeAddonPurchase(ctx, evt, companyID)
	default:
		s.log.Warn("checkout completed with unknown purpose",
			zap.String("event_id", evt.ID), zap.String("purpose", purpose))
		return nil
	}
}

func (s *CheckoutService) completeInitialCheckout(ctx context.Context, evt *processor.Event, companyID string) error {
	adminSeats := metaInt(evt.Metadata, "admin_seats")
	juniorSeats := metaInt(evt.Metadata, "junior_seats")
	pricePence := metaInt64(evt.Metadata, "price_pence")
	period := billing.BillingPeriod(evt.Metadata["billing_period"])

	if err := s.lifecycle.ActivateFromCheckout(ctx, companyID, ActivationPayload{
		BillingPeriod:   period,
		AdminSeats:      adminSeats,
		JuniorSeats:     juniorSeats,
		PricePence:      pricePence,
		SubscriptionRef: evt.SubscriptionRef,
	}); err != nil {
		return err
	}

	s.markChargePaid(ctx, evt.SessionID)

	if addons := evt.Metadata["addons"]; addons != "" {
		cid, err := uuid.Parse(companyID)
		if err == nil {
			totalSeats := adminSeats + juniorSeats
			for _, a := range strings.Split(addons, ",") {
				s.activateAddon(ctx, cid, billing.AddonType(a), evt.SubscriptionRef,
					billing.AddVAT(billing.AddonPeriodTotal(totalSeats, period)), totalSeats)
			}
		}
	}

	s.notifyActivation(ctx, companyID, adminSeats+juniorSeats, pricePence, string(period))
	return nil
}

func (s *CheckoutService) completeSeatUpdate(ctx context.Context, evt *processor.Event, companyID string) error {
	company, err := s.companyRepo.FindById(ctx, companyID)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if company == nil {
		s.log.Error("seat update paid for missing company", zap.String("company_id", companyID))
		return nil
	}

	adminSeats := metaInt(evt.Metadata, "admin_seats")
	juniorSeats := metaInt(evt.Metadata, "junior_seats")
	pricePence := metaInt64(evt.Metadata, "price_pence")
	newTotal := adminSeats + juniorSeats

	period := billing.PeriodMonthly
	if company.SubscriptionType != nil {
		period = *company.SubscriptionType
	}

	qty := int64(newTotal)
	unit := perSeatPeriodAmount(newTotal, period)
	if _, err := s.client.UpdateSubscription(ctx, company.SubscriptionRef, processor.UpdateSubscriptionParams{
		SeatQuantity:    &qty,
		UnitAmountPence: &unit,
		Interval:        billingInterval(period),
		IdempotencyKey:  "seat-commit:" + evt.ID,
	}); err != nil {
		s.log.Error("subscription reprice failed after paid seat increase",
			zap.String("company_id", companyID), zap.Error(err))
		return err
	}

	if err := s.lifecycle.CommitSeatChange(ctx, companyID, adminSeats, juniorSeats, pricePence); err != nil {
		return err
	}

	s.markChargePaid(ctx, evt.SessionID)
	return nil
}

func (s *CheckoutService) completeAddonPurchase(ctx context.Context, evt *processor.Event, companyID string) error {
	cid, err := uuid.Parse(companyID)
	if err != nil {
		s.log.Error("addon purchase with malformed company id", zap.String("company_id", companyID))
		return nil
	}

	s.activateAddon(ctx, cid, billing.AddonType(evt.Metadata["addon_type"]), evt.SubscriptionRef,
		metaInt64(evt.Metadata, "addon_price_pence"), metaInt(evt.Metadata, "seat_count"))
	s.markChargePaid(ctx, evt.SessionID)
	return nil
}

func (s *CheckoutService) activateAddon(ctx context.Context, companyID uuid.UUID, addonType billing.AddonType, itemRef string, pricePence int64, seatCount int) {
	err := s.addonRepo.Insert(ctx, &db_models.AddonItem{
		CompanyID:           companyID,
		AddonType:           addonType,
		ItemRef:             itemRef,
		RecurringPricePence: pricePence,
		SeatCountAtPurchase: seatCount,
		Active:              true,
	})
	if err != nil {
		s.log.Error("addon activation write failed",
			zap.String("company_id", companyID.String()),
			zap.String("addon_type", string(addonType)),
			zap.Error(err))
	}
}

func (s *CheckoutService) markChargePaid(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.chargeRepo.MarkPaid(ctx, sessionID, s.now().Unix()); err != nil {
		s.log.Error("failed to mark charge paid", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *CheckoutService) notifyActivation(ctx context.Context, companyID string, totalSeats int, pricePence int64, billingPeriod string) {
	company, err := s.companyRepo.FindById(ctx, companyID)
	if err != nil || company == nil {
		return
	}
	email := s.firstAdminEmail(ctx, company.ID)
	if email == "" {
		return
	}
	if err := s.mail.SendSubscriptionActivated(email, company.Name, totalSeats, pricePence, billingPeriod); err != nil {
		s.log.Warn("activation email failed", zap.String("company_id", companyID), zap.Error(err))
	}
}

func (s *CheckoutService) ensureCustomer(ctx context.Context, company *db_models.Company) (string, error) {
	if company.CustomerRef != "" {
		return company.CustomerRef, nil
	}

	email := s.firstAdminEmail(ctx, company.ID)
	ref, err := s.client.CreateCustomer(ctx, email, map[string]string{
		"company_id": company.ID.String(),
	})
	if err != nil {
		return "", err
	}

	if err := s.companyRepo.SaveCustomerRef(ctx, company.ID.String(), ref); err != nil {
		return "", utils.ErrDatabaseError
	}
	return ref, nil
}

func (s *CheckoutService) firstAdminEmail(ctx context.Context, companyID uuid.UUID) string {
	return firstActiveAdminEmail(ctx, s.memberRepo, companyID)
}

func (s *CheckoutService) recordPendingCharge(ctx context.Context, companyID uuid.UUID, amount int64, purpose db_models.ChargePurpose, sessionID string) error {
	err := s.chargeRepo.Insert(ctx, &db_models.Charge{
		CompanyID:         companyID,
		AmountPence:       amount,
		Status:            db_models.ChargeStatusPending,
		Purpose:           purpose,
		ProviderSessionID: sessionID,
	})
	if err != nil {
		return utils.ErrDatabaseError
	}
	return nil
}

func billingInterval(period billing.BillingPeriod) string {
	if period == billing.PeriodAnnual {
		return "year"
	}
	return "month"
}

// perSeatPeriodAmount is the per-seat recurring amount for one billing
// period. The annual per-seat rates are all exact after the 10% discount.
func perSeatPeriodAmount(totalSeats int, period billing.BillingPeriod) int64 {
	perSeat, _ := billing.PriceForSeats(totalSeats)
	if period == billing.PeriodAnnual {
		return billing.AnnualTotal(perSeat)
	}
	return perSeat
}

func addonDisplayName(t billing.AddonType) string {
	switch t {
	case billing.AddonCompanyFinder:
		return "Company Finder add-on"
	case billing.AddonClientData:
		return "Client Data add-on"
	default:
		return string(t)
	}
}

func metaInt(md map[string]string, key string) int {
	v, _ := strconv.Atoi(md[key])
	return v
}

func metaInt64(md map[string]string, key string) int64 {
	v, _ := strconv.ParseInt(md[key], 10, 64)
	return v
}
