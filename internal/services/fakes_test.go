package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
	"spreadchecker/internal/processor"
	"spreadchecker/pkg/utils"
)

// In-memory doubles for the repository and processor contracts. They emulate
// the behaviours the services depend on: nil-on-missing lookups, versioned
// writes and single-recording of webhook event ids.

type fakeCompanyRepo struct {
	mu        sync.Mutex
	companies map[string]*db_models.Company

	// failNextWrites makes that many UpdateWithVersion calls lose the
	// optimistic race before writes succeed again.
	failNextWrites int
	writeCalls     int
}

func newFakeCompanyRepo(companies ...*db_models.Company) *fakeCompanyRepo {
	r := &fakeCompanyRepo{companies: make(map[string]*db_models.Company)}
	for _, c := range companies {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		r.companies[c.ID.String()] = c
	}
	return r
}

func (r *fakeCompanyRepo) Insert(ctx context.Context, company *db_models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	r.companies[company.ID.String()] = copyCompany(company)
	return nil
}

func (r *fakeCompanyRepo) FindById(ctx context.Context, id string) (*db_models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return nil, nil
	}
	return copyCompany(c), nil
}

func (r *fakeCompanyRepo) FindBySubscriptionRef(ctx context.Context, ref string) (*db_models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.companies {
		if c.SubscriptionRef == ref {
			return copyCompany(c), nil
		}
	}
	return nil, nil
}

func (r *fakeCompanyRepo) UpdateWithVersion(ctx context.Context, company *db_models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeCalls++

	if r.failNextWrites > 0 {
		r.failNextWrites--
		return utils.ErrStateConflict
	}

	stored, ok := r.companies[company.ID.String()]
	if !ok || stored.LockVersion != company.LockVersion {
		return utils.ErrStateConflict
	}

	company.LockVersion++
	r.companies[company.ID.String()] = copyCompany(company)
	return nil
}

func (r *fakeCompanyRepo) SaveCustomerRef(ctx context.Context, id string, customerRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return errors.New("not found")
	}
	c.CustomerRef = customerRef
	return nil
}

func (r *fakeCompanyRepo) FindLockCandidates(ctx context.Context, now int64) ([]db_models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []db_models.Company
	for _, c := range r.companies {
		if c.AccountLocked {
			continue
		}
		trialLapsed := !c.SubscriptionActive && c.TrialEndsAt != nil && *c.TrialEndsAt < now
		graceLapsed := c.ScheduledCancellationDate != nil && *c.ScheduledCancellationDate < now
		if trialLapsed || graceLapsed {
			out = append(out, *copyCompany(c))
		}
	}
	return out, nil
}

func (r *fakeCompanyRepo) FindTrialReminderCandidates(ctx context.Context, now int64) ([]db_models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []db_models.Company
	for _, c := range r.companies {
		if c.AccountLocked || c.SubscriptionActive {
			continue
		}
		if c.TrialEndsAt != nil && *c.TrialEndsAt > now {
			out = append(out, *copyCompany(c))
		}
	}
	return out, nil
}

func (r *fakeCompanyRepo) stored(id uuid.UUID) *db_models.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyCompany(r.companies[id.String()])
}

func copyCompany(c *db_models.Company) *db_models.Company {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

type fakeMemberRepo struct {
	members map[string]*db_models.Member
}

func newFakeMemberRepo(members ...*db_models.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{members: make(map[string]*db_models.Member)}
	for _, m := range members {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		r.members[m.ID.String()] = m
	}
	return r
}

func (r *fakeMemberRepo) Insert(ctx context.Context, member *db_models.Member) error {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	r.members[member.ID.String()] = member
	return nil
}

func (r *fakeMemberRepo) Update(ctx context.Context, member *db_models.Member) error {
	r.members[member.ID.String()] = member
	return nil
}

func (r *fakeMemberRepo) FindById(ctx context.Context, id string) (*db_models.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (r *fakeMemberRepo) FindByEmail(ctx context.Context, email string) (*db_models.Member, error) {
	for _, m := range r.members {
		if m.Email == email {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMemberRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]db_models.Member, error) {
	var out []db_models.Member
	for _, m := range r.members {
		if m.CompanyID == companyID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) CountActiveByRole(ctx context.Context, companyID uuid.UUID) (int, int, error) {
	var admins, juniors int
	for _, m := range r.members {
		if m.CompanyID != companyID || !m.IsActive {
			continue
		}
		switch m.RoleType {
		case db_models.RoleAdmin:
			admins++
		case db_models.RoleJunior:
			juniors++
		}
	}
	return admins, juniors, nil
}

type fakeAddonRepo struct {
	addons []*db_models.AddonItem
}

func (r *fakeAddonRepo) Insert(ctx context.Context, addon *db_models.AddonItem) error {
	if addon.ID == uuid.Nil {
		addon.ID = uuid.New()
	}
	r.addons = append(r.addons, addon)
	return nil
}

func (r *fakeAddonRepo) FindByCompanyAndType(ctx context.Context, companyID uuid.UUID, addonType billing.AddonType) (*db_models.AddonItem, error) {
	for _, a := range r.addons {
		if a.CompanyID == companyID && a.AddonType == addonType {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAddonRepo) Update(ctx context.Context, addon *db_models.AddonItem) error {
	for i, a := range r.addons {
		if a.ID == addon.ID {
			r.addons[i] = addon
			return nil
		}
	}
	r.addons = append(r.addons, addon)
	return nil
}

func (r *fakeAddonRepo) ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]db_models.AddonItem, error) {
	var out []db_models.AddonItem
	for _, a := range r.addons {
		if a.CompanyID == companyID && a.Active {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeChargeRepo struct {
	charges []*db_models.Charge
}

func (r *fakeChargeRepo) Insert(ctx context.Context, charge *db_models.Charge) error {
	if charge.ID == uuid.Nil {
		charge.ID = uuid.New()
	}
	r.charges = append(r.charges, charge)
	return nil
}

func (r *fakeChargeRepo) MarkPaid(ctx context.Context, sessionID string, paidAt int64) error {
	for _, c := range r.charges {
		if c.ProviderSessionID == sessionID && c.Status == db_models.ChargeStatusPending {
			c.Status = db_models.ChargeStatusPaid
			c.PaidAt = &paidAt
		}
	}
	return nil
}

type fakeWebhookRepo struct {
	seen map[string]bool
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{seen: make(map[string]bool)}
}

func (r *fakeWebhookRepo) MarkProcessed(ctx context.Context, eventID string, eventType string) (bool, error) {
	if r.seen[eventID] {
		return true, nil
	}
	r.seen[eventID] = true
	return false, nil
}

func (r *fakeWebhookRepo) Forget(ctx context.Context, eventID string) error {
	delete(r.seen, eventID)
	return nil
}

type fakeProcessor struct {
	sub     processor.Subscription
	session processor.Session
	event   *processor.Event

	retrieveErr  error
	updateErr    error
	cancelErr    error
	sessionErr   error
	signatureErr error

	customerRef string

	retrieveCalls int
	cancelled     bool
	cancelComment string
	updates       []processor.UpdateSubscriptionParams
	sessions      []processor.CheckoutSessionParams
}

func (p *fakeProcessor) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	if p.customerRef == "" {
		p.customerRef = "cus_test"
	}
	return p.customerRef, nil
}

func (p *fakeProcessor) CreateCheckoutSession(ctx context.Context, params processor.CheckoutSessionParams) (*processor.Session, error) {
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	p.sessions = append(p.sessions, params)
	s := p.session
	if s.ID == "" {
		s = processor.Session{ID: "cs_test", URL: "https://checkout.test/cs_test"}
	}
	return &s, nil
}

func (p *fakeProcessor) UpdateSubscription(ctx context.Context, subscriptionRef string, params processor.UpdateSubscriptionParams) (*processor.Subscription, error) {
	if p.updateErr != nil {
		return nil, p.updateErr
	}
	p.updates = append(p.updates, params)
	sub := p.sub
	if params.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *params.CancelAtPeriodEnd
	}
	return &sub, nil
}

func (p *fakeProcessor) CancelSubscription(ctx context.Context, subscriptionRef string, comment string) (*processor.Subscription, error) {
	if p.cancelErr != nil {
		return nil, p.cancelErr
	}
	p.cancelled = true
	p.cancelComment = comment
	sub := p.sub
	sub.Status = "canceled"
	return &sub, nil
}

func (p *fakeProcessor) RetrieveSubscription(ctx context.Context, subscriptionRef string) (*processor.Subscription, error) {
	p.retrieveCalls++
	if p.retrieveErr != nil {
		return nil, p.retrieveErr
	}
	sub := p.sub
	return &sub, nil
}

func (p *fakeProcessor) ConstructEvent(payload []byte, signature string) (*processor.Event, error) {
	if p.signatureErr != nil {
		return nil, p.signatureErr
	}
	return p.event, nil
}

type fakeMail struct {
	activations int
	cancels     int
	invites     []string
	reminders   []int
}

func (m *fakeMail) SendSubscriptionActivated(to, companyName string, totalSeats int, pricePence int64, billingPeriod string) error {
	m.activations++
	return nil
}

func (m *fakeMail) SendCancellationNotice(to, companyName string, locked bool, daysRemaining int) error {
	m.cancels++
	return nil
}

func (m *fakeMail) SendMemberInvitation(to, fullName, token string) error {
	m.invites = append(m.invites, token)
	return nil
}

func (m *fakeMail) SendTrialReminder(to, companyName string, daysRemaining int) error {
	m.reminders = append(m.reminders, daysRemaining)
	return nil
}
