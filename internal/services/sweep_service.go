package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
	"spreadchecker/internal/repositories"
	"spreadchecker/pkg/utils"
)

type SweepServiceInterface interface {
	LockExpired(ctx context.Context) (locked int, err error)
	SendTrialReminders(ctx context.Context) (sent int, err error)
}

// SweepService is the periodic reconciler that locks accounts whose trial or
// grace window has lapsed, and nudges trials approaching their end. The
// access gate re-checks dates on every decision, so a delayed sweep degrades
// nothing; it just tidies the rows.
type SweepService struct {
	companyRepo repositories.CompanyRepository
	memberRepo  repositories.MemberRepository
	mail        MailServiceInterface
	log         *zap.Logger
	now         func() time.Time
}

func NewSweepService(
	companyRepo repositories.CompanyRepository,
	memberRepo repositories.MemberRepository,
	mail MailServiceInterface,
	log *zap.Logger,
) SweepServiceInterface {
	return &SweepService{
		companyRepo: companyRepo,
		memberRepo:  memberRepo,
		mail:        mail,
		log:         log,
		now:         time.Now,
	}
}

func (s *SweepService) LockExpired(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.companyRepo.FindLockCandidates(ctx, now.Unix())
	if err != nil {
		return 0, utils.ErrDatabaseError
	}

	locked := 0
	for i := range candidates {
		if err := s.lockOne(ctx, &candidates[i], now); err != nil {
			// One stuck row must not stall the rest of the sweep.
			s.log.Error("sweep failed to lock account",
				zap.String("company_id", candidates[i].ID.String()),
				zap.Error(err))
			continue
		}
		locked++
	}

	if locked > 0 {
		s.log.Info("sweep locked expired accounts", zap.Int("locked", locked))
	}
	return locked, nil
}

// Reminder thresholds in whole days before trial end. The external scheduler
// runs this daily, so each threshold fires at most once per company.
var trialReminderDays = map[int]bool{30: true, 7: true, 1: true}

func (s *SweepService) SendTrialReminders(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.companyRepo.FindTrialReminderCandidates(ctx, now.Unix())
	if err != nil {
		return 0, utils.ErrDatabaseError
	}

	sent := 0
	for i := range candidates {
		c := &candidates[i]
		if c.TrialEndsAt == nil {
			continue
		}
		days := utils.DaysUntil(*c.TrialEndsAt, now)
		if !trialReminderDays[days] {
			continue
		}
		email := firstActiveAdminEmail(ctx, s.memberRepo, c.ID)
		if email == "" {
			continue
		}
		if err := s.mail.SendTrialReminder(email, c.Name, days); err != nil {
			s.log.Warn("trial reminder failed",
				zap.String("company_id", c.ID.String()),
				zap.Error(err))
			continue
		}
		sent++
	}

	if sent > 0 {
		s.log.Info("trial reminders sent", zap.Int("sent", sent))
	}
	return sent, nil
}

func (s *SweepService) lockOne(ctx context.Context, company *db_models.Company, now time.Time) error {
	nowUnix := now.Unix()

	company.AccountLocked = true
	company.LockedAt = &nowUnix
	company.SubscriptionActive = false
	if company.SubscriptionStatus == billing.StatusCanceling {
		company.SubscriptionStatus = billing.StatusCancelled
	}

	err := s.companyRepo.UpdateWithVersion(ctx, company)
	if errors.Is(err, utils.ErrStateConflict) {
		// Someone mutated the row since the candidate query; the next sweep
		// picks it up again if it still qualifies.
		return err
	}
	return err
}
