package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
	"spreadchecker/internal/models/request_models"
	"spreadchecker/internal/models/response_models"
	"spreadchecker/internal/repositories"
	mem "spreadchecker/pkg/memcache"
	"spreadchecker/pkg/utils"
)

const inviteTokenTTL = 7 * 24 * time.Hour

type MemberServiceInterface interface {
	RegisterCompany(ctx context.Context, req request_models.RegisterCompanyRequest) (response_models.RegisterCompanyResponse, error)
	Invite(ctx context.Context, req request_models.InviteMemberRequest) error
	AcceptInvite(ctx context.Context, req request_models.AcceptInviteRequest) (response_models.AcceptInviteResponse, error)
	Deactivate(ctx context.Context, companyID, memberID string) error
	List(ctx context.Context, companyID string) ([]response_models.MemberResponse, error)
}

type MemberService struct {
	memberRepo   repositories.MemberRepository
	companyRepo  repositories.CompanyRepository
	inviteTokens mem.InviteTokenStore
	mail         MailServiceInterface
	log          *zap.Logger
	now          func() time.Time
}

func NewMemberService(
	memberRepo repositories.MemberRepository,
	companyRepo repositories.CompanyRepository,
	inviteTokens mem.InviteTokenStore,
	mail MailServiceInterface,
	log *zap.Logger,
) MemberServiceInterface {
	return &MemberService{
		memberRepo:   memberRepo,
		companyRepo:  companyRepo,
		inviteTokens: inviteTokens,
		mail:         mail,
		log:          log,
		now:          time.Now,
	}
}

// RegisterCompany bootstraps a tenant: the company starts its free trial and
// the founder takes the first admin seat immediately, no invitation step.
func (m *MemberService) RegisterCompany(ctx context.Context, req request_models.RegisterCompanyRequest) (response_models.RegisterCompanyResponse, error) {
	existing, err := m.memberRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return response_models.RegisterCompanyResponse{}, utils.ErrDatabaseError
	}
	if existing != nil {
		return response_models.RegisterCompanyResponse{}, utils.ErrEmailAlreadyExists
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return response_models.RegisterCompanyResponse{}, err
	}

	trialEnd := m.now().AddDate(0, 0, billing.TrialDays).Unix()
	company := &db_models.Company{
		Name:               req.CompanyName,
		SubscriptionStatus: billing.StatusTrialing,
		TrialEndsAt:        &trialEnd,
		AdminSeats:         1,
	}
	if err := m.companyRepo.Insert(ctx, company); err != nil {
		return response_models.RegisterCompanyResponse{}, utils.ErrDatabaseError
	}

	member := &db_models.Member{
		CompanyID:    company.ID,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		RoleType:     db_models.RoleAdmin,
		IsActive:     true,
	}
	if err := m.memberRepo.Insert(ctx, member); err != nil {
		return response_models.RegisterCompanyResponse{}, utils.ErrDatabaseError
	}

	token, err := utils.CreateToken(member.ID, company.ID, string(db_models.RoleAdmin))
	if err != nil {
		return response_models.RegisterCompanyResponse{}, err
	}

	m.log.Info("company registered",
		zap.String("company_id", company.ID.String()),
		zap.Int64("trial_ends_at", trialEnd))
	return response_models.RegisterCompanyResponse{
		CompanyID:   company.ID.String(),
		Token:       token,
		TrialEndsAt: trialEnd,
	}, nil
}

// Invite creates an inactive member and emails a single-use token. The seat
// is not consumed until the invite is accepted; availability is re-checked at
// acceptance, when it actually matters.
func (m *MemberService) Invite(ctx context.Context, req request_models.InviteMemberRequest) error {
	company, err := m.companyRepo.FindById(ctx, req.CompanyID)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if company == nil {
		return utils.ErrCompanyNotFound
	}

	existing, err := m.memberRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if existing != nil {
		return utils.ErrEmailAlreadyExists
	}

	member := &db_models.Member{
		CompanyID: company.ID,
		Email:     req.Email,
		FullName:  req.FullName,
		RoleType:  db_models.MemberRole(req.RoleType),
		IsActive:  false,
	}
	if err := m.memberRepo.Insert(ctx, member); err != nil {
		return utils.ErrDatabaseError
	}

	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		return err
	}
	m.inviteTokens.Set(token, member.ID, inviteTokenTTL)

	if err := m.mail.SendMemberInvitation(req.Email, req.FullName, token); err != nil {
		m.log.Warn("invitation email failed",
			zap.String("member_id", member.ID.String()),
			zap.Error(err))
	}
	return nil
}

// AcceptInvite consumes the token, sets the password and activates the
// member, provided a seat of the member's role is still free.
func (m *MemberService) AcceptInvite(ctx context.Context, req request_models.AcceptInviteRequest) (response_models.AcceptInviteResponse, error) {
	memberID := m.inviteTokens.Consume(req.Token)
	if memberID == uuid.Nil {
		return response_models.AcceptInviteResponse{}, utils.ErrInviteInvalid
	}

	member, err := m.memberRepo.FindById(ctx, memberID.String())
	if err != nil {
		return response_models.AcceptInviteResponse{}, utils.ErrDatabaseError
	}
	if member == nil {
		return response_models.AcceptInviteResponse{}, utils.ErrInviteInvalid
	}

	company, err := m.companyRepo.FindById(ctx, member.CompanyID.String())
	if err != nil {
		return response_models.AcceptInviteResponse{}, utils.ErrDatabaseError
	}
	if company == nil {
		return response_models.AcceptInviteResponse{}, utils.ErrCompanyNotFound
	}

	adminsInUse, juniorsInUse, err := m.memberRepo.CountActiveByRole(ctx, member.CompanyID)
	if err != nil {
		return response_models.AcceptInviteResponse{}, utils.ErrDatabaseError
	}
	switch member.RoleType {
	case db_models.RoleAdmin:
		if adminsInUse >= company.AdminSeats {
			return response_models.AcceptInviteResponse{}, utils.ErrNoSeatAvailable
		}
	case db_models.RoleJunior:
		if juniorsInUse >= company.JuniorSeats {
			return response_models.AcceptInviteResponse{}, utils.ErrNoSeatAvailable
		}
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return response_models.AcceptInviteResponse{}, err
	}
	member.PasswordHash = hash
	member.IsActive = true
	if err := m.memberRepo.Update(ctx, member); err != nil {
		return response_models.AcceptInviteResponse{}, utils.ErrDatabaseError
	}

	token, err := utils.CreateToken(member.ID, member.CompanyID, string(member.RoleType))
	if err != nil {
		return response_models.AcceptInviteResponse{}, err
	}

	m.log.Info("member activated",
		zap.String("member_id", member.ID.String()),
		zap.String("company_id", member.CompanyID.String()),
		zap.String("role", string(member.RoleType)))
	return response_models.AcceptInviteResponse{Token: token}, nil
}

// Deactivate frees a seat. The last active admin can never be deactivated:
// someone has to be able to manage the subscription.
func (m *MemberService) Deactivate(ctx context.Context, companyID, memberID string) error {
	member, err := m.memberRepo.FindById(ctx, memberID)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if member == nil || member.CompanyID.String() != companyID {
		return utils.ErrMemberNotFound
	}
	if !member.IsActive {
		return nil
	}

	if member.RoleType == db_models.RoleAdmin {
		adminsInUse, _, err := m.memberRepo.CountActiveByRole(ctx, member.CompanyID)
		if err != nil {
			return utils.ErrDatabaseError
		}
		if adminsInUse <= 1 {
			return utils.ErrLastAdmin
		}
	}

	member.IsActive = false
	if err := m.memberRepo.Update(ctx, member); err != nil {
		return utils.ErrDatabaseError
	}
	return nil
}

func (m *MemberService) List(ctx context.Context, companyID string) ([]response_models.MemberResponse, error) {
	cid, err := uuid.Parse(companyID)
	if err != nil {
		return nil, utils.ErrCompanyNotFound
	}

	members, err := m.memberRepo.ListByCompany(ctx, cid)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}

	out := make([]response_models.MemberResponse, 0, len(members))
	for _, mb := range members {
		out = append(out, response_models.MemberResponse{
			ID:       mb.ID.String(),
			Email:    mb.Email,
			FullName: mb.FullName,
			RoleType: string(mb.RoleType),
			IsActive: mb.IsActive,
		})
	}
	return out, nil
}
