package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spreadchecker/internal/models/request_models"
	"spreadchecker/internal/services"
	"spreadchecker/pkg/utils"
)

type MemberController struct {
	memberService services.MemberServiceInterface
}

func NewMemberController(memberService services.MemberServiceInterface) *MemberController {
	return &MemberController{
		memberService: memberService,
	}
}

// Register godoc
// @Summary Register a company and its first admin, starting the free trial
// @Tags Members
// @Accept json
// @Produce json
// @Param request body request_models.RegisterCompanyRequest true "Register Request"
// @Success 200 {object} utils.APIResponse
// @Router /signup [post]
func (m *MemberController) Register(c *gin.Context) {

	var request request_models.RegisterCompanyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := m.memberService.RegisterCompany(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Company registered")
}

// Invite godoc
// @Summary Invite a member onto a licensed seat
// @Tags Members
// @Accept json
// @Produce json
// @Param request body request_models.InviteMemberRequest true "Invite Request"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /members/invite [post]
func (m *MemberController) Invite(c *gin.Context) {

	var request request_models.InviteMemberRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !bindCompanyScope(c, &request.CompanyID) {
		return
	}

	if err := m.memberService.Invite(c.Request.Context(), request); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Invitation sent")
}

// AcceptInvite is unauthenticated: the invitee has no credentials yet, only
// the single-use token from their email.
func (m *MemberController) AcceptInvite(c *gin.Context) {

	var request request_models.AcceptInviteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := m.memberService.AcceptInvite(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Invitation accepted")
}

func (m *MemberController) Deactivate(c *gin.Context) {
	companyID := c.GetString("company_id")
	if companyID == "" {
		utils.RespondError(c, http.StatusUnauthorized, "company_id is required")
		return
	}

	memberID := c.Param("id")
	if memberID == "" {
		utils.RespondError(c, http.StatusBadRequest, "member id is required")
		return
	}

	if err := m.memberService.Deactivate(c.Request.Context(), companyID, memberID); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Member deactivated")
}

func (m *MemberController) List(c *gin.Context) {
	companyID := c.GetString("company_id")
	if companyID == "" {
		utils.RespondError(c, http.StatusUnauthorized, "company_id is required")
		return
	}

	members, err := m.memberService.List(c.Request.Context(), companyID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, members, "Members listed")
}
