package response_models

type MemberResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	RoleType string `json:"role_type"`
	IsActive bool   `json:"is_active"`
}

type AcceptInviteResponse struct {
	Token string `json:"token"`
}

type RegisterCompanyResponse struct {
	CompanyID   string `json:"company_id"`
	Token       string `json:"token"`
	TrialEndsAt int64  `json:"trial_ends_at"`
}
