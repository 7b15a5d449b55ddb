package request_models

type RegisterCompanyRequest struct {
	CompanyName string `json:"company_name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	FullName    string `json:"full_name" binding:"required,min=2,max=100"`
	Password    string `json:"password" binding:"required,min=8"`
}

type InviteMemberRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid4"`
	Email     string `json:"email" binding:"required,email"`
	FullName  string `json:"full_name" binding:"required,min=2,max=100"`
	RoleType  string `json:"role_type" binding:"required,oneof=admin junior"`
}

type AcceptInviteRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}
