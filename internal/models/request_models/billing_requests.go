package request_models

type StartCheckoutRequest struct {
	CompanyID     string   `json:"company_id" binding:"required,uuid4"`
	AdminSeats    int      `json:"admin_seats" binding:"required,min=1"`
	JuniorSeats   int      `json:"junior_seats" binding:"min=0"`
	BillingPeriod string   `json:"billing_period" binding:"required,oneof=monthly annual"`
	Addons        []string `json:"addons" binding:"omitempty,dive,oneof=company_finder client_data"`
}

type CancelSubscriptionRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid4"`
	Reason    string `json:"reason" binding:"required"`
	Feedback  string `json:"feedback"`
}

type UpdateSeatsRequest struct {
	CompanyID   string `json:"company_id" binding:"required,uuid4"`
	AdminSeats  int    `json:"admin_seats" binding:"min=0"`
	JuniorSeats int    `json:"junior_seats" binding:"min=0"`
}

type AddonCheckoutRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid4"`
	AddonType string `json:"addon_type" binding:"required,oneof=company_finder client_data"`
}

type AddonDisableRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid4"`
	AddonType string `json:"addon_type" binding:"required,oneof=company_finder client_data"`
}

type ReactivateRequest struct {
	CompanyID string `json:"company_id" binding:"required,uuid4"`
}
