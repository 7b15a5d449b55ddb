package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spreadchecker/internal/models/request_models"
	"spreadchecker/internal/services"
	"spreadchecker/pkg/utils"
)

type BillingController struct {
	checkoutService  services.CheckoutServiceInterface
	lifecycleService services.LifecycleServiceInterface
	accessService    services.AccessServiceInterface
}

func NewBillingController(
	checkoutService services.CheckoutServiceInterface,
	lifecycleService services.LifecycleServiceInterface,
	accessService services.AccessServiceInterface,
) *BillingController {
	return &BillingController{
		checkoutService:  checkoutService,
		lifecycleService: lifecycleService,
		accessService:    accessService,
	}
}

// AccessStatus godoc
// @Summary Current access decision for the caller's company
// @Tags Billing
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/access-status [get]
func (b *BillingController) AccessStatus(c *gin.Context) {
	companyID := c.GetString("company_id")
	if companyID == "" {
		utils.RespondError(c, http.StatusUnauthorized, "company_id is required")
		return
	}

	status, err := b.accessService.Status(c.Request.Context(), companyID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, status, "Access status evaluated")
}

// PricingQuote godoc
// @Summary Quote seat pricing for a given seat count
// @Tags Billing
// @Produce json
// @Param seats query int true "Total seat count"
// @Success 200 {object} utils.APIResponse
// @Router /billing/pricing [get]
func (b *BillingController) PricingQuote(c *gin.Context) {
	seats, err := strconv.Atoi(c.Query("seats"))
	if err != nil || seats < 1 {
		utils.RespondError(c, http.StatusBadRequest, "seats must be a positive integer")
		return
	}

	utils.RespondSuccess(c, b.checkoutService.Quote(seats), "Pricing quoted")
}

// StartCheckout godoc
// @Summary Open a hosted checkout session for the initial subscription
// @Tags Billing
// @Accept json
// @Produce json
// @Param request body request_models.StartCheckoutRequest true "Checkout Request"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /billing/checkout [post]
func (b *BillingController) StartCheckout(c *gin.Context) {

	var request request_models.StartCheckoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !bindCompanyScope(c, &request.CompanyID) {
		return
	}

	resp, err := b.checkoutService.StartCheckout(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Checkout session created")
}

func (b *BillingController) Cancel(c *gin.Context) {

	var request request_models.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !bindCompanyScope(c, &request.CompanyID) {
		return
	}

	resp, err := b.lifecycleService.Cancel(c.Request.Context(), request.CompanyID, request.Reason, request.Feedback)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, resp.Message)
}

func (b *BillingController) UpdateSeats(c *gin.Context) {

	var request request_models.UpdateSeatsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !bindCompanyScope(c, &request.CompanyID) {
		return
	}

	resp, err := b.checkoutService.UpdateSeats(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Seat allocation updated")
}

func (b *BillingController) AddonCheckout(c *gin.Context) {

	var request request_models.AddonCheckoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !bindCompanyScope(c, &request.CompanyID) {
		return
	}

	resp, err := b.checkoutService.StartAddonCheckout(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Add-on checkout session created")
}

func (b *BillingController) DisableAddon(c *gin.Context) {

	var request request_models.AddonDisableRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !bindCompanyScope(c, &request.CompanyID) {
		return
	}

	if err := b.checkoutService.DisableAddon(c.Request.Context(), request); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Add-on disabled")
}

func (b *BillingController) ListAddons(c *gin.Context) {
	companyID := c.GetString("company_id")
	if companyID == "" {
		utils.RespondError(c, http.StatusUnauthorized, "company_id is required")
		return
	}

	addons, err := b.checkoutService.ListAddons(c.Request.Context(), companyID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, addons, "Add-ons listed")
}

func (b *BillingController) Reactivate(c *gin.Context) {

	var request request_models.ReactivateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if !bindCompanyScope(c, &request.CompanyID) {
		return
	}

	resp, err := b.checkoutService.Reactivate(c.Request.Context(), request)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Reactivation checkout session created")
}

// bindCompanyScope forces the request onto the authenticated company. The
// body may name a company id but the token wins.
func bindCompanyScope(c *gin.Context, companyID *string) bool {
	scoped := c.GetString("company_id")
	if scoped == "" {
		utils.RespondError(c, http.StatusUnauthorized, "company_id is required")
		return false
	}
	*companyID = scoped
	return true
}
