package controllers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"spreadchecker/internal/services"
	"spreadchecker/pkg/utils"
)

// SweepConfig holds the shared secret the external scheduler presents.
type SweepConfig struct {
	Secret string
}

type SweepController struct {
	sweepService services.SweepServiceInterface
	cfg          SweepConfig
}

func NewSweepController(sweepService services.SweepServiceInterface, cfg SweepConfig) *SweepController {
	return &SweepController{
		sweepService: sweepService,
		cfg:          cfg,
	}
}

// LockExpired is called by the external scheduler, not by end users.
func (s *SweepController) LockExpired(c *gin.Context) {
	if !s.authorized(c) {
		return
	}

	locked, err := s.sweepService.LockExpired(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{"locked": locked}, "Sweep completed")
}

// TrialReminders runs the daily trial-ending reminder pass.
func (s *SweepController) TrialReminders(c *gin.Context) {
	if !s.authorized(c) {
		return
	}

	sent, err := s.sweepService.SendTrialReminders(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{"sent": sent}, "Reminders sent")
}

func (s *SweepController) authorized(c *gin.Context) bool {
	token := c.GetHeader("X-Internal-Token")
	if s.cfg.Secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Secret)) != 1 {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid internal token")
		return false
	}
	return true
}
