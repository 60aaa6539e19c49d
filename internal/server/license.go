package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
)

type licenseResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	PlanTier    string    `json:"plan_tier"`
	Status      string    `json:"status"`
	NotesLimit  int       `json:"notes_limit"`
	NotesUsed   int       `json:"notes_used"`
	Remaining   int       `json:"remaining"`
	Unlimited   bool      `json:"unlimited"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// GetLicense returns the caller's entitlement state. Reads go through a
// short-lived cache; webhook-driven changes appear within licenseCacheTTL.
func (s *Server) GetLicense(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	license, err := s.loadLicense(c, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toLicenseResponse(license)})
}

// GetUsage returns the caller's usage for the current billing period.
func (s *Server) GetUsage(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	license, err := s.loadLicense(c, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"notes_used":   license.NotesUsed,
		"notes_limit":  license.NotesLimit,
		"remaining":    license.Remaining(),
		"unlimited":    license.Unlimited(),
		"period_start": license.PeriodStart,
		"period_end":   license.PeriodEnd,
	}})
}

type provisionLicenseRequest struct {
	UserID                 string `json:"user_id"`
	Email                  string `json:"email"`
	PlanTier               string `json:"plan_tier"`
	ProviderCustomerID     string `json:"provider_customer_id"`
	ProviderSubscriptionID string `json:"provider_subscription_id"`
}

// ProvisionLicense creates or refreshes a license for an account, seeding
// the note limit from the configured plan limits. Operator-only: it sits
// behind OperatorRequired. For existing accounts only the tier and limit
// change; billing status, usage and period bounds stay with the stored row
// and move through verified subscription events.
func (s *Server) ProvisionLicense(c *gin.Context) {
	actorID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req provisionLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tier := strings.ToLower(strings.TrimSpace(req.PlanTier))
	limit, ok := s.cfg.LimitForTier(tier)
	if !ok {
		AbortWithError(c, newValidationError("plan_tier", "invalid_plan_tier", "unknown plan tier"))
		return
	}

	license, err := s.licenseSvc.Create(c.Request.Context(), licensedomain.CreateLicenseRequest{
		UserID:                 req.UserID,
		Email:                  req.Email,
		PlanTier:               licensedomain.PlanTier(tier),
		NotesLimit:             limit,
		ProviderCustomerID:     req.ProviderCustomerID,
		ProviderSubscriptionID: req.ProviderSubscriptionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.licenseCache.Delete(license.UserID)

	if s.auditSvc != nil {
		targetID := license.UserID
		_ = s.auditSvc.AuditLog(c.Request.Context(), "user", actorID, "license.provisioned", "license", &targetID, map[string]any{
			"plan_tier":   string(license.PlanTier),
			"notes_limit": license.NotesLimit,
		})
	}

	c.JSON(http.StatusCreated, gin.H{"data": toLicenseResponse(license)})
}

func (s *Server) loadLicense(c *gin.Context, userID string) (*licensedomain.License, error) {
	if cached, ok := s.licenseCache.Get(userID); ok {
		return cached, nil
	}
	license, err := s.licenseSvc.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	s.licenseCache.Set(userID, license, licenseCacheTTL)
	return license, nil
}

func toLicenseResponse(license *licensedomain.License) licenseResponse {
	return licenseResponse{
		UserID:      license.UserID,
		Email:       license.Email,
		PlanTier:    string(license.PlanTier),
		Status:      string(license.Status),
		NotesLimit:  license.NotesLimit,
		NotesUsed:   license.NotesUsed,
		Remaining:   license.Remaining(),
		Unlimited:   license.Unlimited(),
		PeriodStart: license.PeriodStart,
		PeriodEnd:   license.PeriodEnd,
	}
}
