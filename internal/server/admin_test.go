package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	authdomain "github.com/connorodea/aidentalnotes/internal/auth/domain"
	"github.com/connorodea/aidentalnotes/internal/auth/token"
	"github.com/connorodea/aidentalnotes/internal/clock"
	"github.com/connorodea/aidentalnotes/internal/config"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	licenserepo "github.com/connorodea/aidentalnotes/internal/license/repository"
	licenseservice "github.com/connorodea/aidentalnotes/internal/license/service"
)

type adminHarness struct {
	db     *gorm.DB
	engine *gin.Engine
	tokens *token.Manager
}

func setupAdminHarness(t *testing.T) *adminHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT,
			password_hash TEXT,
			is_operator BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS licenses (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			plan_tier TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			notes_limit INTEGER NOT NULL,
			notes_used INTEGER NOT NULL DEFAULT 0,
			period_start DATETIME NOT NULL,
			period_end DATETIME NOT NULL,
			provider_customer_id TEXT,
			provider_subscription_id TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	tokens, err := token.NewManager("test-secret", "HS256", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	cfg := config.Config{
		Environment:       "test",
		JWTExpiration:     time.Hour,
		Quotas:            config.PlanQuotas{Starter: 100, Pro: 500, Enterprise: -1},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
	licenseSvc := licenseservice.NewService(licenseservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.FixedClock{T: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)},
		Repo:  licenserepo.Provide(),
	})

	srv := NewServer(Params{
		DB:         db,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		TokenMgr:   tokens,
		LicenseSvc: licenseSvc,
	})

	engine := gin.New()
	srv.RegisterRoutes(engine)

	return &adminHarness{db: db, engine: engine, tokens: tokens}
}

func (h *adminHarness) addUser(t *testing.T, userID string, operator bool) string {
	t.Helper()
	user := authdomain.User{
		ID:         snowflake.ID(time.Now().UnixNano()),
		UserID:     userID,
		Email:      userID + "@example.com",
		IsOperator: operator,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := h.db.Create(&user).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	signed, err := h.tokens.Issue(userID, user.Email, "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return signed
}

func (h *adminHarness) request(method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesRejectNonOperators(t *testing.T) {
	h := setupAdminHarness(t)
	userToken := h.addUser(t, "u1", false)

	routes := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/admin/licenses", `{"user_id":"u1","plan_tier":"pro"}`},
		{http.MethodGet, "/admin/stats", ""},
		{http.MethodGet, "/admin/audit-logs", ""},
	}
	for _, route := range routes {
		rec := h.request(route.method, route.path, userToken, route.body)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s with non-operator token: status %d, want 403",
				route.method, route.path, rec.Code)
		}
		rec = h.request(route.method, route.path, "", route.body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: status %d, want 401",
				route.method, route.path, rec.Code)
		}
	}
}

func TestProvisionLicenseRequiresOperatorFlag(t *testing.T) {
	h := setupAdminHarness(t)
	userToken := h.addUser(t, "u1", false)

	rec := h.request(http.MethodPost, "/admin/licenses", userToken,
		`{"user_id":"u1","plan_tier":"pro"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var count int64
	if err := h.db.Model(&licensedomain.License{}).Count(&count).Error; err != nil {
		t.Fatalf("count licenses: %v", err)
	}
	if count != 0 {
		t.Fatalf("license row created through rejected request")
	}
}

func TestProvisionLicenseAsOperator(t *testing.T) {
	h := setupAdminHarness(t)
	opToken := h.addUser(t, "op", true)

	rec := h.request(http.MethodPost, "/admin/licenses", opToken,
		`{"user_id":"u2","email":"u2@example.com","plan_tier":"pro"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var license licensedomain.License
	if err := h.db.Where("user_id = ?", "u2").First(&license).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if license.PlanTier != licensedomain.PlanPro || license.NotesLimit != 500 {
		t.Fatalf("tier/limit = %s/%d, want pro/500", license.PlanTier, license.NotesLimit)
	}
	if license.Status != licensedomain.BillingStatusActive {
		t.Fatalf("status = %q, want active", license.Status)
	}
}

func TestProvisionLicenseRefreshKeepsBillingState(t *testing.T) {
	h := setupAdminHarness(t)
	opToken := h.addUser(t, "op", true)

	periodStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.Add(30 * 24 * time.Hour)
	existing := licensedomain.License{
		ID:          1,
		UserID:      "u2",
		Email:       "u2@example.com",
		PlanTier:    licensedomain.PlanStarter,
		Status:      licensedomain.BillingStatusCanceled,
		NotesLimit:  100,
		NotesUsed:   100,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	if err := h.db.Create(&existing).Error; err != nil {
		t.Fatalf("insert license: %v", err)
	}

	rec := h.request(http.MethodPost, "/admin/licenses", opToken,
		`{"user_id":"u2","plan_tier":"pro"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var license licensedomain.License
	if err := h.db.Where("user_id = ?", "u2").First(&license).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if license.PlanTier != licensedomain.PlanPro || license.NotesLimit != 500 {
		t.Fatalf("tier/limit = %s/%d, want pro/500", license.PlanTier, license.NotesLimit)
	}
	if license.Status != licensedomain.BillingStatusCanceled {
		t.Fatalf("status = %q, refresh must not reactivate", license.Status)
	}
	if license.NotesUsed != 100 {
		t.Fatalf("notes_used = %d, refresh must not reset usage", license.NotesUsed)
	}
	if !license.PeriodStart.Equal(periodStart) || !license.PeriodEnd.Equal(periodEnd) {
		t.Fatalf("period moved to %v..%v", license.PeriodStart, license.PeriodEnd)
	}
}
