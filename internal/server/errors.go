package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/connorodea/aidentalnotes/internal/auth/token"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	notedomain "github.com/connorodea/aidentalnotes/internal/note/domain"
	quotadomain "github.com/connorodea/aidentalnotes/internal/quota/domain"
	webhookdomain "github.com/connorodea/aidentalnotes/internal/webhook/domain"
)

// apiError is the wire shape for any failed request.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Message }

var (
	ErrUnauthorized = &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "unauthorized"}
	ErrForbidden    = &apiError{Status: http.StatusForbidden, Code: "forbidden", Message: "forbidden"}
	ErrNotFound     = &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "not found"}
	ErrTooMany      = &apiError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}

	ErrServiceUnavailable = &apiError{Status: http.StatusServiceUnavailable, Code: "service_unavailable", Message: "service unavailable"}
)

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request"}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError translates domain errors into HTTP responses. Unmapped
// errors are reported as a 500 without leaking their message.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	api = mapDomainError(err)
	c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
}

func mapDomainError(err error) *apiError {
	switch {
	case errors.Is(err, token.ErrMissingToken),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrTokenExpired):
		return &apiError{Status: http.StatusUnauthorized, Code: codeFor(err, "unauthorized"), Message: "unauthorized"}

	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return &apiError{Status: http.StatusUnauthorized, Code: "invalid_signature", Message: "invalid signature"}
	case errors.Is(err, webhookdomain.ErrInvalidProvider),
		errors.Is(err, webhookdomain.ErrProviderNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "unknown_provider", Message: "unknown provider"}
	case errors.Is(err, webhookdomain.ErrInvalidPayload),
		errors.Is(err, webhookdomain.ErrInvalidEvent):
		return &apiError{Status: http.StatusBadRequest, Code: codeFor(err, "invalid_payload"), Message: "invalid payload"}
	case errors.Is(err, webhookdomain.ErrUnknownAccount):
		return &apiError{Status: http.StatusBadRequest, Code: "unknown_account", Message: "no license matches the subscription"}

	case errors.Is(err, licensedomain.ErrLicenseNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "license_not_found", Message: "no license for this account"}
	case errors.Is(err, licensedomain.ErrInvalidUser),
		errors.Is(err, licensedomain.ErrInvalidTier),
		errors.Is(err, licensedomain.ErrInvalidStatus),
		errors.Is(err, quotadomain.ErrInvalidUser):
		return &apiError{Status: http.StatusBadRequest, Code: codeFor(err, "invalid_request"), Message: "invalid request"}

	case errors.Is(err, notedomain.ErrQuotaExceeded):
		return &apiError{Status: http.StatusForbidden, Code: "quota_exceeded", Message: "monthly note limit reached"}
	case errors.Is(err, notedomain.ErrSubscriptionInactive):
		return &apiError{Status: http.StatusForbidden, Code: "subscription_inactive", Message: "subscription is not active"}
	case errors.Is(err, notedomain.ErrEmptyInput):
		return &apiError{Status: http.StatusBadRequest, Code: "empty_input", Message: "input text is required"}
	case errors.Is(err, notedomain.ErrUnsupportedAudioType):
		return &apiError{Status: http.StatusBadRequest, Code: "unsupported_audio_type", Message: "unsupported audio content type"}
	case errors.Is(err, notedomain.ErrTranscriptionFailed):
		return &apiError{Status: http.StatusBadGateway, Code: "transcription_failed", Message: "transcription failed"}
	case errors.Is(err, notedomain.ErrGenerationFailed):
		return &apiError{Status: http.StatusBadGateway, Code: "generation_failed", Message: "note generation failed"}
	}

	return &apiError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal error"}
}

func codeFor(err error, fallback string) string {
	for unwrapped := err; unwrapped != nil; unwrapped = errors.Unwrap(unwrapped) {
		err = unwrapped
	}
	code := strings.TrimSpace(err.Error())
	if code == "" || strings.ContainsAny(code, " \t") {
		return fallback
	}
	return code
}

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	if endOfDay {
		utc = utc.Add(24*time.Hour - time.Nanosecond)
	}
	return &utc, nil
}
