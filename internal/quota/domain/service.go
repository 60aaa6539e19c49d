// Package domain defines the admission contract for the quota gate.
package domain

import (
	"context"
	"errors"

	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
)

var (
	ErrInvalidUser = errors.New("invalid_user")
)

// Decision is the outcome of an admission request. A denied decision carries
// the reason surfaced to the caller; it is not an error.
type Decision struct {
	Admitted   bool                     `json:"admitted"`
	Reason     licensedomain.DenyReason `json:"reason,omitempty"`
	NotesUsed  int                      `json:"notes_used"`
	NotesLimit int                      `json:"notes_limit"`
}

// Service admits or denies note-generation requests against the account's
// entitlement. Admission consumes quota; callers must invoke Admit before
// any paid downstream call.
type Service interface {
	Admit(ctx context.Context, userID string) (Decision, error)
}
