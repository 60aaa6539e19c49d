// Package providers holds the pluggable speech-to-text and note-generator
// clients. The production build injects real provider clients here; the
// defaults fail fast so a misconfigured deployment cannot silently burn
// quota against a dead provider.
package providers

import (
	"context"
	"errors"

	notedomain "github.com/connorodea/aidentalnotes/internal/note/domain"
)

var ErrProviderUnconfigured = errors.New("provider_unconfigured")

// UnconfiguredTranscriber rejects every transcription request.
type UnconfiguredTranscriber struct{}

func (UnconfiguredTranscriber) Transcribe(ctx context.Context, req notedomain.TranscriptionRequest) (notedomain.Transcript, error) {
	return notedomain.Transcript{}, ErrProviderUnconfigured
}

// UnconfiguredGenerator rejects every generation request.
type UnconfiguredGenerator struct{}

func (UnconfiguredGenerator) GenerateNote(ctx context.Context, input string, patientContext string) (string, error) {
	return "", ErrProviderUnconfigured
}
