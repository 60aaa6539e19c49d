// Package domain defines the note-generation pipeline contracts.
package domain

import (
	"context"
	"errors"
)

// Input modalities for a note-generation request.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

var (
	ErrEmptyInput           = errors.New("empty_input")
	ErrUnsupportedAudioType = errors.New("unsupported_audio_type")
	ErrQuotaExceeded        = errors.New("quota_exceeded")
	ErrSubscriptionInactive = errors.New("subscription_inactive")
	ErrTranscriptionFailed  = errors.New("transcription_failed")
	ErrGenerationFailed     = errors.New("generation_failed")
)

// TranscriptionRequest carries one audio payload to a speech-to-text
// provider.
type TranscriptionRequest struct {
	Audio       []byte
	Filename    string
	ContentType string
	Diarize     bool
}

// Transcript is the provider's text output. Speakers is populated only when
// diarization was requested and supported.
type Transcript struct {
	Text     string
	Speakers map[string]string
}

// Transcriber converts recorded audio into text. Implementations wrap an
// external speech-to-text provider and are treated as opaque.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (Transcript, error)
}

// Generator converts clinician text into a SOAP-formatted note.
// Implementations wrap an external LLM provider and are treated as opaque.
type Generator interface {
	GenerateNote(ctx context.Context, input string, patientContext string) (string, error)
}

// GenerateRequest is one note-generation call from an authenticated account.
type GenerateRequest struct {
	UserID         string
	Modality       string
	Text           string
	Audio          []byte
	Filename       string
	ContentType    string
	Diarize        bool
	PatientContext string
}

// GenerateResult carries the SOAP note and the post-admission usage state.
type GenerateResult struct {
	NoteID     string   `json:"note_id"`
	SOAPNote   string   `json:"soap_note"`
	Keywords   []string `json:"keywords,omitempty"`
	NotesUsed  int      `json:"notes_used"`
	NotesLimit int      `json:"notes_limit"`
}

// Service runs the admission-gated generation pipeline.
type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
