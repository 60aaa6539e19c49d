package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	notedomain "github.com/connorodea/aidentalnotes/internal/note/domain"
	quotadomain "github.com/connorodea/aidentalnotes/internal/quota/domain"
)

type fakeGate struct {
	decision quotadomain.Decision
	err      error
	calls    int
}

func (g *fakeGate) Admit(ctx context.Context, userID string) (quotadomain.Decision, error) {
	g.calls++
	return g.decision, g.err
}

type fakeTranscriber struct {
	transcript notedomain.Transcript
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req notedomain.TranscriptionRequest) (notedomain.Transcript, error) {
	f.calls++
	return f.transcript, f.err
}

type fakeGenerator struct {
	note  string
	err   error
	calls int
	input string
}

func (f *fakeGenerator) GenerateNote(ctx context.Context, input string, patientContext string) (string, error) {
	f.calls++
	f.input = input
	return f.note, f.err
}

func newNoteService(t *testing.T, gate *fakeGate, transcriber *fakeTranscriber, generator *fakeGenerator) notedomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return NewService(Params{
		Log:         zap.NewNop(),
		GenID:       node,
		Gate:        gate,
		Transcriber: transcriber,
		Generator:   generator,
	})
}

func TestGenerateTextNote(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{Admitted: true, NotesUsed: 51, NotesLimit: 100}}
	generator := &fakeGenerator{note: "S: Patient reports pain in tooth #14.\nPlan: D2740 crown."}
	svc := newNoteService(t, gate, &fakeTranscriber{}, generator)

	result, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:   "u1",
		Modality: notedomain.ModalityText,
		Text:     "pt c/o pain UL, #14 fractured cusp",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.NoteID == "" || result.SOAPNote == "" {
		t.Fatalf("result = %+v", result)
	}
	if result.NotesUsed != 51 || result.NotesLimit != 100 {
		t.Fatalf("usage = %d/%d, want 51/100", result.NotesUsed, result.NotesLimit)
	}
	if gate.calls != 1 || generator.calls != 1 {
		t.Fatalf("gate/generator calls = %d/%d", gate.calls, generator.calls)
	}
	if len(result.Keywords) == 0 {
		t.Fatal("expected extracted keywords")
	}
}

func TestGenerateDeniedQuotaSkipsProviders(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{
		Admitted:   false,
		Reason:     licensedomain.DenyQuotaExceeded,
		NotesUsed:  100,
		NotesLimit: 100,
	}}
	transcriber := &fakeTranscriber{}
	generator := &fakeGenerator{}
	svc := newNoteService(t, gate, transcriber, generator)

	_, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:   "u1",
		Modality: notedomain.ModalityText,
		Text:     "exam notes",
	})
	if !errors.Is(err, notedomain.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if transcriber.calls != 0 || generator.calls != 0 {
		t.Fatal("denied request reached a provider")
	}
}

func TestGenerateDeniedInactiveSubscription(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{
		Admitted: false,
		Reason:   licensedomain.DenySubscriptionInactive,
	}}
	svc := newNoteService(t, gate, &fakeTranscriber{}, &fakeGenerator{})

	_, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:   "u1",
		Modality: notedomain.ModalityText,
		Text:     "exam notes",
	})
	if !errors.Is(err, notedomain.ErrSubscriptionInactive) {
		t.Fatalf("expected inactive subscription, got %v", err)
	}
}

func TestGenerateAudioNote(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{Admitted: true, NotesUsed: 1, NotesLimit: 100}}
	transcriber := &fakeTranscriber{transcript: notedomain.Transcript{Text: "patient reports sensitivity"}}
	generator := &fakeGenerator{note: "S: sensitivity."}
	svc := newNoteService(t, gate, transcriber, generator)

	result, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:      "u1",
		Modality:    notedomain.ModalityAudio,
		Audio:       []byte{0x52, 0x49, 0x46, 0x46},
		Filename:    "visit.wav",
		ContentType: "audio/wav",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if transcriber.calls != 1 {
		t.Fatalf("transcriber calls = %d", transcriber.calls)
	}
	if result.SOAPNote != "S: sensitivity." {
		t.Fatalf("note = %q", result.SOAPNote)
	}
}

func TestGenerateRejectsUnsupportedAudioType(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{Admitted: true}}
	svc := newNoteService(t, gate, &fakeTranscriber{}, &fakeGenerator{})

	_, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:      "u1",
		Modality:    notedomain.ModalityAudio,
		Audio:       []byte{1},
		ContentType: "video/mp4",
	})
	if !errors.Is(err, notedomain.ErrUnsupportedAudioType) {
		t.Fatalf("expected unsupported audio type, got %v", err)
	}
	if gate.calls != 0 {
		t.Fatal("invalid request consumed quota")
	}
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{Admitted: true}}
	svc := newNoteService(t, gate, &fakeTranscriber{}, &fakeGenerator{})

	_, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:   "u1",
		Modality: notedomain.ModalityText,
		Text:     "   ",
	})
	if !errors.Is(err, notedomain.ErrEmptyInput) {
		t.Fatalf("expected empty input, got %v", err)
	}
	if gate.calls != 0 {
		t.Fatal("invalid request consumed quota")
	}
}

func TestGenerateProviderFailureAfterAdmission(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{Admitted: true, NotesUsed: 2, NotesLimit: 100}}
	generator := &fakeGenerator{err: errors.New("upstream timeout")}
	svc := newNoteService(t, gate, &fakeTranscriber{}, generator)

	_, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:   "u1",
		Modality: notedomain.ModalityText,
		Text:     "exam notes",
	})
	if !errors.Is(err, notedomain.ErrGenerationFailed) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	// Quota was consumed on admission; there is no refund path.
	if gate.calls != 1 {
		t.Fatalf("gate calls = %d", gate.calls)
	}
}

func TestGenerateTranscriptionFailure(t *testing.T) {
	gate := &fakeGate{decision: quotadomain.Decision{Admitted: true}}
	transcriber := &fakeTranscriber{err: errors.New("provider down")}
	generator := &fakeGenerator{}
	svc := newNoteService(t, gate, transcriber, generator)

	_, err := svc.Generate(context.Background(), notedomain.GenerateRequest{
		UserID:      "u1",
		Modality:    notedomain.ModalityAudio,
		Audio:       []byte{1},
		ContentType: "audio/wav",
	})
	if !errors.Is(err, notedomain.ErrTranscriptionFailed) {
		t.Fatalf("expected transcription failure, got %v", err)
	}
	if generator.calls != 0 {
		t.Fatal("generator called after failed transcription")
	}
}
