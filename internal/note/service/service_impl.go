package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/connorodea/aidentalnotes/internal/audit/domain"
	"github.com/connorodea/aidentalnotes/internal/events"
	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	notedomain "github.com/connorodea/aidentalnotes/internal/note/domain"
	"github.com/connorodea/aidentalnotes/internal/note/prompt"
	"github.com/connorodea/aidentalnotes/internal/observability/metrics"
	quotadomain "github.com/connorodea/aidentalnotes/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// supportedAudioTypes lists the upload content types accepted for
// transcription.
var supportedAudioTypes = map[string]struct{}{
	"audio/wav":       {},
	"audio/x-wav":     {},
	"audio/mp3":       {},
	"audio/mpeg":      {},
	"audio/ogg":       {},
	"application/ogg": {},
	"audio/flac":      {},
	"audio/x-m4a":     {},
	"audio/mp4":       {},
}

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Gate        quotadomain.Service
	Transcriber notedomain.Transcriber
	Generator   notedomain.Generator
	AuditSvc    auditdomain.Service
	Outbox      *events.Outbox
	Metrics     *metrics.GateMetrics   `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	gate        quotadomain.Service
	transcriber notedomain.Transcriber
	generator   notedomain.Generator
	auditSvc    auditdomain.Service
	outbox      *events.Outbox
	metrics     *metrics.GateMetrics
}

func NewService(p Params) notedomain.Service {
	return &Service{
		log:         p.Log.Named("note.service"),
		genID:       p.GenID,
		gate:        p.Gate,
		transcriber: p.Transcriber,
		generator:   p.Generator,
		auditSvc:    p.AuditSvc,
		outbox:      p.Outbox,
		metrics:     p.Metrics,
	}
}

// Generate admits the request against the account's quota before any paid
// provider call is made. Quota is consumed on admission: a provider failure
// after admission surfaces as a generation failure without a refund.
func (s *Service) Generate(ctx context.Context, req notedomain.GenerateRequest) (*notedomain.GenerateResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	decision, err := s.gate.Admit(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !decision.Admitted {
		s.audit(ctx, req, "", "denied:"+string(decision.Reason), false)
		switch decision.Reason {
		case licensedomain.DenySubscriptionInactive:
			return nil, notedomain.ErrSubscriptionInactive
		default:
			return nil, notedomain.ErrQuotaExceeded
		}
	}

	noteID := s.genID.Generate().String()

	input := strings.TrimSpace(req.Text)
	if req.Modality == notedomain.ModalityAudio {
		transcript, err := s.transcriber.Transcribe(ctx, notedomain.TranscriptionRequest{
			Audio:       req.Audio,
			Filename:    req.Filename,
			ContentType: req.ContentType,
			Diarize:     req.Diarize,
		})
		if err != nil {
			s.log.Error("transcription failed",
				zap.String("user_id", req.UserID),
				zap.String("note_id", noteID),
				zap.Error(err),
			)
			s.audit(ctx, req, noteID, "failed:transcription", true)
			s.metrics.IncNoteGenerated("transcription_failed")
			return nil, notedomain.ErrTranscriptionFailed
		}
		input = transcript.Text
		if req.Diarize {
			if formatted := prompt.FormatSpeakers(transcript.Speakers); formatted != "" {
				input = formatted
			}
		}
	}

	soapNote, err := s.generator.GenerateNote(ctx, prompt.ComposeInput(input, req.PatientContext), req.PatientContext)
	if err != nil {
		s.log.Error("note generation failed",
			zap.String("user_id", req.UserID),
			zap.String("note_id", noteID),
			zap.Error(err),
		)
		s.audit(ctx, req, noteID, "failed:generation", true)
		s.metrics.IncNoteGenerated("generation_failed")
		return nil, notedomain.ErrGenerationFailed
	}

	s.audit(ctx, req, noteID, "success", true)
	s.metrics.IncNoteGenerated("success")
	if err := s.outbox.Publish(ctx, events.Event{
		UserID:    req.UserID,
		Type:      events.EventNoteGenerated,
		DedupeKey: "note:" + noteID,
		Payload: events.NoteGeneratedPayload{
			NoteID:    noteID,
			UserID:    req.UserID,
			Modality:  req.Modality,
			NotesUsed: decision.NotesUsed,
		}.ToMap(),
	}); err != nil {
		s.log.Warn("outbox publish failed", zap.String("note_id", noteID), zap.Error(err))
	}

	return &notedomain.GenerateResult{
		NoteID:     noteID,
		SOAPNote:   soapNote,
		Keywords:   prompt.ExtractKeywords(soapNote),
		NotesUsed:  decision.NotesUsed,
		NotesLimit: decision.NotesLimit,
	}, nil
}

func validate(req notedomain.GenerateRequest) error {
	switch req.Modality {
	case notedomain.ModalityText:
		if strings.TrimSpace(req.Text) == "" {
			return notedomain.ErrEmptyInput
		}
	case notedomain.ModalityAudio:
		if len(req.Audio) == 0 {
			return notedomain.ErrEmptyInput
		}
		contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
		if _, ok := supportedAudioTypes[contentType]; !ok {
			return notedomain.ErrUnsupportedAudioType
		}
	default:
		return notedomain.ErrEmptyInput
	}
	return nil
}

func (s *Service) audit(ctx context.Context, req notedomain.GenerateRequest, noteID string, outcome string, counted bool) {
	if s.auditSvc == nil {
		return
	}
	metadata := map[string]any{
		"user_id":  req.UserID,
		"modality": req.Modality,
		"outcome":  outcome,
		"counted":  counted,
	}
	var targetID *string
	if noteID != "" {
		targetID = &noteID
	}
	err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), req.UserID, "note.generate", "note", targetID, metadata)
	if err != nil {
		s.log.Warn("audit log write failed", zap.Error(err))
	}
}
