package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	notedomain "github.com/connorodea/aidentalnotes/internal/note/domain"
)

// maxAudioUploadBytes caps one recorded visit upload.
const maxAudioUploadBytes = 25 << 20

type generateNoteRequest struct {
	Text           string `json:"text"`
	PatientContext string `json:"patient_context"`
}

// GenerateNote produces a SOAP note from clinician text.
func (s *Server) GenerateNote(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !s.limiter.Allow(userID) {
		AbortWithError(c, ErrTooMany)
		return
	}

	var req generateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.noteSvc.Generate(c.Request.Context(), notedomain.GenerateRequest{
		UserID:         userID,
		Modality:       notedomain.ModalityText,
		Text:           req.Text,
		PatientContext: strings.TrimSpace(req.PatientContext),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GenerateNoteFromAudio transcribes a recorded visit and produces a SOAP note.
func (s *Server) GenerateNoteFromAudio(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !s.limiter.Allow(userID) {
		AbortWithError(c, ErrTooMany)
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		AbortWithError(c, newValidationError("audio", "required", "audio file is required"))
		return
	}
	if fileHeader.Size > maxAudioUploadBytes {
		AbortWithError(c, newValidationError("audio", "too_large", "audio file exceeds the upload limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUploadBytes+1))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(audio) > maxAudioUploadBytes {
		AbortWithError(c, newValidationError("audio", "too_large", "audio file exceeds the upload limit"))
		return
	}

	contentType := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	diarize := strings.EqualFold(strings.TrimSpace(c.PostForm("diarize")), "true")

	result, err := s.noteSvc.Generate(c.Request.Context(), notedomain.GenerateRequest{
		UserID:         userID,
		Modality:       notedomain.ModalityAudio,
		Audio:          audio,
		Filename:       fileHeader.Filename,
		ContentType:    contentType,
		Diarize:        diarize,
		PatientContext: strings.TrimSpace(c.PostForm("patient_context")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
