package events

// Entitlement event types published through the outbox.
const (
	EventLicenseUpdated = "license.updated"
	EventNoteGenerated  = "note.generated"
)

// NoteGeneratedPayload captures the minimal data consumers need to react to
// a generated note.
type NoteGeneratedPayload struct {
	NoteID    string `json:"note_id"`
	UserID    string `json:"user_id"`
	Modality  string `json:"modality"`
	NotesUsed int    `json:"notes_used"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p NoteGeneratedPayload) ToMap() map[string]any {
	return map[string]any{
		"note_id":    p.NoteID,
		"user_id":    p.UserID,
		"modality":   p.Modality,
		"notes_used": p.NotesUsed,
	}
}
