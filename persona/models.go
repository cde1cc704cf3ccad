package persona

import "time"

// Persona is an automated identity that posts machine-generated replies under
// a fixed display name and trade.
type Persona struct {
	ID             string
	Name           string
	Handle         string
	Trade          string
	BadgeLabel     string
	BadgeColor     string
	Active         bool
	LastActivityAt *time.Time
	CreatedAt      time.Time
}

// CreateParams enumerates the fields required to register a new persona.
type CreateParams struct {
	Name       string
	Handle     string
	Trade      string
	BadgeLabel string
	BadgeColor string
}
