package post

import "time"

// TargetPost is a read-only view of an organic post eligible to receive a
// synthetic reply.
type TargetPost struct {
	ID        string
	AuthorID  *string
	Content   string
	Likes     int
	CreatedAt time.Time
}

// Reply is a synthesized reply persisted as an ordinary post flagged
// synthetic, attributed to a persona rather than a real author.
type Reply struct {
	PersonaID     string
	TargetPostID  string
	Content       string
	SourceBatchID string
}
