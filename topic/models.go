package topic

import "time"

// Topic is a scored, sourced discussion prompt awaiting human use.
type Topic struct {
	ID              string
	Source          string
	Content         string
	EngagementScore int
	Consumed        bool
	CreatedAt       time.Time
}

// NewTopic enumerates the fields required to insert a sourced topic.
type NewTopic struct {
	Source          string
	Content         string
	EngagementScore int
}

// RefreshSummary is returned by a sourcing run for operator visibility.
type RefreshSummary struct {
	Inserted   int    `json:"inserted"`
	Expired    int64  `json:"expired"`
	TopExample string `json:"top_example,omitempty"`
}
