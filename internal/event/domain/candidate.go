package domain

import "time"

// CandidateEmail is a fetched message that is a potential event source.
// It lives only for the duration of one pipeline run and is never
// persisted.
type CandidateEmail struct {
	MessageID  string    `json:"message_id"`
	Subject    string    `json:"subject"`
	BodyText   string    `json:"body_text"`
	ReceivedAt time.Time `json:"received_at"`
}

// ProposedEvent is a structured candidate returned by the extraction
// stage. It always passes through the materializer's dedup check before
// becoming an Event.
type ProposedEvent struct {
	SourceMessageID string     `json:"source_message_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Location        string     `json:"location,omitempty"`
	Link            string     `json:"link,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}
