package core

import "time"

// AppendRecord describes one successful append. It is journalled locally and
// published as an event so identifier collisions can be detected after the fact.
type AppendRecord struct {
	EventID    string    `json:"event_id"`
	DocumentID string    `json:"document_id"`
	Region     string    `json:"region"`
	EntryID    int       `json:"entry_id"`
	SessionID  string    `json:"session_id,omitempty"`
	AppendedAt time.Time `json:"appended_at"`
}

// RecordOutcome reports what the journal did with an AppendRecord.
type RecordOutcome struct {
	// Inserted is false when the event id was already journalled.
	Inserted bool
	// Duplicate is true when another event already holds the same document, region and entry id.
	Duplicate bool
}
