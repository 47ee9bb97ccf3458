package session

import "time"

// EntryKind distinguishes the two feed entry variants.
type EntryKind string

const (
	// EntryChat is a chat message authored by a participant.
	EntryChat EntryKind = "chat"
	// EntryNotice is a synthesized system line derived from join/leave events.
	EntryNotice EntryKind = "notice"
)

// FeedEntry is one displayable unit of the message feed. Entries are kept in
// strict arrival order; there is no reordering by timestamp.
type FeedEntry struct {
	Kind       EntryKind `json:"kind"`
	Author     string    `json:"author,omitempty"`
	AuthorName string    `json:"authorName,omitempty"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// chatPayload is the data of an inbound "message" frame as the chat server
// emits it. Join/leave protocol events arrive on this channel too, tagged by
// the nested action field.
type chatPayload struct {
	Action     string `json:"action,omitempty"`
	Author     string `json:"author,omitempty"`
	AuthorName string `json:"authorName,omitempty"`
	Message    string `json:"message,omitempty"`
	Text       string `json:"text,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// text returns the displayable body, preferring the stored message over the
// raw socket text.
func (p chatPayload) text() string {
	if p.Message != "" {
		return p.Message
	}
	return p.Text
}

// arrivedAt converts the payload's millisecond timestamp, falling back to the
// local clock when absent.
func (p chatPayload) arrivedAt() time.Time {
	if p.Timestamp > 0 {
		return time.UnixMilli(p.Timestamp)
	}
	return time.Now()
}
