// internal/gmail/types.go
package gmail

type MessageID string
type LabelID string

// LabelUnread is the system label Gmail uses for unread state.
const LabelUnread LabelID = "UNREAD"

type Header struct {
	Name  string
	Value string
}

// Part is one node of a message's MIME tree. Data holds the decoded body
// bytes; the adapter owns the wire encoding.
type Part struct {
	MimeType string
	Headers  []Header
	Data     []byte
	Parts    []*Part
}

// Message is a fully fetched message.
type Message struct {
	ID           MessageID
	InternalDate string // epoch milliseconds as reported by the server; may be empty
	Labels       []LabelID
	Payload      *Part
}

type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}

type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

// MarkRead removes UNREAD, which is how a message is consumed.
func MarkRead() ModifyOps {
	return ModifyOps{RemoveLabels: []LabelID{LabelUnread}}
}

type Query struct {
	Raw string // Gmail query string, already formed (e.g., `in:inbox is:unread`)
}
