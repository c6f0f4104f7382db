// Package transform turns fetched messages into spreadsheet rows.
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/joshsymonds/inboxsheet/internal/gmail"
	"github.com/joshsymonds/inboxsheet/internal/sheets"
)

// DateLayout renders server timestamps as UTC ISO-8601.
const DateLayout = "2006-01-02T15:04:05.000Z"

// DefaultContentLimit caps the body cell, in characters.
const DefaultContentLimit = 1000

// Record is the normalized view of one message.
type Record struct {
	ID      string
	From    string
	Subject string
	Date    string
	Content string
}

// FromMessage extracts a Record. Content is the full trimmed body; it is
// only shortened by Row.
func FromMessage(msg gmail.Message) Record {
	var headers []gmail.Header
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	return Record{
		ID:      string(msg.ID),
		From:    Header(headers, "From"),
		Subject: Header(headers, "Subject"),
		Date:    Timestamp(msg.InternalDate, Header(headers, "Date")),
		Content: strings.TrimSpace(BodyText(msg.Payload)),
	}
}

// Header returns the first header whose name matches case-insensitively.
func Header(headers []gmail.Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Timestamp prefers the server epoch (milliseconds) and falls back to the
// raw Date header when the epoch is missing or not a number.
func Timestamp(internalDate, raw string) string {
	ms, err := strconv.ParseInt(strings.TrimSpace(internalDate), 10, 64)
	if err != nil {
		return raw
	}
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}

// Row lays out rec in sheet column order, truncating content to limit
// characters (DefaultContentLimit when limit is not positive).
func Row(rec Record, limit int) sheets.Row {
	if limit <= 0 {
		limit = DefaultContentLimit
	}
	return sheets.Row{rec.From, rec.Subject, rec.Date, Truncate(rec.Content, limit), rec.ID}
}

// Truncate keeps the first n runes of s.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
