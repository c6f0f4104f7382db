package transform

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/nalgeon/be"

	"github.com/joshsymonds/inboxsheet/internal/gmail"
)

func leaf(mimeType, data string) *gmail.Part {
	return &gmail.Part{MimeType: mimeType, Data: []byte(data)}
}

func multipart(mimeType string, parts ...*gmail.Part) *gmail.Part {
	return &gmail.Part{MimeType: mimeType, Parts: parts}
}

func TestHeaderLookup(t *testing.T) {
	headers := []gmail.Header{
		{Name: "from", Value: "alice@example.com"},
		{Name: "FROM", Value: "ignored@example.com"},
		{Name: "Subject", Value: "Hello"},
	}
	be.Equal(t, Header(headers, "From"), "alice@example.com")
	be.Equal(t, Header(headers, "subject"), "Hello")
	be.Equal(t, Header(headers, "Date"), "")
	be.Equal(t, Header(nil, "From"), "")
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		internal string
		raw      string
		want     string
	}{
		{name: "epoch", internal: "1700000000123", raw: "Tue, 14 Nov 2023", want: "2023-11-14T22:13:20.123Z"},
		{name: "missing", internal: "", raw: "Tue, 14 Nov 2023 22:13:20 +0000", want: "Tue, 14 Nov 2023 22:13:20 +0000"},
		{name: "unparseable", internal: "soon", raw: "raw-date", want: "raw-date"},
		{name: "both-missing", internal: "", raw: "", want: ""},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			be.Equal(t, Timestamp(tc.internal, tc.raw), tc.want)
		})
	}
}

func TestBodyTextPriority(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.Part
		want    string
	}{
		{
			name:    "nil",
			payload: nil,
			want:    "",
		},
		{
			name:    "direct-body",
			payload: leaf("text/plain", "direct"),
			want:    "direct",
		},
		{
			name:    "direct-html-body",
			payload: leaf("text/html; charset=UTF-8", "<p>hi <b>there</b></p>"),
			want:    "hi there",
		},
		{
			name: "plain-preferred-over-earlier-html",
			payload: multipart("multipart/alternative",
				leaf("text/html", "<p>html</p>"),
				leaf("text/plain", "plain"),
			),
			want: "plain",
		},
		{
			name: "html-fallback",
			payload: multipart("multipart/alternative",
				leaf("text/html", "<div>one</div><div>two</div>"),
			),
			want: "one\ntwo",
		},
		{
			name: "nested-multipart",
			payload: multipart("multipart/mixed",
				leaf("application/pdf", "%PDF"),
				multipart("multipart/related",
					multipart("multipart/alternative",
						leaf("text/plain", "deep plain"),
						leaf("text/html", "<p>deep html</p>"),
					),
				),
			),
			want: "deep plain",
		},
		{
			name: "empty-leaves-skipped",
			payload: multipart("multipart/alternative",
				leaf("text/plain", ""),
				leaf("text/html", "<p>only html</p>"),
			),
			want: "only html",
		},
		{
			name: "no-text",
			payload: multipart("multipart/mixed",
				leaf("image/png", "png"),
			),
			want: "",
		},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			be.Equal(t, BodyText(tc.payload), tc.want)
		})
	}
}

func TestHTMLToText(t *testing.T) {
	src := `<html><head><title>T</title><style>p{}</style></head>` +
		`<body><p>Hello   <b>World</b></p><script>track()</script>line<br>break<p>Bye</p></body></html>`
	be.Equal(t, HTMLToText(src), "Hello World\nline\nbreak\nBye")
}

func TestHTMLToTextTablesAndDefinitions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "cells",
			src:  "<table><tr><td>Total</td><td>$42.00</td></tr><tr><th>Item</th><th>Qty</th></tr></table>",
			want: "Total $42.00\nItem Qty",
		},
		{
			name: "nested markup in cells",
			src:  "<table><tr><td><b>Order</b></td><td><span>#1234</span></td></tr></table>",
			want: "Order #1234",
		},
		{
			name: "definition list",
			src:  "<dl><dt>Amount</dt><dd>$10</dd><dt>Due</dt><dd>Friday</dd></dl>",
			want: "Amount\n$10\nDue\nFriday",
		},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			be.Equal(t, HTMLToText(tc.src), tc.want)
		})
	}
}

func TestHTMLToTextAdjacentBlocks(t *testing.T) {
	src := "<div>\n  <p>first</p>\n\n  <p>second</p>\n</div><ul><li>one</li><li>two</li></ul>"
	be.Equal(t, HTMLToText(src), "first\nsecond\none\ntwo")
}

func TestFromMessage(t *testing.T) {
	msg := gmail.Message{
		ID:           "m1",
		InternalDate: "1700000000000",
		Payload: &gmail.Part{
			MimeType: "multipart/alternative",
			Headers: []gmail.Header{
				{Name: "From", Value: "Bob <bob@example.com>"},
				{Name: "Subject", Value: "Invoice"},
				{Name: "Date", Value: "Tue, 14 Nov 2023 22:13:20 +0000"},
			},
			Parts: []*gmail.Part{leaf("text/plain", "\n  Amount due  \n\n")},
		},
	}
	rec := FromMessage(msg)
	be.Equal(t, rec, Record{
		ID:      "m1",
		From:    "Bob <bob@example.com>",
		Subject: "Invoice",
		Date:    "2023-11-14T22:13:20.000Z",
		Content: "Amount due",
	})

	empty := FromMessage(gmail.Message{ID: "m2"})
	be.Equal(t, empty, Record{ID: "m2"})
}

func TestRowTruncatesContent(t *testing.T) {
	content := strings.Repeat("abcde", 1000)
	rec := Record{ID: "m1", From: "f", Subject: "s", Date: "d", Content: content}
	row := Row(rec, DefaultContentLimit)

	be.Equal(t, utf8.RuneCountInString(row[3]), 1000)
	be.Equal(t, row[3], content[:1000])
	be.Equal(t, row[0], "f")
	be.Equal(t, row[1], "s")
	be.Equal(t, row[2], "d")
	be.Equal(t, row[4], "m1")
	be.Equal(t, len(rec.Content), 5000)

	be.Equal(t, Row(rec, 0)[3], content[:1000])
}

func TestTruncateRunes(t *testing.T) {
	be.Equal(t, Truncate("héllo", 2), "hé")
	be.Equal(t, Truncate("short", 10), "short")
	be.Equal(t, Truncate("abc", 0), "")
	be.Equal(t, Truncate("", 3), "")
}
