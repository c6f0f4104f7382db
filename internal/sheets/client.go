// Package sheets describes the spreadsheet row sink.
package sheets

import "context"

// Row is the on-the-wire shape of one ingested message:
// from, subject, date, content, message id.
type Row [5]string

// Values converts the row into the cell slice the Sheets API expects.
func (r Row) Values() []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}

// Spreadsheet is the metadata surfaced by the access probe.
type Spreadsheet struct {
	ID    string
	Title string
	Tabs  []string
}

// Client is the narrow Sheets surface required by inboxsheet.
type Client interface {
	AppendRow(ctx context.Context, spreadsheetID, rangeHint string, row Row) error
	ReadColumn(ctx context.Context, spreadsheetID, rangeHint string) ([]string, error)
	Describe(ctx context.Context, spreadsheetID string) (Spreadsheet, error)
}
