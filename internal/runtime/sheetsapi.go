package runtime

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	sc "github.com/joshsymonds/inboxsheet/internal/sheets"
)

type sheetsClient struct{ svc *sheets.Service }

func NewSheetsAPIClient(svc *sheets.Service) *sheetsClient { return &sheetsClient{svc} }

// AppendRow writes the values verbatim (RAW) as a newly inserted row.
func (s *sheetsClient) AppendRow(ctx context.Context, spreadsheetID, rangeHint string, row sc.Row) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row.Values()}}
	_, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, rangeHint, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// ReadColumn returns the first cell of every row in rangeHint. Empty rows
// are skipped.
func (s *sheetsClient) ReadColumn(ctx context.Context, spreadsheetID, rangeHint string) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rangeHint).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		out = append(out, fmt.Sprint(row[0]))
	}
	return out, nil
}

func (s *sheetsClient) Describe(ctx context.Context, spreadsheetID string) (sc.Spreadsheet, error) {
	resp, err := s.svc.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId", "properties.title", "sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return sc.Spreadsheet{}, err
	}
	out := sc.Spreadsheet{ID: resp.SpreadsheetId}
	if resp.Properties != nil {
		out.Title = resp.Properties.Title
	}
	for _, sh := range resp.Sheets {
		if sh != nil && sh.Properties != nil {
			out.Tabs = append(out.Tabs, sh.Properties.Title)
		}
	}
	return out, nil
}

var _ sc.Client = (*sheetsClient)(nil)
