// Package sheets stores the ledger in a Google Sheets spreadsheet, one
// ticket per row in columns A:C of a named sheet.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"qms/ticket-queue/internal/ledger"
)

const (
	DefaultSheetName = "Queue"

	// ValueInputRaw stores cells verbatim so timestamps read back unchanged.
	ValueInputRaw         = "RAW"
	ValueInputUserEntered = "USER_ENTERED"
)

type Options struct {
	SpreadsheetID    string
	SheetName        string
	ValueInputOption string
}

// Ledger reads and writes ticket rows through the Sheets values API.
type Ledger struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetName     string
	valueInput    string
}

// Connect authenticates with the service account credentials and returns a
// ledger bound to the configured spreadsheet.
func Connect(ctx context.Context, creds Credentials, opts Options) (*Ledger, error) {
	cfg, err := newJWTConfig(creds)
	if err != nil {
		return nil, errors.Trace(err)
	}
	svc, err := sheets.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx)))
	if err != nil {
		return nil, errors.Annotate(err, "creating sheets client")
	}
	return New(svc, opts)
}

func New(svc *sheets.Service, opts Options) (*Ledger, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.NotValidf("empty spreadsheet id")
	}
	name := strings.TrimSpace(opts.SheetName)
	if name == "" {
		name = DefaultSheetName
	}
	input := opts.ValueInputOption
	if input == "" {
		input = ValueInputRaw
	}
	return &Ledger{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     name,
		valueInput:    input,
	}, nil
}

func (l *Ledger) ReadRows(ctx context.Context) ([]ledger.Row, error) {
	resp, err := l.values.Get(l.spreadsheetID, l.tableRange()).Context(ctx).Do()
	if err != nil {
		return nil, l.failure("read", err)
	}
	start := startRow(resp.Range)
	rows := make([]ledger.Row, 0, len(resp.Values))
	for i, cells := range resp.Values {
		row := ledger.Row{Position: start + i}
		for c := 0; c < ledger.Width && c < len(cells); c++ {
			row.Values[c] = cellString(cells[c])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (l *Ledger) AppendRows(ctx context.Context, rows []ledger.Row) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, []interface{}{row.Values[0], row.Values[1], row.Values[2]})
	}
	_, err := l.values.Append(l.spreadsheetID, l.tableRange(), &sheets.ValueRange{Values: values}).
		ValueInputOption(l.valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return l.failure("append", err)
	}
	return nil
}

func (l *Ledger) UpdateCell(ctx context.Context, position int, column ledger.Column, value string) error {
	if err := ledger.ValidateCell(position, column); err != nil {
		return err
	}
	rng := cellRange(l.sheetName, column, position)
	_, err := l.values.Update(l.spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{{value}}}).
		ValueInputOption(l.valueInput).
		Context(ctx).
		Do()
	if err != nil {
		return l.failure("update "+rng, err)
	}
	return nil
}

func (l *Ledger) tableRange() string {
	return fmt.Sprintf("%s!%s:%s", quoteSheetName(l.sheetName), ledger.ColumnQueue.Letter(), ledger.ColumnStatus.Letter())
}

func (l *Ledger) failure(op string, err error) error {
	if IsAuthorisationFailure(err) {
		err = errors.Annotate(err, "service account rejected")
	}
	return ledger.Unavailable(op, errors.Annotatef(err, "spreadsheet %s", l.spreadsheetID))
}

func cellRange(sheetName string, column ledger.Column, position int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheetName(sheetName), column.Letter(), position)
}

// quoteSheetName applies A1 quoting to names that are not plain identifiers.
func quoteSheetName(name string) string {
	plain := name != ""
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// startRow extracts the first row number from a returned A1 range such as
// "Queue!A1:C10". The API omits leading empty rows from the range, so the
// offset matters for UpdateCell.
func startRow(rng string) int {
	if idx := strings.LastIndex(rng, "!"); idx >= 0 {
		rng = rng[idx+1:]
	}
	if idx := strings.Index(rng, ":"); idx >= 0 {
		rng = rng[:idx]
	}
	digits := strings.TrimLeft(rng, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz$")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
