// Package sheets keeps an append-only audit ledger of alerts in a Google
// spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/farmwatch/internal/config"
	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

const (
	// AlertsRange is the tab and column span holding alert rows.
	AlertsRange = "Alerts!A:H"

	headerRange = "Alerts!A1:H1"
	timeLayout  = "2006-01-02 15:04:05"
)

// ErrEmptyRange is returned when no sheet range is given.
var ErrEmptyRange = errors.New("sheet range must not be empty")

// AlertHeader names the ledger columns in row order.
var AlertHeader = []interface{}{"timestamp", "farm_id", "farm_name", "type", "subtype", "severity", "message", "alert_id"}

// Repository appends rows to a spreadsheet used as an append-only ledger.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// AlertRow renders one alert as a ledger row matching AlertHeader.
func AlertRow(farm models.Farm, alert models.Alert) []interface{} {
	return []interface{}{
		alert.Timestamp.UTC().Format(timeLayout),
		farm.ID,
		farm.Name,
		string(alert.Type),
		alert.Subtype,
		string(alert.Severity),
		alert.Message,
		alert.ID,
	}
}

// Ledger implements Repository on the Google Sheets values API.
type Ledger struct {
	values        *sheetsapi.SpreadsheetsValuesService
	spreadsheetID string
	logger        *zap.Logger
}

// NewLedger authenticates with the service account credentials file and
// returns a ledger bound to the configured spreadsheet.
func NewLedger(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*Ledger, error) {
	return newLedger(ctx, cfg.SpreadsheetID, logger,
		option.WithCredentialsFile(cfg.CredentialsPath),
		option.WithScopes(sheetsapi.SpreadsheetsScope))
}

func newLedger(ctx context.Context, spreadsheetID string, logger *zap.Logger, opts ...option.ClientOption) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id must not be empty")
	}

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &Ledger{
		values:        service.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// EnsureHeader writes AlertHeader into the first row when the tab is empty.
func (l *Ledger) EnsureHeader(ctx context.Context) error {
	existing, err := l.readRange(ctx, headerRange)
	if err != nil {
		return err
	}
	if len(existing) > 0 && len(existing[0]) > 0 {
		return nil
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{AlertHeader}}
	if _, err := l.values.Update(l.spreadsheetID, headerRange, payload).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}

	l.logger.Info("ledger header written", zap.String("range", headerRange))
	return nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (l *Ledger) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return ErrEmptyRange
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}
	if _, err := l.values.Append(l.spreadsheetID, sheetRange, payload).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	l.logger.Debug("ledger row appended", zap.String("range", sheetRange))
	return nil
}

func (l *Ledger) readRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, ErrEmptyRange
	}
	resp, err := l.values.Get(l.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}
	return resp.Values, nil
}
