package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/jopa/salestracker/internal/config"
)

// Repository is the spreadsheet surface the KPI export writes through.
type Repository interface {
	AppendRow(ctx context.Context, sheetRange string, row []interface{}) error
	ReportIDs(ctx context.Context, sheetRange string) ([]string, error)
}

// GoogleSheetRepository implements Repository using the Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository authenticates with the service account file in cfg
// unless opts supply their own credentials or endpoint.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id must not be empty")
	}
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsPath),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		}
	}

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendRow adds row below the existing data in sheetRange. Cells are stored
// as given so report titles are never parsed as formulas.
func (r *GoogleSheetRepository) AppendRow(ctx context.Context, sheetRange string, row []interface{}) error {
	if sheetRange == "" {
		return errors.New("sheet range must not be empty")
	}

	_, err := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, &sheetsapi.ValueRange{
		Values: [][]interface{}{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append kpi row into %s: %w", sheetRange, err)
	}

	r.logger.Debug("kpi row appended", zap.String("range", sheetRange))
	return nil
}

// ReportIDs returns the first column of sheetRange, where the export keeps
// report ids.
func (r *GoogleSheetRepository) ReportIDs(ctx context.Context, sheetRange string) ([]string, error) {
	idRange, err := firstColumn(sheetRange)
	if err != nil {
		return nil, err
	}

	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, idRange).
		MajorDimension("COLUMNS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read report ids from %s: %w", idRange, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		ids = append(ids, fmt.Sprint(cell))
	}
	return ids, nil
}

// firstColumn narrows an A1 range such as "DailyReports!A2:I" to "DailyReports!A:A".
func firstColumn(sheetRange string) (string, error) {
	sheet, cells, found := strings.Cut(sheetRange, "!")
	if !found {
		sheet, cells = "", sheetRange
	}

	col := strings.TrimRightFunc(strings.SplitN(cells, ":", 2)[0], func(r rune) bool {
		return r >= '0' && r <= '9'
	})
	if col == "" || strings.TrimFunc(col, func(r rune) bool { return r >= 'A' && r <= 'Z' }) != "" {
		return "", fmt.Errorf("sheet range %q has no leading column", sheetRange)
	}

	if sheet == "" {
		return col + ":" + col, nil
	}
	return sheet + "!" + col + ":" + col, nil
}
