package sheets

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"toolroom/internal/usage"
	"toolroom/pkg/models"
)

type UsageSource interface {
	List(filter usage.UsageFilter) ([]models.UsageRecord, error)
}

type HistorySource interface {
	History(equipmentID int) ([]models.StockHistoryEntry, error)
}

// ExportService appends reporting rows to a shared spreadsheet so the
// warehouse crew can read the ledger without a database account.
type ExportService struct {
	sheetsService *sheets.Service
	usage         UsageSource
	history       HistorySource
	log           *zap.Logger
}

func NewExportService(sheetsService *sheets.Service, usage UsageSource, history HistorySource, log *zap.Logger) *ExportService {
	return &ExportService{
		sheetsService: sheetsService,
		usage:         usage,
		history:       history,
		log:           log,
	}
}

type ExportResult struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Rows          int    `json:"rows"`
}

func (s *ExportService) ExportUsage(spreadsheetID string, filter usage.UsageFilter) (*ExportResult, error) {
	records, err := s.usage.List(filter)
	if err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(records)+1)
	rows = append(rows, []interface{}{"id", "equipment_id", "user_id", "kind", "quantity", "status", "requested_at", "return_confirmed_at"})
	for _, record := range records {
		confirmedAt := ""
		if record.ReturnConfirmedAt != nil {
			confirmedAt = record.ReturnConfirmedAt.Format(time.RFC3339)
		}
		rows = append(rows, []interface{}{
			record.ID,
			record.EquipmentID,
			record.UserID,
			string(record.Kind),
			record.Quantity,
			string(record.Status),
			record.RequestedAt.Format(time.RFC3339),
			confirmedAt,
		})
	}

	if err := s.appendRows(spreadsheetID, "Usage!A1", rows); err != nil {
		return nil, err
	}

	s.log.Info("exported usage records to spreadsheet",
		zap.String("spreadsheet_id", spreadsheetID),
		zap.Int("rows", len(records)),
	)

	return &ExportResult{SpreadsheetID: spreadsheetID, Rows: len(records)}, nil
}

func (s *ExportService) ExportStockHistory(spreadsheetID string, equipmentID int) (*ExportResult, error) {
	entries, err := s.history.History(equipmentID)
	if err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(entries)+1)
	rows = append(rows, []interface{}{"id", "equipment_id", "delta", "previous_quantity", "new_quantity", "note", "created_at"})
	for _, entry := range entries {
		rows = append(rows, []interface{}{
			entry.ID,
			entry.EquipmentID,
			entry.Delta,
			entry.PreviousQuantity,
			entry.NewQuantity,
			entry.Note,
			entry.CreatedAt.Format(time.RFC3339),
		})
	}

	if err := s.appendRows(spreadsheetID, "Stock!A1", rows); err != nil {
		return nil, err
	}

	s.log.Info("exported stock history to spreadsheet",
		zap.String("spreadsheet_id", spreadsheetID),
		zap.Int("rows", len(entries)),
	)

	return &ExportResult{SpreadsheetID: spreadsheetID, Rows: len(entries)}, nil
}

func (s *ExportService) appendRows(spreadsheetID, writeRange string, rows [][]interface{}) error {
	body := &sheets.ValueRange{Values: rows}
	_, err := s.sheetsService.Spreadsheets.Values.
		Append(spreadsheetID, writeRange, body).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		return fmt.Errorf("unable to append to spreadsheet: %w", err)
	}
	return nil
}
