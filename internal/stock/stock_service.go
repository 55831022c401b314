package stock

import (
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"

	"toolroom/internal/events"
	"toolroom/internal/repository"
	"toolroom/pkg/apperrors"
	"toolroom/pkg/auditlog"
	"toolroom/pkg/metadata"
	"toolroom/pkg/models"
)

type LedgerStore interface {
	GetEquipmentTx(tx *goqu.TxDatabase, id int) (*models.EquipmentItem, error)
	ResolveByNameOrCodeTx(tx *goqu.TxDatabase, name, code string) (*models.EquipmentItem, error)
	PersistEquipmentTx(tx *goqu.TxDatabase, item *models.EquipmentItem) error
	ApplyRestock(tx *goqu.TxDatabase, id, delta int) error
}

type HistoryStore interface {
	InsertHistoryTx(tx *goqu.TxDatabase, entry *models.StockHistoryEntry) error
	ListHistory(equipmentID int) ([]models.StockHistoryEntry, error)
}

type StockService struct {
	runner   repository.TxRunner
	ledger   LedgerStore
	history  HistoryStore
	auditLog *auditlog.Auditlog
	bus      *events.Bus
	log      *zap.Logger
}

func NewStockService(
	runner repository.TxRunner,
	ledger LedgerStore,
	history HistoryStore,
	auditLog *auditlog.Auditlog,
	bus *events.Bus,
	log *zap.Logger,
) *StockService {
	return &StockService{
		runner:   runner,
		ledger:   ledger,
		history:  history,
		auditLog: auditLog,
		bus:      bus,
		log:      log,
	}
}

// Restock raises both the total and the available quantity and appends one
// stock history entry, in a single transaction.
func (s *StockService) Restock(equipmentID, delta int, note string) (*models.StockHistoryEntry, error) {
	if delta <= 0 {
		return nil, apperrors.NewValidation("restock delta must be positive")
	}

	var entry *models.StockHistoryEntry

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		item, err := s.ledger.GetEquipmentTx(tx, equipmentID)
		if err != nil {
			return err
		}

		if err := s.ledger.ApplyRestock(tx, equipmentID, delta); err != nil {
			return err
		}

		entry = &models.StockHistoryEntry{
			EquipmentID:      equipmentID,
			Delta:            delta,
			PreviousQuantity: item.Quantity,
			NewQuantity:      item.Quantity + delta,
			Note:             note,
			CreatedAt:        time.Now(),
		}
		return s.history.InsertHistoryTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log(
		"restock",
		map[string]interface{}{
			"delta":             entry.Delta,
			"previous_quantity": entry.PreviousQuantity,
			"new_quantity":      entry.NewQuantity,
			"note":              note,
		},
		entry,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(equipmentID))

	return entry, nil
}

// BulkAdjust processes import/restock rows handed over by the CSV
// collaborator. Every row runs in its own transaction; a bad row is reported
// and never blocks the rest. Import mode creates items for unmatched rows,
// restock mode reports them as skipped.
func (s *StockService) BulkAdjust(rows []models.AdjustmentRow, mode models.AdjustmentMode) []models.RowResult {
	results := make([]models.RowResult, 0, len(rows))

	for i, row := range rows {
		result := models.RowResult{Row: i + 1, Name: row.Name}

		outcome, message, err := s.adjustRow(row, mode)
		if err != nil {
			result.Outcome = models.RowOutcomeError
			result.Message = err.Error()
		} else {
			result.Outcome = outcome
			result.Message = message
		}

		results = append(results, result)
	}

	return results
}

func (s *StockService) adjustRow(row models.AdjustmentRow, mode models.AdjustmentMode) (string, string, error) {
	if row.Quantity <= 0 {
		return "", "", apperrors.NewValidation("quantity must be positive")
	}

	var outcome, message string
	var changedID int

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		item, err := s.ledger.ResolveByNameOrCodeTx(tx, row.Name, row.Code)
		if err != nil {
			if !apperrors.IsNotFound(err) {
				return err
			}
			if mode == models.ModeRestock {
				outcome = models.RowOutcomeSkip
				message = "no matching equipment"
				return nil
			}
			return s.importRow(tx, row, &outcome, &message, &changedID)
		}

		if err := s.ledger.ApplyRestock(tx, item.ID, row.Quantity); err != nil {
			return err
		}

		entry := &models.StockHistoryEntry{
			EquipmentID:      item.ID,
			Delta:            row.Quantity,
			PreviousQuantity: item.Quantity,
			NewQuantity:      item.Quantity + row.Quantity,
			Note:             fmt.Sprintf("bulk %s", mode),
			CreatedAt:        time.Now(),
		}
		if err := s.history.InsertHistoryTx(tx, entry); err != nil {
			return err
		}

		outcome = models.RowOutcomeSuccess
		message = fmt.Sprintf("restocked %d units", row.Quantity)
		changedID = item.ID
		return nil
	})
	if err != nil {
		return "", "", err
	}

	if changedID != 0 {
		s.bus.Publish(events.EquipmentChanged, strconv.Itoa(changedID))
	}

	return outcome, message, nil
}

func (s *StockService) importRow(tx *goqu.TxDatabase, row models.AdjustmentRow, outcome, message *string, changedID *int) error {
	kind := models.EquipmentKind(row.Kind)
	if row.Kind == "" {
		kind = models.KindBorrowable
	}
	if !kind.IsValid() {
		return apperrors.NewValidation("invalid equipment type: %s", row.Kind)
	}

	item := &models.EquipmentItem{
		Name:              row.Name,
		Kind:              kind,
		Quantity:          row.Quantity,
		AvailableQuantity: row.Quantity,
		MinStock:          row.MinStock,
		Unit:              row.Unit,
		Category:          row.Category,
		Location:          row.Location,
		Description:       row.Description,
		LifecycleState:    metadata.LifecycleOperational,
	}
	if row.Code != "" {
		item.Code = &row.Code
	}

	if err := s.ledger.PersistEquipmentTx(tx, item); err != nil {
		return err
	}

	entry := &models.StockHistoryEntry{
		EquipmentID:      item.ID,
		Delta:            row.Quantity,
		PreviousQuantity: 0,
		NewQuantity:      row.Quantity,
		Note:             "imported",
		CreatedAt:        time.Now(),
	}
	if err := s.history.InsertHistoryTx(tx, entry); err != nil {
		return err
	}

	*outcome = models.RowOutcomeSuccess
	*message = fmt.Sprintf("created with %d units", row.Quantity)
	*changedID = item.ID
	return nil
}

func (s *StockService) History(equipmentID int) ([]models.StockHistoryEntry, error) {
	return s.history.ListHistory(equipmentID)
}
