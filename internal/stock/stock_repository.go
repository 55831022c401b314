package stock

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"toolroom/internal/repository"
	"toolroom/pkg/models"
)

type StockHistoryRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *StockHistoryRepository {
	return &StockHistoryRepository{repository: r}
}

func (r *StockHistoryRepository) InsertHistoryTx(tx *goqu.TxDatabase, entry *models.StockHistoryEntry) error {
	query := tx.Insert("stock_history").
		Rows(goqu.Record{
			"equipment_id":      entry.EquipmentID,
			"delta":             entry.Delta,
			"previous_quantity": entry.PreviousQuantity,
			"new_quantity":      entry.NewQuantity,
			"note":              entry.Note,
		}).
		Returning("id")

	if _, err := query.Executor().ScanVal(&entry.ID); err != nil {
		return fmt.Errorf("failed to insert stock history entry: %w", err)
	}

	return nil
}

func (r *StockHistoryRepository) ListHistory(equipmentID int) ([]models.StockHistoryEntry, error) {
	query := r.repository.GoquDBWrapper.From("stock_history").
		Select("id", "equipment_id", "delta", "previous_quantity", "new_quantity", "note", "created_at").
		Order(goqu.I("created_at").Desc())

	if equipmentID != 0 {
		query = query.Where(goqu.Ex{"equipment_id": equipmentID})
	}

	var entries []models.StockHistoryEntry
	if err := query.Executor().ScanStructs(&entries); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return entries, nil
}
