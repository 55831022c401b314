package equipment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"toolroom/internal/repository"
	"toolroom/pkg/apperrors"
	"toolroom/pkg/models"
)

type EquipmentRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *EquipmentRepository {
	return &EquipmentRepository{repository: r}
}

var equipmentColumns = []interface{}{
	"id", "name", "code", "kind", "quantity", "available_quantity", "min_stock",
	"unit", "category", "location", "description", "lifecycle_state",
	"created_at", "updated_at",
}

type EquipmentFilter struct {
	Category string
	Kind     string
}

func (r *EquipmentRepository) GetEquipment(id int) (*models.EquipmentItem, error) {
	return scanEquipment(r.repository.GoquDBWrapper.From("equipment_items"), goqu.Ex{"id": id}, strconv.Itoa(id))
}

func (r *EquipmentRepository) GetEquipmentTx(tx *goqu.TxDatabase, id int) (*models.EquipmentItem, error) {
	return scanEquipment(tx.From("equipment_items"), goqu.Ex{"id": id}, strconv.Itoa(id))
}

func scanEquipment(dataset *goqu.SelectDataset, where goqu.Ex, id string) (*models.EquipmentItem, error) {
	var item models.EquipmentItem
	found, err := dataset.Select(equipmentColumns...).Where(where).Executor().ScanStruct(&item)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFound("equipment", id)
	}

	item.RefreshStatus()
	return &item, nil
}

func (r *EquipmentRepository) ListEquipment(filter EquipmentFilter) ([]models.EquipmentItem, error) {
	query := r.repository.GoquDBWrapper.From("equipment_items").
		Select(equipmentColumns...).
		Order(goqu.I("created_at").Desc())

	if filter.Category != "" {
		query = query.Where(goqu.Ex{"category": filter.Category})
	}
	if filter.Kind != "" {
		query = query.Where(goqu.Ex{"kind": filter.Kind})
	}

	var items []models.EquipmentItem
	if err := query.Executor().ScanStructs(&items); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	for i := range items {
		items[i].RefreshStatus()
	}

	return items, nil
}

// ResolveByNameOrCodeTx matches an import/restock row against existing
// equipment. Matching is case-insensitive; an exact code match always beats a
// name match, and name ties break on the lowest id so resolution stays
// deterministic.
func (r *EquipmentRepository) ResolveByNameOrCodeTx(tx *goqu.TxDatabase, name, code string) (*models.EquipmentItem, error) {
	if code = strings.TrimSpace(code); code != "" {
		item, found, err := scanFirstEquipment(tx, goqu.L("LOWER(code)").Eq(strings.ToLower(code)))
		if err != nil {
			return nil, err
		}
		if found {
			return item, nil
		}
	}

	name = strings.TrimSpace(name)
	if name != "" {
		item, found, err := scanFirstEquipment(tx, goqu.L("LOWER(name)").Eq(strings.ToLower(name)))
		if err != nil {
			return nil, err
		}
		if found {
			return item, nil
		}
	}

	return nil, apperrors.NewNotFound("equipment", name)
}

func scanFirstEquipment(tx *goqu.TxDatabase, condition exp.Expression) (*models.EquipmentItem, bool, error) {
	var item models.EquipmentItem
	found, err := tx.From("equipment_items").
		Select(equipmentColumns...).
		Where(condition).
		Order(goqu.I("id").Asc()).
		Limit(1).
		Executor().ScanStruct(&item)
	if err != nil {
		return nil, false, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	item.RefreshStatus()
	return &item, true, nil
}

func (r *EquipmentRepository) PersistEquipmentTx(tx *goqu.TxDatabase, item *models.EquipmentItem) error {
	query := tx.Insert("equipment_items").
		Rows(goqu.Record{
			"name":               item.Name,
			"code":               item.Code,
			"kind":               item.Kind,
			"quantity":           item.Quantity,
			"available_quantity": item.AvailableQuantity,
			"min_stock":          item.MinStock,
			"unit":               item.Unit,
			"category":           item.Category,
			"location":           item.Location,
			"description":        item.Description,
			"lifecycle_state":    item.LifecycleState,
		}).
		Returning("id")

	if _, err := query.Executor().ScanVal(&item.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return apperrors.WrapDBError("failed to insert equipment item", string(pqErr.Code))
		}
		return fmt.Errorf("failed to insert equipment item: %w", err)
	}

	return nil
}

// ReserveAvailable decrements the available pool inside the caller's
// transaction. The quantity guard in the WHERE clause is what makes exactly
// one of two concurrent overdrawing transactions fail.
func (r *EquipmentRepository) ReserveAvailable(tx *goqu.TxDatabase, id, qty int) error {
	result, err := tx.Update("equipment_items").
		Set(goqu.Record{
			"available_quantity": goqu.L("available_quantity - ?", qty),
			"updated_at":         goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": id}).
		Where(goqu.C("available_quantity").Gte(qty)).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to reserve stock for equipment %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for equipment %d: %w", id, err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetEquipmentTx(tx, id); err != nil {
			return err
		}
		return &apperrors.InsufficientStockError{EquipmentID: id, Requested: qty}
	}

	return nil
}

// RestoreAvailable returns reserved units to the pool, capped at the total
// quantity so a double-credit can never overflow the ledger. Reports whether
// the item still existed.
func (r *EquipmentRepository) RestoreAvailable(tx *goqu.TxDatabase, id, qty int) (bool, error) {
	result, err := tx.Update("equipment_items").
		Set(goqu.Record{
			"available_quantity": goqu.L("LEAST(quantity, available_quantity + ?)", qty),
			"updated_at":         goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return false, fmt.Errorf("failed to restore stock for equipment %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for equipment %d: %w", id, err)
	}

	return rowsAffected > 0, nil
}

// DeductAvailableFloor removes up to qty units from the available pool,
// flooring at zero. Used by problem reports, which may name more units than
// are currently available.
func (r *EquipmentRepository) DeductAvailableFloor(tx *goqu.TxDatabase, id, qty int) error {
	result, err := tx.Update("equipment_items").
		Set(goqu.Record{
			"available_quantity": goqu.L("GREATEST(0, available_quantity - ?)", qty),
			"updated_at":         goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to deduct stock for equipment %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for equipment %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}

	return nil
}

func (r *EquipmentRepository) ApplyRestock(tx *goqu.TxDatabase, id, delta int) error {
	result, err := tx.Update("equipment_items").
		Set(goqu.Record{
			"quantity":           goqu.L("quantity + ?", delta),
			"available_quantity": goqu.L("available_quantity + ?", delta),
			"updated_at":         goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to restock equipment %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for equipment %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}

	return nil
}

// ReduceQuantity shrinks the total pool after a write-off. The available pool
// is clamped so 0 <= available_quantity <= quantity keeps holding.
func (r *EquipmentRepository) ReduceQuantity(tx *goqu.TxDatabase, id, qty int) error {
	result, err := tx.Update("equipment_items").
		Set(goqu.Record{
			"quantity":           goqu.L("GREATEST(0, quantity - ?)", qty),
			"available_quantity": goqu.L("LEAST(available_quantity, GREATEST(0, quantity - ?))", qty),
			"updated_at":         goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to reduce quantity for equipment %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for equipment %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}

	return nil
}

func (r *EquipmentRepository) SetLifecycleTx(tx *goqu.TxDatabase, id int, state string) error {
	result, err := tx.Update("equipment_items").
		Set(goqu.Record{
			"lifecycle_state": state,
			"updated_at":      goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to update lifecycle state for equipment %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for equipment %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}

	return nil
}
