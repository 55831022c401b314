package usage

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"toolroom/internal/repository"
	"toolroom/pkg/apperrors"
	"toolroom/pkg/models"
)

type UsageRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *UsageRepository {
	return &UsageRepository{repository: r}
}

var usageColumns = []interface{}{
	"id", "equipment_id", "user_id", "quantity", "kind", "status", "note",
	"requested_at", "return_requested_at", "return_confirmed_at",
}

func (r *UsageRepository) InsertUsageRecordTx(tx *goqu.TxDatabase, record *models.UsageRecord) error {
	query := tx.Insert("usage_records").
		Rows(goqu.Record{
			"id":           record.ID,
			"equipment_id": record.EquipmentID,
			"user_id":      record.UserID,
			"quantity":     record.Quantity,
			"kind":         record.Kind,
			"status":       record.Status,
			"note":         record.Note,
			"requested_at": record.RequestedAt,
		})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

func (r *UsageRepository) GetUsageRecordTx(tx *goqu.TxDatabase, id string) (*models.UsageRecord, error) {
	var record models.UsageRecord
	found, err := tx.From("usage_records").
		Select(usageColumns...).
		Where(goqu.Ex{"id": id}).
		Executor().ScanStruct(&record)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFound("usage record", id)
	}

	return &record, nil
}

func (r *UsageRepository) MarkReturnRequestedTx(tx *goqu.TxDatabase, id string, at time.Time) error {
	return r.updateStatus(tx, id, goqu.Record{
		"status":              models.UsageStatusPendingReturn,
		"return_requested_at": at,
	})
}

func (r *UsageRepository) MarkReturnedTx(tx *goqu.TxDatabase, id string, at time.Time) error {
	return r.updateStatus(tx, id, goqu.Record{
		"status":              models.UsageStatusReturned,
		"return_confirmed_at": at,
	})
}

func (r *UsageRepository) updateStatus(tx *goqu.TxDatabase, id string, changes goqu.Record) error {
	result, err := tx.Update("usage_records").
		Set(changes).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to update usage record %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for usage record %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("usage record", id)
	}

	return nil
}

// CountOpenForEquipmentTx counts borrow records that still hold reserved
// units of the item. Withdrawals are terminal and never count as open.
func (r *UsageRepository) CountOpenForEquipmentTx(tx *goqu.TxDatabase, equipmentID int) (int, error) {
	count, err := tx.From("usage_records").
		Where(goqu.Ex{
			"equipment_id": equipmentID,
			"kind":         models.UsageKindBorrow,
		}).
		Where(goqu.C("status").Neq(models.UsageStatusReturned)).
		Count()
	if err != nil {
		return 0, fmt.Errorf("failed to count open usage records for equipment %d: %w", equipmentID, err)
	}

	return int(count), nil
}

type UsageFilter struct {
	EquipmentID int
	UserID      string
	From        *time.Time
	To          *time.Time
}

// ListUsageRecords returns records newest first, optionally filtered for the
// reporting collaborator.
func (r *UsageRepository) ListUsageRecords(filter UsageFilter) ([]models.UsageRecord, error) {
	query := r.repository.GoquDBWrapper.From("usage_records").
		Select(usageColumns...).
		Order(goqu.I("requested_at").Desc())

	if filter.EquipmentID != 0 {
		query = query.Where(goqu.Ex{"equipment_id": filter.EquipmentID})
	}
	if filter.UserID != "" {
		query = query.Where(goqu.Ex{"user_id": filter.UserID})
	}
	if filter.From != nil {
		query = query.Where(goqu.C("requested_at").Gte(*filter.From))
	}
	if filter.To != nil {
		query = query.Where(goqu.C("requested_at").Lte(*filter.To))
	}

	var records []models.UsageRecord
	if err := query.Executor().ScanStructs(&records); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return records, nil
}
