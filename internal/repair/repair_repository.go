package repair

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"toolroom/internal/repository"
	"toolroom/pkg/apperrors"
	"toolroom/pkg/models"
)

type RepairRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *RepairRepository {
	return &RepairRepository{repository: r}
}

var reportColumns = []interface{}{
	"id", "equipment_id", "quantity", "note", "reporter_id", "status",
	"created_at", "completed_at",
}

var orderColumns = []interface{}{
	"id", "equipment_id", "status", "technician", "cost", "note",
	"created_at", "completed_at",
}

func (r *RepairRepository) InsertReportTx(tx *goqu.TxDatabase, report *models.RepairReport) error {
	query := tx.Insert("repair_reports").
		Rows(goqu.Record{
			"id":           report.ID,
			"equipment_id": report.EquipmentID,
			"quantity":     report.Quantity,
			"note":         report.Note,
			"reporter_id":  report.ReporterID,
			"status":       report.Status,
		})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert repair report: %w", err)
	}

	return nil
}

func (r *RepairRepository) GetReportTx(tx *goqu.TxDatabase, id string) (*models.RepairReport, error) {
	var report models.RepairReport
	found, err := tx.From("repair_reports").
		Select(reportColumns...).
		Where(goqu.Ex{"id": id}).
		Executor().ScanStruct(&report)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFound("repair report", id)
	}

	return &report, nil
}

func (r *RepairRepository) UpdateReportStatusTx(tx *goqu.TxDatabase, id string, status models.RepairReportStatus, completedAt *time.Time) error {
	changes := goqu.Record{"status": status}
	if completedAt != nil {
		changes["completed_at"] = *completedAt
	}

	result, err := tx.Update("repair_reports").
		Set(changes).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to update repair report %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for repair report %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("repair report", id)
	}

	return nil
}

// MarkPendingReportsInProgress is a cascade step. It runs outside the order
// transaction and is idempotent: only pending reports are touched, so
// re-execution is harmless.
func (r *RepairRepository) MarkPendingReportsInProgress(equipmentID int) error {
	_, err := r.repository.GoquDBWrapper.Update("repair_reports").
		Set(goqu.Record{"status": models.ReportStatusInProgress}).
		Where(goqu.Ex{
			"equipment_id": equipmentID,
			"status":       models.ReportStatusPending,
		}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to cascade repair reports for equipment %d: %w", equipmentID, err)
	}

	return nil
}

// CloseOpenReportsTx closes every report still open for the equipment inside
// the caller's transaction and returns the summed quantity of the rows it
// actually closed. The status guard keeps already-closed reports from being
// counted twice.
func (r *RepairRepository) CloseOpenReportsTx(tx *goqu.TxDatabase, equipmentID int, at time.Time) (int, error) {
	var quantities []int
	err := tx.Update("repair_reports").
		Set(goqu.Record{
			"status":       models.ReportStatusCompleted,
			"completed_at": at,
		}).
		Where(goqu.Ex{"equipment_id": equipmentID}).
		Where(goqu.C("status").NotIn(models.ReportStatusCompleted, models.ReportStatusWriteOff)).
		Returning("quantity").
		Executor().ScanVals(&quantities)
	if err != nil {
		return 0, fmt.Errorf("failed to complete repair reports for equipment %d: %w", equipmentID, err)
	}

	total := 0
	for _, quantity := range quantities {
		total += quantity
	}
	return total, nil
}

func (r *RepairRepository) InsertOrderTx(tx *goqu.TxDatabase, order *models.RepairOrder) error {
	query := tx.Insert("repair_orders").
		Rows(goqu.Record{
			"id":           order.ID,
			"equipment_id": order.EquipmentID,
			"status":       order.Status,
			"technician":   order.Technician,
			"cost":         order.Cost,
			"note":         order.Note,
		})

	if _, err := query.Executor().Exec(); err != nil {
		return fmt.Errorf("failed to insert repair order: %w", err)
	}

	return nil
}

func (r *RepairRepository) GetOrderTx(tx *goqu.TxDatabase, id string) (*models.RepairOrder, error) {
	var order models.RepairOrder
	found, err := tx.From("repair_orders").
		Select(orderColumns...).
		Where(goqu.Ex{"id": id}).
		Executor().ScanStruct(&order)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFound("repair order", id)
	}

	return &order, nil
}

func (r *RepairRepository) UpdateOrderStatusTx(tx *goqu.TxDatabase, id string, status models.RepairOrderStatus, completedAt *time.Time) error {
	changes := goqu.Record{"status": status}
	if completedAt != nil {
		changes["completed_at"] = *completedAt
	}

	result, err := tx.Update("repair_orders").
		Set(changes).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to update repair order %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for repair order %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("repair order", id)
	}

	return nil
}

func (r *RepairRepository) DeleteOrderTx(tx *goqu.TxDatabase, id string) error {
	result, err := tx.Delete("repair_orders").
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return fmt.Errorf("failed to delete repair order %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for repair order %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFound("repair order", id)
	}

	return nil
}

func (r *RepairRepository) ListReports(equipmentID int) ([]models.RepairReport, error) {
	query := r.repository.GoquDBWrapper.From("repair_reports").
		Select(reportColumns...).
		Order(goqu.I("created_at").Desc())

	if equipmentID != 0 {
		query = query.Where(goqu.Ex{"equipment_id": equipmentID})
	}

	var reports []models.RepairReport
	if err := query.Executor().ScanStructs(&reports); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return reports, nil
}

func (r *RepairRepository) ListOrders(equipmentID int) ([]models.RepairOrder, error) {
	query := r.repository.GoquDBWrapper.From("repair_orders").
		Select(orderColumns...).
		Order(goqu.I("created_at").Desc())

	if equipmentID != 0 {
		query = query.Where(goqu.Ex{"equipment_id": equipmentID})
	}

	var orders []models.RepairOrder
	if err := query.Executor().ScanStructs(&orders); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return orders, nil
}
