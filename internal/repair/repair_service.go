package repair

import (
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"toolroom/internal/events"
	"toolroom/internal/notify"
	"toolroom/internal/repository"
	"toolroom/pkg/apperrors"
	"toolroom/pkg/auditlog"
	"toolroom/pkg/metadata"
	"toolroom/pkg/models"
)

type RepairStore interface {
	InsertReportTx(tx *goqu.TxDatabase, report *models.RepairReport) error
	GetReportTx(tx *goqu.TxDatabase, id string) (*models.RepairReport, error)
	UpdateReportStatusTx(tx *goqu.TxDatabase, id string, status models.RepairReportStatus, completedAt *time.Time) error
	MarkPendingReportsInProgress(equipmentID int) error
	CloseOpenReportsTx(tx *goqu.TxDatabase, equipmentID int, at time.Time) (int, error)
	InsertOrderTx(tx *goqu.TxDatabase, order *models.RepairOrder) error
	GetOrderTx(tx *goqu.TxDatabase, id string) (*models.RepairOrder, error)
	UpdateOrderStatusTx(tx *goqu.TxDatabase, id string, status models.RepairOrderStatus, completedAt *time.Time) error
	DeleteOrderTx(tx *goqu.TxDatabase, id string) error
	ListReports(equipmentID int) ([]models.RepairReport, error)
	ListOrders(equipmentID int) ([]models.RepairOrder, error)
}

type LedgerStore interface {
	GetEquipmentTx(tx *goqu.TxDatabase, id int) (*models.EquipmentItem, error)
	DeductAvailableFloor(tx *goqu.TxDatabase, id, qty int) error
	RestoreAvailable(tx *goqu.TxDatabase, id, qty int) (bool, error)
	ReduceQuantity(tx *goqu.TxDatabase, id, qty int) error
	SetLifecycleTx(tx *goqu.TxDatabase, id int, state string) error
}

// RepairService drives the equipment lifecycle between operational, damaged
// and repairing. Every quantity-bearing transition runs as one transaction
// over the equipment row and the repair records it touches; only the
// pending-to-in_progress report fan-out runs as a separate idempotent cascade
// write.
type RepairService struct {
	runner   repository.TxRunner
	repairs  RepairStore
	ledger   LedgerStore
	auditLog *auditlog.Auditlog
	bus      *events.Bus
	notifier notify.Notifier
	log      *zap.Logger
}

func NewRepairService(
	runner repository.TxRunner,
	repairs RepairStore,
	ledger LedgerStore,
	auditLog *auditlog.Auditlog,
	bus *events.Bus,
	notifier notify.Notifier,
	log *zap.Logger,
) *RepairService {
	return &RepairService{
		runner:   runner,
		repairs:  repairs,
		ledger:   ledger,
		auditLog: auditLog,
		bus:      bus,
		notifier: notifier,
		log:      log,
	}
}

// ReportProblem pulls the named units out of the usable pool immediately,
// before any repair order exists. The deduction floors at zero: a report may
// name more units than are currently available.
func (s *RepairService) ReportProblem(req models.ReportProblemRequest) (*models.RepairReport, error) {
	if req.Quantity <= 0 {
		return nil, apperrors.NewValidation("quantity must be positive")
	}
	if req.ReporterID == "" {
		return nil, apperrors.NewValidation("reporter_id is required")
	}

	var item *models.EquipmentItem
	report := &models.RepairReport{
		ID:          uuid.NewString(),
		EquipmentID: req.EquipmentID,
		Quantity:    req.Quantity,
		Note:        req.Note,
		ReporterID:  req.ReporterID,
		Status:      models.ReportStatusPending,
		CreatedAt:   time.Now(),
	}

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		item, err = s.ledger.GetEquipmentTx(tx, req.EquipmentID)
		if err != nil {
			return err
		}

		switch item.LifecycleState {
		case metadata.LifecycleRetired, metadata.LifecycleLost:
			return apperrors.NewInvalidState("equipment %d is %s", item.ID, item.LifecycleState)
		}

		if err := s.ledger.DeductAvailableFloor(tx, req.EquipmentID, req.Quantity); err != nil {
			return err
		}
		if err := s.ledger.SetLifecycleTx(tx, req.EquipmentID, string(metadata.LifecycleDamaged)); err != nil {
			return err
		}

		return s.repairs.InsertReportTx(tx, report)
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log(
		"problem_reported",
		map[string]interface{}{
			"equipment_id": req.EquipmentID,
			"quantity":     req.Quantity,
			"reporter_id":  req.ReporterID,
		},
		report,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(req.EquipmentID))
	s.bus.Publish(events.RepairChanged, report.ID)
	go s.notifier.Notify(notify.Message{
		Event:         "problem_reported",
		EquipmentName: item.Name,
		Quantity:      req.Quantity,
		UserID:        req.ReporterID,
		Note:          req.Note,
		At:            report.CreatedAt,
	})

	return report, nil
}

// StartRepair opens an admin repair order for a damaged item and moves it to
// repairing. Pending reports for the same equipment cascade to in_progress
// afterwards.
func (s *RepairService) StartRepair(req models.StartRepairRequest) (*models.RepairOrder, error) {
	order := &models.RepairOrder{
		ID:          uuid.NewString(),
		EquipmentID: req.EquipmentID,
		Status:      models.OrderStatusInProgress,
		Technician:  req.Technician,
		Cost:        req.Cost,
		Note:        req.Note,
		CreatedAt:   time.Now(),
	}

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		item, err := s.ledger.GetEquipmentTx(tx, req.EquipmentID)
		if err != nil {
			return err
		}

		if item.LifecycleState != metadata.LifecycleDamaged {
			return apperrors.NewInvalidState("cannot start repair: equipment %d is %s, not damaged", item.ID, item.LifecycleState)
		}

		if err := s.repairs.InsertOrderTx(tx, order); err != nil {
			return err
		}

		return s.ledger.SetLifecycleTx(tx, req.EquipmentID, string(metadata.LifecycleRepairing))
	})
	if err != nil {
		return nil, err
	}

	if err := s.repairs.MarkPendingReportsInProgress(req.EquipmentID); err != nil {
		// the cascade is retryable; the next transition re-applies it
		s.log.Warn("failed to cascade repair reports to in_progress",
			zap.Int("equipment_id", req.EquipmentID),
			zap.Error(err),
		)
	}

	go s.auditLog.Log(
		"repair_started",
		map[string]interface{}{
			"equipment_id": req.EquipmentID,
			"technician":   req.Technician,
		},
		order,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(req.EquipmentID))
	s.bus.Publish(events.RepairChanged, order.ID)

	return order, nil
}

// CompleteRepair closes the order, returns the equipment to service and
// restores the available pool by the summed quantity of the reports closed in
// the same transaction. Restoring exactly what was closed keeps the pool
// consistent: units are credited back at most once, no matter how often a
// failed completion is retried.
func (s *RepairService) CompleteRepair(orderID string) (*models.RepairOrder, error) {
	var order *models.RepairOrder
	var item *models.EquipmentItem
	now := time.Now()

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		order, err = s.repairs.GetOrderTx(tx, orderID)
		if err != nil {
			return err
		}

		switch order.Status {
		case models.OrderStatusCompleted:
			return apperrors.NewAlreadyProcessed("repair order %s is already completed", orderID)
		case models.OrderStatusCancelled:
			return apperrors.NewInvalidState("repair order %s is cancelled", orderID)
		}

		item, err = s.ledger.GetEquipmentTx(tx, order.EquipmentID)
		if err != nil {
			return err
		}

		repairedQty, err := s.repairs.CloseOpenReportsTx(tx, order.EquipmentID, now)
		if err != nil {
			return err
		}

		if err := s.repairs.UpdateOrderStatusTx(tx, orderID, models.OrderStatusCompleted, &now); err != nil {
			return err
		}
		if err := s.ledger.SetLifecycleTx(tx, order.EquipmentID, string(metadata.LifecycleOperational)); err != nil {
			return err
		}

		if repairedQty > 0 {
			if _, err := s.ledger.RestoreAvailable(tx, order.EquipmentID, repairedQty); err != nil {
				return err
			}
		}

		order.Status = models.OrderStatusCompleted
		order.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	cost := ""
	if order.Cost != nil {
		cost = order.Cost.String()
	}
	technician := ""
	if order.Technician != nil {
		technician = *order.Technician
	}

	go s.auditLog.Log(
		"repair_completed",
		map[string]interface{}{
			"equipment_id": order.EquipmentID,
			"technician":   technician,
			"cost":         cost,
		},
		order,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(order.EquipmentID))
	s.bus.Publish(events.RepairChanged, order.ID)
	go s.notifier.Notify(notify.Message{
		Event:         "repair_completed",
		EquipmentName: item.Name,
		Technician:    technician,
		Cost:          cost,
		Note:          order.Note,
		At:            now,
	})

	return order, nil
}

// CancelRepair aborts the work; the equipment drops back to damaged and its
// reports stay open.
func (s *RepairService) CancelRepair(orderID string) (*models.RepairOrder, error) {
	var order *models.RepairOrder

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		order, err = s.repairs.GetOrderTx(tx, orderID)
		if err != nil {
			return err
		}

		switch order.Status {
		case models.OrderStatusCancelled:
			return apperrors.NewAlreadyProcessed("repair order %s is already cancelled", orderID)
		case models.OrderStatusCompleted:
			return apperrors.NewInvalidState("repair order %s is already completed", orderID)
		}

		if err := s.repairs.UpdateOrderStatusTx(tx, orderID, models.OrderStatusCancelled, nil); err != nil {
			return err
		}
		if err := s.ledger.SetLifecycleTx(tx, order.EquipmentID, string(metadata.LifecycleDamaged)); err != nil {
			return err
		}

		order.Status = models.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("repair_cancelled", map[string]interface{}{"equipment_id": order.EquipmentID}, order)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(order.EquipmentID))
	s.bus.Publish(events.RepairChanged, order.ID)

	return order, nil
}

// DeleteOrder removes the order record. Deleting active work first reverts
// the equipment to damaged, as if the order had never been opened.
func (s *RepairService) DeleteOrder(orderID string) error {
	var order *models.RepairOrder

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		order, err = s.repairs.GetOrderTx(tx, orderID)
		if err != nil {
			return err
		}

		if order.Status == models.OrderStatusInProgress {
			if err := s.ledger.SetLifecycleTx(tx, order.EquipmentID, string(metadata.LifecycleDamaged)); err != nil {
				return err
			}
		}

		return s.repairs.DeleteOrderTx(tx, orderID)
	})
	if err != nil {
		return err
	}

	go s.auditLog.Log("repair_order_deleted", map[string]interface{}{"equipment_id": order.EquipmentID}, order)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(order.EquipmentID))
	s.bus.Publish(events.RepairChanged, order.ID)

	return nil
}

// WriteOff retires the reported units for good: the total quantity shrinks by
// the report's quantity. The available pool already excluded those units when
// the problem was reported.
func (s *RepairService) WriteOff(reportID string) (*models.RepairReport, error) {
	var report *models.RepairReport
	now := time.Now()

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		report, err = s.repairs.GetReportTx(tx, reportID)
		if err != nil {
			return err
		}

		switch report.Status {
		case models.ReportStatusWriteOff:
			return apperrors.NewAlreadyProcessed("repair report %s is already written off", reportID)
		case models.ReportStatusCompleted:
			return apperrors.NewInvalidState("repair report %s is already completed", reportID)
		}

		if err := s.repairs.UpdateReportStatusTx(tx, reportID, models.ReportStatusWriteOff, &now); err != nil {
			return err
		}
		if err := s.ledger.ReduceQuantity(tx, report.EquipmentID, report.Quantity); err != nil {
			return err
		}

		report.Status = models.ReportStatusWriteOff
		report.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log(
		"write_off",
		map[string]interface{}{
			"equipment_id": report.EquipmentID,
			"quantity":     report.Quantity,
		},
		report,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(report.EquipmentID))
	s.bus.Publish(events.RepairChanged, report.ID)

	return report, nil
}

func (s *RepairService) ListReports(equipmentID int) ([]models.RepairReport, error) {
	return s.repairs.ListReports(equipmentID)
}

func (s *RepairService) ListOrders(equipmentID int) ([]models.RepairOrder, error) {
	return s.repairs.ListOrders(equipmentID)
}
