package usage

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

type RecordStore interface {
	InsertUsageRecordTx(tx *goqu.TxDatabase, record *models.UsageRecord) error
	GetUsageRecordTx(tx *goqu.TxDatabase, id string) (*models.UsageRecord, error)
	MarkReturnRequestedTx(tx *goqu.TxDatabase, id string, at time.Time) error
	MarkReturnedTx(tx *goqu.TxDatabase, id string, at time.Time) error
	ListUsageRecords(filter UsageFilter) ([]models.UsageRecord, error)
}

// LedgerStore is the slice of the equipment repository the usage engine
// needs. Every quantity change goes through the ledger row inside the same
// transaction that writes the usage record.
type LedgerStore interface {
	GetEquipmentTx(tx *goqu.TxDatabase, id int) (*models.EquipmentItem, error)
	ReserveAvailable(tx *goqu.TxDatabase, id, qty int) error
	RestoreAvailable(tx *goqu.TxDatabase, id, qty int) (bool, error)
}

type UsageService struct {
	runner   repository.TxRunner
	records  RecordStore
	ledger   LedgerStore
	auditLog *auditlog.Auditlog
	bus      *events.Bus
	notifier notify.Notifier
	log      *zap.Logger
}

func NewUsageService(
	runner repository.TxRunner,
	records RecordStore,
	ledger LedgerStore,
	auditLog *auditlog.Auditlog,
	bus *events.Bus,
	notifier notify.Notifier,
	log *zap.Logger,
) *UsageService {
	return &UsageService{
		runner:   runner,
		records:  records,
		ledger:   ledger,
		auditLog: auditLog,
		bus:      bus,
		notifier: notifier,
		log:      log,
	}
}

// BorrowOrWithdraw reserves qty units from the item's available pool and
// writes the usage record, all in one transaction. Partial application is
// impossible: either both writes commit or neither does.
func (s *UsageService) BorrowOrWithdraw(req models.UsageRequest) (*models.UsageRecord, error) {
	kind := models.UsageKind(req.Kind)
	if !kind.IsValid() {
		return nil, apperrors.NewValidation("invalid usage kind: %s", req.Kind)
	}
	if req.Quantity <= 0 {
		return nil, apperrors.NewValidation("quantity must be positive")
	}
	if req.UserID == "" {
		return nil, apperrors.NewValidation("user_id is required")
	}

	var item *models.EquipmentItem
	record := &models.UsageRecord{
		ID:          uuid.NewString(),
		EquipmentID: req.EquipmentID,
		UserID:      req.UserID,
		Quantity:    req.Quantity,
		Kind:        kind,
		Status:      models.UsageStatusActive,
		Note:        req.Note,
		RequestedAt: time.Now(),
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

		if err := s.ledger.ReserveAvailable(tx, req.EquipmentID, req.Quantity); err != nil {
			return err
		}

		return s.records.InsertUsageRecordTx(tx, record)
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log(
		string(kind),
		map[string]interface{}{
			"equipment_id": req.EquipmentID,
			"user_id":      req.UserID,
			"quantity":     req.Quantity,
		},
		record,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(req.EquipmentID))
	s.bus.Publish(events.UsageRecordChanged, record.ID)
	go s.notifier.Notify(notify.Message{
		Event:         string(kind),
		EquipmentName: item.Name,
		Quantity:      req.Quantity,
		UserID:        req.UserID,
		Note:          req.Note,
		At:            record.RequestedAt,
	})

	return record, nil
}

// RequestReturn marks a borrowed record as handed back and awaiting admin
// confirmation. No quantity changes until the return is confirmed.
func (s *UsageService) RequestReturn(usageID string) (*models.UsageRecord, error) {
	var record *models.UsageRecord

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		record, err = s.records.GetUsageRecordTx(tx, usageID)
		if err != nil {
			return err
		}

		if record.Kind != models.UsageKindBorrow {
			return apperrors.NewInvalidState("usage record %s is a withdrawal and has no return path", usageID)
		}
		switch record.Status {
		case models.UsageStatusReturned:
			return apperrors.NewAlreadyProcessed("usage record %s is already returned", usageID)
		case models.UsageStatusPendingReturn:
			return apperrors.NewAlreadyProcessed("return of usage record %s is already requested", usageID)
		}

		now := time.Now()
		if err := s.records.MarkReturnRequestedTx(tx, usageID, now); err != nil {
			return err
		}

		record.Status = models.UsageStatusPendingReturn
		record.ReturnRequestedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log("return_requested", map[string]interface{}{"user_id": record.UserID}, record)
	s.bus.Publish(events.UsageRecordChanged, record.ID)

	return record, nil
}

// ConfirmReturn restores the borrowed quantity to the ledger and closes the
// record, exactly once. A second confirmation trips the idempotency guard and
// leaves quantities untouched.
func (s *UsageService) ConfirmReturn(usageID string) (*models.UsageRecord, error) {
	var record *models.UsageRecord
	var item *models.EquipmentItem

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		record, err = s.records.GetUsageRecordTx(tx, usageID)
		if err != nil {
			return err
		}

		if record.Kind != models.UsageKindBorrow {
			return apperrors.NewInvalidState("usage record %s is a withdrawal and has no return path", usageID)
		}
		switch record.Status {
		case models.UsageStatusReturned:
			return apperrors.NewAlreadyProcessed("usage record %s is already returned", usageID)
		case models.UsageStatusActive, models.UsageStatusPendingReturn:
		default:
			return apperrors.NewInvalidState("usage record %s is in state %s", usageID, record.Status)
		}

		// The item may have been removed since the borrow; the record is
		// still closed so the caller's bookkeeping stays consistent.
		item, err = s.ledger.GetEquipmentTx(tx, record.EquipmentID)
		if err != nil && !apperrors.IsNotFound(err) {
			return err
		}

		restored, err := s.ledger.RestoreAvailable(tx, record.EquipmentID, record.Quantity)
		if err != nil {
			return err
		}
		if !restored {
			s.log.Warn("equipment missing on return confirmation",
				zap.Int("equipment_id", record.EquipmentID),
				zap.String("usage_id", usageID),
			)
		}

		now := time.Now()
		if err := s.records.MarkReturnedTx(tx, usageID, now); err != nil {
			return err
		}

		record.Status = models.UsageStatusReturned
		record.ReturnConfirmedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log(
		"return_confirmed",
		map[string]interface{}{
			"equipment_id": record.EquipmentID,
			"quantity":     record.Quantity,
		},
		record,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(record.EquipmentID))
	s.bus.Publish(events.UsageRecordChanged, record.ID)
	equipmentName := ""
	if item != nil {
		equipmentName = item.Name
	}
	go s.notifier.Notify(notify.Message{
		Event:         "return_confirmed",
		EquipmentName: equipmentName,
		Quantity:      record.Quantity,
		UserID:        record.UserID,
		At:            *record.ReturnConfirmedAt,
	})

	return record, nil
}

// BulkConfirmReturns confirms each record in its own transaction and reports
// a per-record outcome. A failed or already-returned record never rolls back
// the others.
func (s *UsageService) BulkConfirmReturns(usageIDs []string) []models.ReturnOutcome {
	outcomes := make([]models.ReturnOutcome, 0, len(usageIDs))

	for _, id := range usageIDs {
		_, err := s.ConfirmReturn(id)
		switch {
		case err == nil:
			outcomes = append(outcomes, models.ReturnOutcome{
				UsageID: id,
				Outcome: models.ReturnOutcomeSuccess,
			})
		case apperrors.IsAlreadyProcessed(err):
			outcomes = append(outcomes, models.ReturnOutcome{
				UsageID: id,
				Outcome: models.ReturnOutcomeAlreadyReturned,
				Message: err.Error(),
			})
		default:
			outcomes = append(outcomes, models.ReturnOutcome{
				UsageID: id,
				Outcome: models.ReturnOutcomeFailed,
				Message: err.Error(),
			})
		}
	}

	return outcomes
}

func (s *UsageService) List(filter UsageFilter) ([]models.UsageRecord, error) {
	return s.records.ListUsageRecords(filter)
}
