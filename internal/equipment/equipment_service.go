package equipment

import (
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

type Store interface {
	GetEquipment(id int) (*models.EquipmentItem, error)
	GetEquipmentTx(tx *goqu.TxDatabase, id int) (*models.EquipmentItem, error)
	ListEquipment(filter EquipmentFilter) ([]models.EquipmentItem, error)
	PersistEquipmentTx(tx *goqu.TxDatabase, item *models.EquipmentItem) error
	SetLifecycleTx(tx *goqu.TxDatabase, id int, state string) error
}

// ActiveUsageCounter reports how many usage records still hold units of an
// item; retiring is refused while any are open.
type ActiveUsageCounter interface {
	CountOpenForEquipmentTx(tx *goqu.TxDatabase, equipmentID int) (int, error)
}

type EquipmentService struct {
	runner   repository.TxRunner
	store    Store
	usage    ActiveUsageCounter
	auditLog *auditlog.Auditlog
	bus      *events.Bus
	log      *zap.Logger
}

func NewEquipmentService(
	runner repository.TxRunner,
	store Store,
	usage ActiveUsageCounter,
	auditLog *auditlog.Auditlog,
	bus *events.Bus,
	log *zap.Logger,
) *EquipmentService {
	return &EquipmentService{
		runner:   runner,
		store:    store,
		usage:    usage,
		auditLog: auditLog,
		bus:      bus,
		log:      log,
	}
}

func (s *EquipmentService) Create(req models.CreateEquipmentRequest) (*models.EquipmentItem, error) {
	kind := models.EquipmentKind(req.Kind)
	if !kind.IsValid() {
		return nil, apperrors.NewValidation("invalid equipment kind: %s", req.Kind)
	}
	if req.Quantity < 0 {
		return nil, apperrors.NewValidation("quantity must not be negative")
	}
	if req.MinStock < 0 {
		return nil, apperrors.NewValidation("min_stock must not be negative")
	}

	item := &models.EquipmentItem{
		Name:              req.Name,
		Code:              req.Code,
		Kind:              kind,
		Quantity:          req.Quantity,
		AvailableQuantity: req.Quantity,
		MinStock:          req.MinStock,
		Unit:              req.Unit,
		Category:          req.Category,
		Location:          req.Location,
		Description:       req.Description,
		LifecycleState:    metadata.LifecycleOperational,
		CreatedAt:         time.Now(),
	}

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		return s.store.PersistEquipmentTx(tx, item)
	})
	if err != nil {
		return nil, err
	}

	item.RefreshStatus()

	go s.auditLog.Log(
		"create",
		map[string]interface{}{
			"name":     item.Name,
			"kind":     item.Kind,
			"quantity": item.Quantity,
		},
		item,
	)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(item.ID))

	return item, nil
}

func (s *EquipmentService) Get(id int) (*models.EquipmentItem, error) {
	return s.store.GetEquipment(id)
}

func (s *EquipmentService) List(filter EquipmentFilter) ([]models.EquipmentItem, error) {
	return s.store.ListEquipment(filter)
}

// Retire moves an item to the terminal retired state. Items with open usage
// records keep their units on loan, so retiring them is refused.
func (s *EquipmentService) Retire(id int) (*models.EquipmentItem, error) {
	return s.exitLifecycle(id, metadata.LifecycleRetired, "retire")
}

func (s *EquipmentService) MarkLost(id int) (*models.EquipmentItem, error) {
	return s.exitLifecycle(id, metadata.LifecycleLost, "mark_lost")
}

func (s *EquipmentService) exitLifecycle(id int, target metadata.LifecycleState, action string) (*models.EquipmentItem, error) {
	var item *models.EquipmentItem

	err := s.runner.RunInTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		item, err = s.store.GetEquipmentTx(tx, id)
		if err != nil {
			return err
		}

		if item.LifecycleState == target {
			return apperrors.NewAlreadyProcessed("equipment %d is already %s", id, target)
		}

		if target == metadata.LifecycleRetired {
			open, err := s.usage.CountOpenForEquipmentTx(tx, id)
			if err != nil {
				return err
			}
			if open > 0 {
				return apperrors.NewInvalidState("equipment %d has %d open usage records", id, open)
			}
		}

		if err := s.store.SetLifecycleTx(tx, id, string(target)); err != nil {
			return err
		}

		item.LifecycleState = target
		item.RefreshStatus()
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.auditLog.Log(action, map[string]interface{}{"name": item.Name}, item)
	s.bus.Publish(events.EquipmentChanged, strconv.Itoa(id))

	return item, nil
}
