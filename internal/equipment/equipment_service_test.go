package equipment

import (
	"strconv"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"toolroom/internal/events"
	"toolroom/pkg/apperrors"
	"toolroom/pkg/auditlog"
	"toolroom/pkg/metadata"
	"toolroom/pkg/models"
)

type stubRunner struct{}

func (stubRunner) RunInTransaction(fn func(tx *goqu.TxDatabase) error) error {
	return fn(nil)
}

type fakeStore struct {
	items  map[int]*models.EquipmentItem
	nextID int
}

func newFakeStore(items ...*models.EquipmentItem) *fakeStore {
	store := &fakeStore{items: make(map[int]*models.EquipmentItem), nextID: 1}
	for _, item := range items {
		store.items[item.ID] = item
		if item.ID >= store.nextID {
			store.nextID = item.ID + 1
		}
	}
	return store
}

func (s *fakeStore) GetEquipment(id int) (*models.EquipmentItem, error) {
	return s.GetEquipmentTx(nil, id)
}

func (s *fakeStore) GetEquipmentTx(_ *goqu.TxDatabase, id int) (*models.EquipmentItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}
	copied := *item
	return &copied, nil
}

func (s *fakeStore) ListEquipment(EquipmentFilter) ([]models.EquipmentItem, error) {
	out := make([]models.EquipmentItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *fakeStore) PersistEquipmentTx(_ *goqu.TxDatabase, item *models.EquipmentItem) error {
	item.ID = s.nextID
	s.nextID++
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *fakeStore) SetLifecycleTx(_ *goqu.TxDatabase, id int, state string) error {
	item, ok := s.items[id]
	if !ok {
		return apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}
	item.LifecycleState = metadata.LifecycleState(state)
	return nil
}

type fakeUsageCounter struct {
	open map[int]int
}

func (c *fakeUsageCounter) CountOpenForEquipmentTx(_ *goqu.TxDatabase, equipmentID int) (int, error) {
	return c.open[equipmentID], nil
}

type noopPersister struct{}

func (noopPersister) PersistLog(models.AuditLog, interface{}) error { return nil }

func newTestService(store *fakeStore, counter *fakeUsageCounter) *EquipmentService {
	log := zap.NewNop()
	if counter == nil {
		counter = &fakeUsageCounter{open: map[int]int{}}
	}
	return NewEquipmentService(
		stubRunner{},
		store,
		counter,
		auditlog.NewAuditLog(noopPersister{}, log),
		events.NewBus(log),
		log,
	)
}

func TestCreateStartsFullyAvailable(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, nil)

	item, err := service.Create(models.CreateEquipmentRequest{
		Name: "impact driver", Kind: "borrowable", Quantity: 4, MinStock: 1, Unit: "pcs",
	})

	assert.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.Equal(t, 4, item.AvailableQuantity)
	assert.Equal(t, metadata.LifecycleOperational, item.LifecycleState)
	assert.Equal(t, metadata.StatusAvailable, item.Status)
}

func TestCreateDerivesLowStockStatus(t *testing.T) {
	service := newTestService(newFakeStore(), nil)

	item, err := service.Create(models.CreateEquipmentRequest{
		Name: "glue sticks", Kind: "consumable", Quantity: 2, MinStock: 5, Unit: "pcs",
	})

	assert.NoError(t, err)
	assert.Equal(t, metadata.StatusLowStock, item.Status)
}

func TestCreateValidation(t *testing.T) {
	service := newTestService(newFakeStore(), nil)

	cases := []models.CreateEquipmentRequest{
		{Name: "x", Kind: "perishable", Quantity: 1},
		{Name: "x", Kind: "borrowable", Quantity: -1},
		{Name: "x", Kind: "borrowable", Quantity: 1, MinStock: -2},
	}
	for _, req := range cases {
		_, err := service.Create(req)
		var validation *apperrors.ValidationError
		assert.ErrorAs(t, err, &validation)
	}
}

func TestRetireRefusedWhileUnitsAreOut(t *testing.T) {
	store := newFakeStore(&models.EquipmentItem{
		ID: 1, Name: "ladder", Kind: models.KindBorrowable,
		Quantity: 2, AvailableQuantity: 1,
		LifecycleState: metadata.LifecycleOperational,
	})
	counter := &fakeUsageCounter{open: map[int]int{1: 1}}
	service := newTestService(store, counter)

	_, err := service.Retire(1)

	var invalidState *apperrors.InvalidStateError
	assert.ErrorAs(t, err, &invalidState)
	assert.Equal(t, metadata.LifecycleOperational, store.items[1].LifecycleState)
}

func TestRetireIsTerminalAndIdempotencyGuarded(t *testing.T) {
	store := newFakeStore(&models.EquipmentItem{
		ID: 1, Name: "ladder", Kind: models.KindBorrowable,
		Quantity: 2, AvailableQuantity: 2,
		LifecycleState: metadata.LifecycleOperational,
	})
	service := newTestService(store, nil)

	item, err := service.Retire(1)
	assert.NoError(t, err)
	assert.Equal(t, metadata.LifecycleRetired, item.LifecycleState)
	assert.Equal(t, metadata.StatusRetired, item.Status)

	_, err = service.Retire(1)
	assert.True(t, apperrors.IsAlreadyProcessed(err))
}

func TestMarkLost(t *testing.T) {
	store := newFakeStore(&models.EquipmentItem{
		ID: 1, Name: "laser level", Kind: models.KindBorrowable,
		Quantity: 1, AvailableQuantity: 0,
		LifecycleState: metadata.LifecycleOperational,
	})
	service := newTestService(store, nil)

	item, err := service.MarkLost(1)
	assert.NoError(t, err)
	assert.Equal(t, metadata.LifecycleLost, item.LifecycleState)
	assert.Equal(t, metadata.StatusLost, item.Status)
}

func TestGetUnknownEquipment(t *testing.T) {
	service := newTestService(newFakeStore(), nil)

	_, err := service.Get(42)
	assert.True(t, apperrors.IsNotFound(err))
}
