package usage

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"toolroom/internal/events"
	"toolroom/internal/notify"
	"toolroom/pkg/apperrors"
	"toolroom/pkg/auditlog"
	"toolroom/pkg/metadata"
	"toolroom/pkg/models"
)

type stubRunner struct{}

func (stubRunner) RunInTransaction(fn func(tx *goqu.TxDatabase) error) error {
	return fn(nil)
}

type fakeLedger struct {
	mu    sync.Mutex
	items map[int]*models.EquipmentItem
}

func newFakeLedger(items ...*models.EquipmentItem) *fakeLedger {
	ledger := &fakeLedger{items: make(map[int]*models.EquipmentItem)}
	for _, item := range items {
		ledger.items[item.ID] = item
	}
	return ledger
}

func (l *fakeLedger) GetEquipmentTx(_ *goqu.TxDatabase, id int) (*models.EquipmentItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return nil, apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}
	copied := *item
	copied.RefreshStatus()
	return &copied, nil
}

func (l *fakeLedger) ReserveAvailable(_ *goqu.TxDatabase, id, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return apperrors.NewNotFound("equipment", strconv.Itoa(id))
	}
	if item.AvailableQuantity < qty {
		return &apperrors.InsufficientStockError{EquipmentID: id, Requested: qty}
	}
	item.AvailableQuantity -= qty
	return nil
}

func (l *fakeLedger) RestoreAvailable(_ *goqu.TxDatabase, id, qty int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return false, nil
	}
	item.AvailableQuantity += qty
	if item.AvailableQuantity > item.Quantity {
		item.AvailableQuantity = item.Quantity
	}
	return true, nil
}

func (l *fakeLedger) available(id int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[id].AvailableQuantity
}

func (l *fakeLedger) status(id int) metadata.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	item := l.items[id]
	return metadata.DeriveStatus(item.LifecycleState, item.AvailableQuantity, item.MinStock)
}

type fakeRecords struct {
	mu      sync.Mutex
	records map[string]*models.UsageRecord
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]*models.UsageRecord)}
}

func (r *fakeRecords) InsertUsageRecordTx(_ *goqu.TxDatabase, record *models.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *fakeRecords) GetUsageRecordTx(_ *goqu.TxDatabase, id string) (*models.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, apperrors.NewNotFound("usage record", id)
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRecords) MarkReturnRequestedTx(_ *goqu.TxDatabase, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return apperrors.NewNotFound("usage record", id)
	}
	record.Status = models.UsageStatusPendingReturn
	record.ReturnRequestedAt = &at
	return nil
}

func (r *fakeRecords) MarkReturnedTx(_ *goqu.TxDatabase, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return apperrors.NewNotFound("usage record", id)
	}
	record.Status = models.UsageStatusReturned
	record.ReturnConfirmedAt = &at
	return nil
}

func (r *fakeRecords) ListUsageRecords(_ UsageFilter) ([]models.UsageRecord, error) {
	return nil, nil
}

type noopPersister struct{}

func (noopPersister) PersistLog(models.AuditLog, interface{}) error { return nil }

type noopNotifier struct{}

func (noopNotifier) Notify(notify.Message) {}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *captureNotifier) Notify(msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *captureNotifier) equipmentName(event string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, msg := range n.msgs {
		if msg.Event == event {
			return msg.EquipmentName, true
		}
	}
	return "", false
}

func newTestService(ledger *fakeLedger, records *fakeRecords) *UsageService {
	log := zap.NewNop()
	return NewUsageService(
		stubRunner{},
		records,
		ledger,
		auditlog.NewAuditLog(noopPersister{}, log),
		events.NewBus(log),
		noopNotifier{},
		log,
	)
}

func borrowableItem(id, quantity int) *models.EquipmentItem {
	return &models.EquipmentItem{
		ID:                id,
		Name:              fmt.Sprintf("item-%d", id),
		Kind:              models.KindBorrowable,
		Quantity:          quantity,
		AvailableQuantity: quantity,
		LifecycleState:    metadata.LifecycleOperational,
	}
}

func TestBorrowReservesStock(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 10))
	service := newTestService(ledger, newFakeRecords())

	record, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 4, Kind: "borrow",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.UsageStatusActive, record.Status)
	assert.Equal(t, models.UsageKindBorrow, record.Kind)
	assert.Equal(t, 6, ledger.available(1))
	assert.Equal(t, metadata.StatusAvailable, ledger.status(1))
}

func TestBorrowInsufficientStock(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 3))
	records := newFakeRecords()
	service := newTestService(ledger, records)

	_, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 4, Kind: "borrow",
	})

	var insufficient *apperrors.InsufficientStockError
	assert.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, ledger.available(1))
	assert.Empty(t, records.records)
}

func TestBorrowUnknownEquipment(t *testing.T) {
	service := newTestService(newFakeLedger(), newFakeRecords())

	_, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 99, UserID: "u-1", Quantity: 1, Kind: "borrow",
	})

	assert.True(t, apperrors.IsNotFound(err))
}

func TestBorrowRetiredEquipment(t *testing.T) {
	item := borrowableItem(1, 5)
	item.LifecycleState = metadata.LifecycleRetired
	service := newTestService(newFakeLedger(item), newFakeRecords())

	_, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 1, Kind: "borrow",
	})

	var invalidState *apperrors.InvalidStateError
	assert.ErrorAs(t, err, &invalidState)
}

func TestBorrowValidation(t *testing.T) {
	service := newTestService(newFakeLedger(borrowableItem(1, 5)), newFakeRecords())

	var validation *apperrors.ValidationError

	_, err := service.BorrowOrWithdraw(models.UsageRequest{EquipmentID: 1, UserID: "u-1", Quantity: 0, Kind: "borrow"})
	assert.ErrorAs(t, err, &validation)

	_, err = service.BorrowOrWithdraw(models.UsageRequest{EquipmentID: 1, UserID: "u-1", Quantity: 1, Kind: "steal"})
	assert.ErrorAs(t, err, &validation)

	_, err = service.BorrowOrWithdraw(models.UsageRequest{EquipmentID: 1, Quantity: 1, Kind: "borrow"})
	assert.ErrorAs(t, err, &validation)
}

func TestWithdrawHasNoReturnPath(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 10))
	service := newTestService(ledger, newFakeRecords())

	record, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 2, Kind: "withdraw",
	})
	assert.NoError(t, err)
	assert.Equal(t, 8, ledger.available(1))

	_, err = service.ConfirmReturn(record.ID)
	var invalidState *apperrors.InvalidStateError
	assert.ErrorAs(t, err, &invalidState)
	assert.Equal(t, 8, ledger.available(1), "withdrawn units must never come back")
}

func TestReturnRoundTrip(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 10))
	service := newTestService(ledger, newFakeRecords())

	record, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 3, Kind: "borrow",
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, ledger.available(1))

	returned, err := service.ConfirmReturn(record.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.UsageStatusReturned, returned.Status)
	assert.NotNil(t, returned.ReturnConfirmedAt)
	assert.Equal(t, 10, ledger.available(1), "round trip must restore the exact pre-borrow value")
}

func TestConfirmReturnIsIdempotent(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 10))
	service := newTestService(ledger, newFakeRecords())

	record, _ := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 3, Kind: "borrow",
	})

	_, err := service.ConfirmReturn(record.ID)
	assert.NoError(t, err)

	_, err = service.ConfirmReturn(record.ID)
	assert.True(t, apperrors.IsAlreadyProcessed(err))
	assert.Equal(t, 10, ledger.available(1), "second confirmation must not change quantities")
}

func TestReturnConfirmationNamesTheEquipment(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 10))
	notifier := &captureNotifier{}
	log := zap.NewNop()
	service := NewUsageService(
		stubRunner{},
		newFakeRecords(),
		ledger,
		auditlog.NewAuditLog(noopPersister{}, log),
		events.NewBus(log),
		notifier,
		log,
	)

	record, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 3, Kind: "borrow",
	})
	assert.NoError(t, err)

	_, err = service.ConfirmReturn(record.ID)
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		name, ok := notifier.equipmentName("return_confirmed")
		return ok && name == "item-1"
	}, time.Second, 10*time.Millisecond, "the confirmation notification must carry the equipment name")
}

func TestRequestReturnThenConfirm(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 5))
	service := newTestService(ledger, newFakeRecords())

	record, _ := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 2, Kind: "borrow",
	})

	pending, err := service.RequestReturn(record.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.UsageStatusPendingReturn, pending.Status)
	assert.NotNil(t, pending.ReturnRequestedAt)
	assert.Equal(t, 3, ledger.available(1), "return request must not change quantities")

	_, err = service.RequestReturn(record.ID)
	assert.True(t, apperrors.IsAlreadyProcessed(err))

	returned, err := service.ConfirmReturn(record.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.UsageStatusReturned, returned.Status)
	assert.Equal(t, 5, ledger.available(1))
}

func TestExhaustionScenario(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 10))
	service := newTestService(ledger, newFakeRecords())

	first, err := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 4, Kind: "borrow",
	})
	assert.NoError(t, err)
	assert.Equal(t, 6, ledger.available(1))
	assert.Equal(t, metadata.StatusAvailable, ledger.status(1))

	_, err = service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-2", Quantity: 6, Kind: "borrow",
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, ledger.available(1))
	assert.Equal(t, metadata.StatusOutOfStock, ledger.status(1))

	_, err = service.ConfirmReturn(first.ID)
	assert.NoError(t, err)
	assert.Equal(t, 4, ledger.available(1))
	assert.Equal(t, metadata.StatusAvailable, ledger.status(1))
}

func TestConcurrentBorrowsNeverOverdraw(t *testing.T) {
	const workers = 8
	const stock = 5

	ledger := newFakeLedger(borrowableItem(1, stock))
	service := newTestService(ledger, newFakeRecords())

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			_, err := service.BorrowOrWithdraw(models.UsageRequest{
				EquipmentID: 1,
				UserID:      fmt.Sprintf("u-%d", worker),
				Quantity:    1,
				Kind:        "borrow",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var successes, failures int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		var insufficient *apperrors.InsufficientStockError
		assert.ErrorAs(t, err, &insufficient)
		failures++
	}

	assert.Equal(t, stock, successes)
	assert.Equal(t, workers-stock, failures)
	assert.Equal(t, 0, ledger.available(1))
}

func TestBulkConfirmReturnsPartialSuccess(t *testing.T) {
	ledger := newFakeLedger(borrowableItem(1, 10))
	service := newTestService(ledger, newFakeRecords())

	first, _ := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-1", Quantity: 2, Kind: "borrow",
	})
	second, _ := service.BorrowOrWithdraw(models.UsageRequest{
		EquipmentID: 1, UserID: "u-2", Quantity: 3, Kind: "borrow",
	})

	_, err := service.ConfirmReturn(first.ID)
	assert.NoError(t, err)

	outcomes := service.BulkConfirmReturns([]string{first.ID, "missing-id", second.ID})

	assert.Len(t, outcomes, 3)
	assert.Equal(t, models.ReturnOutcomeAlreadyReturned, outcomes[0].Outcome)
	assert.Equal(t, models.ReturnOutcomeFailed, outcomes[1].Outcome)
	assert.Equal(t, models.ReturnOutcomeSuccess, outcomes[2].Outcome, "a failed id must not block later ids")
	assert.Equal(t, 10, ledger.available(1))
}
