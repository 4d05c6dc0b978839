package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/cartstore/internal/core/domain"
	"github.com/rl1809/cartstore/internal/port"
)

// Mock InventoryService
type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) GetStock(ctx context.Context, itemID int) (domain.Stock, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(domain.Stock), args.Error(1)
}

func (m *mockInventory) GetCatalogItem(ctx context.Context, itemID int) (domain.CatalogItem, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(domain.CatalogItem), args.Error(1)
}

// Fake SnapshotRepository
type fakeSnapshots struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saves   int
	saveErr error
	loadErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{blobs: make(map[string][]byte)}
}

func (f *fakeSnapshots) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	blob, ok := f.blobs[key]
	if !ok {
		return nil, port.ErrSnapshotNotFound
	}
	return blob, nil
}

func (f *fakeSnapshots) Save(ctx context.Context, key string, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.blobs[key] = append([]byte(nil), blob...)
	f.saves++
	return nil
}

func (f *fakeSnapshots) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeSnapshots) stored(t *testing.T) domain.Cart {
	t.Helper()
	f.mu.Lock()
	blob, ok := f.blobs[DefaultSnapshotKey]
	f.mu.Unlock()
	require.True(t, ok, "no snapshot saved")
	cart, err := domain.UnmarshalSnapshot(blob)
	require.NoError(t, err)
	return cart
}

// Recording Notifier
type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notice(nil), r.notices...)
}

type fixture struct {
	inventory *mockInventory
	snapshots *fakeSnapshots
	notifier  *recordingNotifier
	svc       *CartService
}

func newFixture(t *testing.T, initial domain.Cart) *fixture {
	t.Helper()
	f := &fixture{
		inventory: &mockInventory{},
		snapshots: newFakeSnapshots(),
		notifier:  &recordingNotifier{},
	}
	if initial != nil {
		blob, err := domain.MarshalSnapshot(initial)
		require.NoError(t, err)
		f.snapshots.blobs[DefaultSnapshotKey] = blob
	}
	f.svc = NewCartService(context.Background(), f.inventory, f.snapshots, f.notifier)
	return f
}

func catalogItem(id int, name string) domain.CatalogItem {
	return domain.CatalogItem{ID: id, Name: name, Price: decimal.NewFromInt(10), ImageURL: "https://img/" + name}
}

func lineOf(id, quantity int) domain.CartLine {
	line := domain.NewCartLine(catalogItem(id, "item"))
	line.Quantity = quantity
	return line
}

func TestNewCartService_StartsEmptyWithoutSnapshot(t *testing.T) {
	f := newFixture(t, nil)

	assert.Empty(t, f.svc.Cart())
}

func TestNewCartService_RestoresSnapshot(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2), lineOf(9, 1)})

	cart := f.svc.Cart()
	require.Len(t, cart, 2)
	assert.Equal(t, 7, cart[0].ItemID())
	assert.Equal(t, 2, cart[0].Quantity)
}

func TestNewCartService_UnreadableSnapshot(t *testing.T) {
	snapshots := newFakeSnapshots()
	snapshots.blobs[DefaultSnapshotKey] = []byte("{not json")

	svc := NewCartService(context.Background(), &mockInventory{}, snapshots, &recordingNotifier{})

	assert.Empty(t, svc.Cart())
}

func TestNewCartService_LoadError(t *testing.T) {
	snapshots := newFakeSnapshots()
	snapshots.loadErr = errors.New("connection refused")

	svc := NewCartService(context.Background(), &mockInventory{}, snapshots, &recordingNotifier{})

	assert.Empty(t, svc.Cart())
}

func TestNewCartService_CustomSnapshotKey(t *testing.T) {
	snapshots := newFakeSnapshots()
	blob, _ := domain.MarshalSnapshot(domain.Cart{lineOf(3, 1)})
	snapshots.blobs["other"] = blob

	svc := NewCartService(context.Background(), &mockInventory{}, snapshots, nil, WithSnapshotKey("other"))

	assert.Len(t, svc.Cart(), 1)
}

func TestAddItem_NewLine(t *testing.T) {
	f := newFixture(t, nil)
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 5}, nil)
	f.inventory.On("GetCatalogItem", mock.Anything, 7).Return(catalogItem(7, "Shoe"), nil)

	f.svc.AddItem(context.Background(), 7)

	cart := f.svc.Cart()
	require.Len(t, cart, 1)
	assert.Equal(t, 7, cart[0].ItemID())
	assert.Equal(t, 1, cart[0].Quantity)
	assert.Equal(t, "Shoe", cart[0].Name)
	assert.True(t, cart[0].Price.Equal(decimal.NewFromInt(10)))
	assert.True(t, f.snapshots.stored(t).Equal(cart))
	assert.Empty(t, f.notifier.all())
	f.inventory.AssertExpectations(t)
}

func TestAddItem_ExistingLineDoesNotRefetchCatalog(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2)})
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 5}, nil)

	f.svc.AddItem(context.Background(), 7)

	cart := f.svc.Cart()
	require.Len(t, cart, 1)
	assert.Equal(t, 3, cart[0].Quantity)
	assert.Equal(t, 1, f.snapshots.saveCount())
	f.inventory.AssertNotCalled(t, "GetCatalogItem", mock.Anything, mock.Anything)
}

func TestAddItem_AppendsNewLinesInOrder(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(9, 1)})
	f.inventory.On("GetStock", mock.Anything, mock.Anything).Return(domain.Stock{Amount: 10}, nil)
	f.inventory.On("GetCatalogItem", mock.Anything, 3).Return(catalogItem(3, "Sock"), nil)
	f.inventory.On("GetCatalogItem", mock.Anything, 1).Return(catalogItem(1, "Hat"), nil)

	f.svc.AddItem(context.Background(), 3)
	f.svc.AddItem(context.Background(), 1)
	f.svc.AddItem(context.Background(), 9)

	cart := f.svc.Cart()
	require.Len(t, cart, 3)
	assert.Equal(t, []int{9, 3, 1}, []int{cart[0].ItemID(), cart[1].ItemID(), cart[2].ItemID()})
	assert.Equal(t, 2, cart[0].Quantity)
}

func TestAddItem_OutOfStock(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 5)})
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 5}, nil)
	before := f.svc.Cart()

	f.svc.AddItem(context.Background(), 7)

	after := f.svc.Cart()
	beforeBlob, _ := domain.MarshalSnapshot(before)
	afterBlob, _ := domain.MarshalSnapshot(after)
	assert.Equal(t, beforeBlob, afterBlob)
	assert.Equal(t, 0, f.snapshots.saveCount())

	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeOutOfStock, notices[0].Kind)
	assert.Equal(t, domain.MessageOutOfStock, notices[0].Message)
	assert.Equal(t, domain.OperationAdd, notices[0].Operation)
}

func TestAddItem_ZeroStockForNewItem(t *testing.T) {
	f := newFixture(t, nil)
	f.inventory.On("GetStock", mock.Anything, 4).Return(domain.Stock{ItemID: 4, Amount: 0}, nil)

	f.svc.AddItem(context.Background(), 4)

	assert.Empty(t, f.svc.Cart())
	require.Len(t, f.notifier.all(), 1)
	assert.Equal(t, domain.NoticeOutOfStock, f.notifier.all()[0].Kind)
	f.inventory.AssertNotCalled(t, "GetCatalogItem", mock.Anything, mock.Anything)
}

func TestAddItem_NeverExceedsStock(t *testing.T) {
	f := newFixture(t, nil)
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 3}, nil)
	f.inventory.On("GetCatalogItem", mock.Anything, 7).Return(catalogItem(7, "Shoe"), nil)

	for i := 0; i < 6; i++ {
		f.svc.AddItem(context.Background(), 7)
	}

	line, ok := f.svc.Cart().Line(7)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 3, f.snapshots.saveCount())
	assert.Len(t, f.notifier.all(), 3)
}

func TestAddItem_InventoryFailures(t *testing.T) {
	tests := []struct {
		name     string
		stockErr error
		itemErr  error
		kind     domain.NoticeKind
	}{
		{"stock request fails", errors.New("503 service unavailable"), nil, domain.NoticeUpstreamFailure},
		{"stock item unknown", port.ErrItemNotFound, nil, domain.NoticeNotFound},
		{"catalog request fails", nil, errors.New("malformed response"), domain.NoticeUpstreamFailure},
		{"catalog item unknown", nil, port.ErrItemNotFound, domain.NoticeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 5}, tt.stockErr)
			f.inventory.On("GetCatalogItem", mock.Anything, 7).Return(domain.CatalogItem{}, tt.itemErr)

			f.svc.AddItem(context.Background(), 7)

			assert.Empty(t, f.svc.Cart())
			assert.Equal(t, 0, f.snapshots.saveCount())
			notices := f.notifier.all()
			require.Len(t, notices, 1)
			assert.Equal(t, tt.kind, notices[0].Kind)
			assert.Equal(t, "Failed to add item", notices[0].Message)
		})
	}
}

func TestAddItem_SaveFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 1)})
	f.snapshots.saveErr = errors.New("redis: connection pool timeout")
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 5}, nil)

	f.svc.AddItem(context.Background(), 7)

	line, _ := f.svc.Cart().Line(7)
	assert.Equal(t, 1, line.Quantity)
	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeUpstreamFailure, notices[0].Kind)
}

func TestRemoveItem_PreservesOrder(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 1), lineOf(8, 2), lineOf(9, 3)})

	f.svc.RemoveItem(context.Background(), 8)

	cart := f.svc.Cart()
	require.Len(t, cart, 2)
	assert.Equal(t, 7, cart[0].ItemID())
	assert.Equal(t, 9, cart[1].ItemID())
	assert.Equal(t, 3, cart[1].Quantity)
	assert.True(t, f.snapshots.stored(t).Equal(cart))
	f.inventory.AssertNotCalled(t, "GetStock", mock.Anything, mock.Anything)
}

func TestRemoveItem_Scenario(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 1), lineOf(9, 1)})

	f.svc.RemoveItem(context.Background(), 7)

	cart := f.svc.Cart()
	require.Len(t, cart, 1)
	assert.Equal(t, 9, cart[0].ItemID())
}

func TestRemoveItem_Missing(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 1)})

	f.svc.RemoveItem(context.Background(), 42)

	assert.Len(t, f.svc.Cart(), 1)
	assert.Equal(t, 0, f.snapshots.saveCount())
	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeNotFound, notices[0].Kind)
	assert.Equal(t, "Failed to remove item", notices[0].Message)
	assert.Equal(t, 42, notices[0].ItemID)
}

func TestSetQuantity_Updates(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2)})
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 10}, nil)

	f.svc.SetQuantity(context.Background(), 7, 4)

	line, ok := f.svc.Cart().Line(7)
	require.True(t, ok)
	assert.Equal(t, 4, line.Quantity)
	stored, _ := f.snapshots.stored(t).Line(7)
	assert.Equal(t, 4, stored.Quantity)
	assert.Empty(t, f.notifier.all())
}

func TestSetQuantity_NonPositiveIsSilentNoop(t *testing.T) {
	for _, quantity := range []int{0, -1} {
		f := newFixture(t, domain.Cart{lineOf(7, 2)})

		f.svc.SetQuantity(context.Background(), 7, quantity)

		line, _ := f.svc.Cart().Line(7)
		assert.Equal(t, 2, line.Quantity)
		assert.Equal(t, 0, f.snapshots.saveCount())
		assert.Empty(t, f.notifier.all())
		f.inventory.AssertNotCalled(t, "GetStock", mock.Anything, mock.Anything)
	}
}

func TestSetQuantity_OutOfStock(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2)})
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 3}, nil)

	f.svc.SetQuantity(context.Background(), 7, 4)

	line, _ := f.svc.Cart().Line(7)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 0, f.snapshots.saveCount())
	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeOutOfStock, notices[0].Kind)
	assert.Equal(t, domain.OperationSetQuantity, notices[0].Operation)
}

func TestSetQuantity_MissingLine(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2)})
	f.inventory.On("GetStock", mock.Anything, 8).Return(domain.Stock{ItemID: 8, Amount: 10}, nil)

	f.svc.SetQuantity(context.Background(), 8, 1)

	assert.Len(t, f.svc.Cart(), 1)
	assert.Equal(t, 0, f.snapshots.saveCount())
	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeNotFound, notices[0].Kind)
	assert.Equal(t, "Failed to update item quantity", notices[0].Message)
}

func TestSetQuantity_StockError(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2)})
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{}, errors.New("timeout"))

	f.svc.SetQuantity(context.Background(), 7, 3)

	line, _ := f.svc.Cart().Line(7)
	assert.Equal(t, 2, line.Quantity)
	require.Len(t, f.notifier.all(), 1)
	assert.Equal(t, domain.NoticeUpstreamFailure, f.notifier.all()[0].Kind)
}

func TestSetQuantity_SameValueDoesNotWrite(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2)})
	f.inventory.On("GetStock", mock.Anything, 7).Return(domain.Stock{ItemID: 7, Amount: 10}, nil)

	f.svc.SetQuantity(context.Background(), 7, 2)

	assert.Equal(t, 0, f.snapshots.saveCount())
	assert.Empty(t, f.notifier.all())
}

func TestCart_ReturnsCopy(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 2)})

	cart := f.svc.Cart()
	cart[0].Quantity = 99

	line, _ := f.svc.Cart().Line(7)
	assert.Equal(t, 2, line.Quantity)
}

func TestSubscribe_ReceivesCommittedCarts(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 1), lineOf(9, 1)})
	updates, cancel := f.svc.Subscribe(4)
	defer cancel()

	f.svc.RemoveItem(context.Background(), 7)
	f.svc.RemoveItem(context.Background(), 42)

	got := <-updates
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].ItemID())
	select {
	case extra := <-updates:
		t.Fatalf("unexpected update after failed operation: %v", extra)
	default:
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(7, 1)})
	updates, cancel := f.svc.Subscribe(1)

	cancel()
	cancel()

	_, open := <-updates
	assert.False(t, open)
	f.svc.RemoveItem(context.Background(), 7)
	assert.Empty(t, f.svc.Cart())
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	f := newFixture(t, domain.Cart{lineOf(1, 1), lineOf(2, 1), lineOf(3, 1)})
	_, cancel := f.svc.Subscribe(1)
	defer cancel()

	f.svc.RemoveItem(context.Background(), 1)
	f.svc.RemoveItem(context.Background(), 2)
	f.svc.RemoveItem(context.Background(), 3)

	assert.Empty(t, f.svc.Cart())
}

func TestAddItem_ConcurrentCallsRespectStock(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	f := newFixture(t, nil)
	f.inventory.On("GetStock", mock.Anything, 1).Return(domain.Stock{ItemID: 1, Amount: initialStock}, nil)
	f.inventory.On("GetCatalogItem", mock.Anything, 1).Return(catalogItem(1, "Shoe"), nil)

	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.AddItem(context.Background(), 1)
		}()
	}
	wg.Wait()

	line, ok := f.svc.Cart().Line(1)
	require.True(t, ok)
	assert.Equal(t, initialStock, line.Quantity)
	assert.Equal(t, initialStock, f.snapshots.saveCount())
	assert.Len(t, f.notifier.all(), totalRequests-initialStock)

	stored, _ := f.snapshots.stored(t).Line(1)
	assert.Equal(t, initialStock, stored.Quantity)
}

func TestRestart_RestoresLastSavedCart(t *testing.T) {
	f := newFixture(t, nil)
	f.inventory.On("GetStock", mock.Anything, mock.Anything).Return(domain.Stock{Amount: 10}, nil)
	f.inventory.On("GetCatalogItem", mock.Anything, 7).Return(catalogItem(7, "Shoe"), nil)
	f.inventory.On("GetCatalogItem", mock.Anything, 9).Return(catalogItem(9, "Boot"), nil)

	f.svc.AddItem(context.Background(), 7)
	f.svc.AddItem(context.Background(), 9)
	f.svc.SetQuantity(context.Background(), 9, 4)

	restarted := NewCartService(context.Background(), f.inventory, f.snapshots, f.notifier)

	assert.True(t, restarted.Cart().Equal(f.svc.Cart()))
}
