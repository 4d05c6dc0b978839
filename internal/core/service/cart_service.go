package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/cartstore/internal/core/domain"
	"github.com/rl1809/cartstore/internal/port"
)

const DefaultSnapshotKey = "@cartstore:cart"

var (
	ErrOutOfStock   = errors.New("requested quantity is out of stock")
	ErrLineNotFound = errors.New("cart line not found")
)

// CartService owns the cart. Every mutation holds mu from the first read to
// the commit, so inventory checks and the snapshot write are never
// interleaved with another mutation.
type CartService struct {
	inventory   port.InventoryService
	snapshots   port.SnapshotRepository
	notifier    port.Notifier
	logger      *zap.Logger
	snapshotKey string

	mu   sync.Mutex
	cart domain.Cart

	subMu       sync.Mutex
	subscribers map[int]chan domain.Cart
	nextSubID   int
}

type Option func(*CartService)

func WithSnapshotKey(key string) Option {
	return func(s *CartService) {
		if key != "" {
			s.snapshotKey = key
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *CartService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCartService restores the last saved cart. A missing or unreadable
// snapshot starts an empty cart.
func NewCartService(ctx context.Context, inventory port.InventoryService, snapshots port.SnapshotRepository, notifier port.Notifier, opts ...Option) *CartService {
	s := &CartService{
		inventory:   inventory,
		snapshots:   snapshots,
		notifier:    notifier,
		logger:      zap.NewNop(),
		snapshotKey: DefaultSnapshotKey,
		cart:        domain.Cart{},
		subscribers: make(map[int]chan domain.Cart),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("cart.service")

	s.restore(ctx)
	return s
}

func (s *CartService) restore(ctx context.Context) {
	blob, err := s.snapshots.Load(ctx, s.snapshotKey)
	if errors.Is(err, port.ErrSnapshotNotFound) {
		s.logger.Info("no saved cart, starting empty", zap.String("key", s.snapshotKey))
		return
	}
	if err != nil {
		s.logger.Warn("failed to load cart snapshot, starting empty", zap.String("key", s.snapshotKey), zap.Error(err))
		return
	}

	cart, err := domain.UnmarshalSnapshot(blob)
	if err != nil {
		s.logger.Warn("discarding unreadable cart snapshot", zap.String("key", s.snapshotKey), zap.Error(err))
		return
	}

	s.cart = cart
	s.logger.Info("cart restored", zap.Int("lines", len(cart)), zap.Int("units", cart.TotalQuantity()))
}

// Cart returns a copy of the current cart.
func (s *CartService) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// AddItem adds one unit of itemID, creating the line from the catalog when
// the item is not in the cart yet.
func (s *CartService) AddItem(ctx context.Context, itemID int) {
	if err := s.addItem(ctx, itemID); err != nil {
		s.report(ctx, domain.OperationAdd, itemID, err)
	}
}

func (s *CartService) addItem(ctx context.Context, itemID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.cart
	existing, found := current.Line(itemID)
	requested := existing.Quantity + 1

	stock, err := s.inventory.GetStock(ctx, itemID)
	if err != nil {
		return fmt.Errorf("get stock: %w", err)
	}
	if requested > stock.Amount {
		return ErrOutOfStock
	}

	var next domain.Cart
	if found {
		next = current.WithQuantity(itemID, requested)
	} else {
		item, err := s.inventory.GetCatalogItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("get catalog item: %w", err)
		}
		item.ID = itemID
		next = current.Append(domain.NewCartLine(item))
	}

	return s.commit(ctx, next)
}

// RemoveItem deletes the line of itemID.
func (s *CartService) RemoveItem(ctx context.Context, itemID int) {
	if err := s.removeItem(ctx, itemID); err != nil {
		s.report(ctx, domain.OperationRemove, itemID, err)
	}
}

func (s *CartService) removeItem(ctx context.Context, itemID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart.Index(itemID) < 0 {
		return ErrLineNotFound
	}

	return s.commit(ctx, s.cart.Without(itemID))
}

// SetQuantity replaces the quantity of an existing line. Non-positive
// quantities are ignored; RemoveItem deletes lines.
func (s *CartService) SetQuantity(ctx context.Context, itemID, quantity int) {
	if err := s.setQuantity(ctx, itemID, quantity); err != nil {
		s.report(ctx, domain.OperationSetQuantity, itemID, err)
	}
}

func (s *CartService) setQuantity(ctx context.Context, itemID, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, err := s.inventory.GetStock(ctx, itemID)
	if err != nil {
		return fmt.Errorf("get stock: %w", err)
	}
	if quantity > stock.Amount {
		return ErrOutOfStock
	}

	line, found := s.cart.Line(itemID)
	if !found {
		return ErrLineNotFound
	}
	if line.Quantity == quantity {
		return nil
	}

	return s.commit(ctx, s.cart.WithQuantity(itemID, quantity))
}

// commit saves next and only then makes it the current cart. Callers hold mu.
func (s *CartService) commit(ctx context.Context, next domain.Cart) error {
	blob, err := domain.MarshalSnapshot(next)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.snapshots.Save(ctx, s.snapshotKey, blob); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	s.cart = next
	s.publish(next)
	return nil
}

func (s *CartService) report(ctx context.Context, op domain.Operation, itemID int, err error) {
	kind := classify(err)
	notice := domain.NewNotice(kind, op, itemID)

	s.logger.Warn("cart operation rejected",
		zap.String("operation", string(op)),
		zap.Int("item_id", itemID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)

	if s.notifier != nil {
		s.notifier.Notify(ctx, notice)
	}
}

func classify(err error) domain.NoticeKind {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return domain.NoticeOutOfStock
	case errors.Is(err, ErrLineNotFound), errors.Is(err, port.ErrItemNotFound):
		return domain.NoticeNotFound
	default:
		return domain.NoticeUpstreamFailure
	}
}

// Subscribe registers an observer that receives every committed cart.
// Sends never block: a subscriber whose buffer is full misses that update.
func (s *CartService) Subscribe(buffer int) (<-chan domain.Cart, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Cart, buffer)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *CartService) publish(cart domain.Cart) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- cart.Clone():
		default:
			s.logger.Debug("subscriber lagging, update dropped", zap.Int("subscriber", id))
		}
	}
}
