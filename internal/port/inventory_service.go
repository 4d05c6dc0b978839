package port

import (
	"context"
	"errors"

	"github.com/rl1809/cartstore/internal/core/domain"
)

// ErrItemNotFound is returned when the inventory cannot resolve an item id.
var ErrItemNotFound = errors.New("item not found")

type InventoryService interface {
	// GetStock returns the currently available amount of an item
	GetStock(ctx context.Context, itemID int) (domain.Stock, error)

	// GetCatalogItem returns the catalog metadata of an item
	GetCatalogItem(ctx context.Context, itemID int) (domain.CatalogItem, error)
}
