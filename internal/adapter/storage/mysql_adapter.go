package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/cartstore/internal/core/domain"
	"github.com/rl1809/cartstore/internal/port"
)

// MySQLAdapter serves stock and catalog lookups from the inventory database.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetStock(ctx context.Context, itemID int) (domain.Stock, error) {
	stock := domain.Stock{ItemID: itemID}
	err := m.db.QueryRowContext(ctx, `
		SELECT amount FROM stock WHERE item_id = ?`, itemID,
	).Scan(&stock.Amount)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stock{}, port.ErrItemNotFound
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("query stock: %w", err)
	}

	return stock, nil
}

func (m *MySQLAdapter) GetCatalogItem(ctx context.Context, itemID int) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, image_url
		FROM products WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.Name, &item.Price, &item.ImageURL)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.CatalogItem{}, port.ErrItemNotFound
	}
	if err != nil {
		return domain.CatalogItem{}, fmt.Errorf("query product: %w", err)
	}

	return item, nil
}

// SetStock creates or overwrites the stock row of an item.
func (m *MySQLAdapter) SetStock(ctx context.Context, itemID, amount int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO stock (item_id, amount) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE amount = VALUES(amount)`,
		itemID, amount,
	)
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}

	return nil
}

// UpsertProduct creates or overwrites a catalog row.
func (m *MySQLAdapter) UpsertProduct(ctx context.Context, item domain.CatalogItem) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, image_url) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), price = VALUES(price), image_url = VALUES(image_url)`,
		item.ID, item.Name, item.Price, item.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
