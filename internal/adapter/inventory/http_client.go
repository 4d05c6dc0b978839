package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/cartstore/internal/core/domain"
	"github.com/rl1809/cartstore/internal/port"
)

const maxBodySize = 1 << 20

var ErrMalformedResponse = errors.New("malformed inventory response")

// HTTPClient talks to the remote stock and catalog API:
//
//	GET /stock/{id}    -> {"id": 1, "amount": 3}
//	GET /products/{id} -> {"id": 1, "name": "...", "price": 179.9, "imageUrl": "...", ...}
//
// Catalog fields other than id, name, price and imageUrl are kept on the item.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type stockResponse struct {
	Amount *int `json:"amount"`
}

func (c *HTTPClient) GetStock(ctx context.Context, itemID int) (domain.Stock, error) {
	var resp stockResponse
	path := "/stock/" + strconv.Itoa(itemID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return domain.Stock{}, err
	}
	if resp.Amount == nil {
		return domain.Stock{}, fmt.Errorf("decode %s: %w: missing amount", path, ErrMalformedResponse)
	}

	return domain.Stock{ItemID: itemID, Amount: *resp.Amount}, nil
}

func (c *HTTPClient) GetCatalogItem(ctx context.Context, itemID int) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	if err := c.getJSON(ctx, "/products/"+strconv.Itoa(itemID), &item); err != nil {
		return domain.CatalogItem{}, err
	}
	if item.ID != 0 && item.ID != itemID {
		return domain.CatalogItem{}, fmt.Errorf("catalog returned item %d for %d", item.ID, itemID)
	}

	item.ID = itemID
	return item, nil
}

// Ping checks that the API answers at all; any HTTP status counts as up.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("request %s: %w", path, port.ErrItemNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
