package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"rentals/src/config"
	"rentals/src/types"

	"github.com/google/uuid"
)

// ProductsClient is the typed capability against the product service: the
// catalog product and the specific inventory item a rental is booked on.
type ProductsClient struct {
	baseURL string
	http    *http.Client
}

func NewProductsClient(tokens TokenProvider) *ProductsClient {
	return &ProductsClient{
		baseURL: config.ProductServiceURL(),
		http:    newAuthedHTTPClient(tokens),
	}
}

// NewProductsClientWithBaseURL is used by tests to point at a stand-in server.
func NewProductsClientWithBaseURL(baseURL string, tokens TokenProvider) *ProductsClient {
	return &ProductsClient{baseURL: baseURL, http: newAuthedHTTPClient(tokens)}
}

func (c *ProductsClient) GetProductByID(ctx context.Context, id uuid.UUID) Lookup[types.RentalProduct] {
	url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, id)
	return getJSON[types.RentalProduct](ctx, c.http, url, "products:"+id.String())
}

func (c *ProductsClient) GetInventoryItemByID(ctx context.Context, id uuid.UUID) Lookup[types.RentalInventoryItem] {
	url := fmt.Sprintf("%s/api/v1/inventory/%s", c.baseURL, id)
	// Inventory status is too volatile to serve stale.
	return getJSON[types.RentalInventoryItem](ctx, c.http, url, "")
}

// UpdateInventoryItemStatus tells the product service an item moved between
// available/reserved/rented. Best effort on the caller's side.
func (c *ProductsClient) UpdateInventoryItemStatus(ctx context.Context, id uuid.UUID, status string, notes string) error {
	ctx, cancel := context.WithTimeout(ctx, config.RemoteCallTimeout())
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"inventory_item_id": id,
		"status":            status,
		"notes":             notes,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/inventory/%s/status", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("PUT %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}
