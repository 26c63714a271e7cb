package lib

import (
	"context"
	"fmt"
	"net/http"
	"rentals/src/config"
	"rentals/src/types"

	"github.com/google/uuid"
)

// CustomersClient is the typed capability against the customer service.
type CustomersClient struct {
	baseURL string
	http    *http.Client
}

func NewCustomersClient(tokens TokenProvider) *CustomersClient {
	return &CustomersClient{
		baseURL: config.CustomerServiceURL(),
		http:    newAuthedHTTPClient(tokens),
	}
}

func NewCustomersClientWithBaseURL(baseURL string, tokens TokenProvider) *CustomersClient {
	return &CustomersClient{baseURL: baseURL, http: newAuthedHTTPClient(tokens)}
}

func (c *CustomersClient) GetCustomerByID(ctx context.Context, id uuid.UUID) Lookup[types.RentalCustomer] {
	url := fmt.Sprintf("%s/api/v1/customers/%s", c.baseURL, id)
	return getJSON[types.RentalCustomer](ctx, c.http, url, "customers:"+id.String())
}

func (c *CustomersClient) GetAddressByID(ctx context.Context, id uuid.UUID) Lookup[types.RentalCustomerAddress] {
	url := fmt.Sprintf("%s/api/v1/customer-addresses/%s", c.baseURL, id)
	return getJSON[types.RentalCustomerAddress](ctx, c.http, url, "customer-addresses:"+id.String())
}
