package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"sales_api/internal/sales"
)

// ErrStockConflict is returned when the catalog refuses a decrement because
// the stock changed since it was read.
var ErrStockConflict = errors.New("catalog rejected stock decrement: not enough stock")

// ProductClient talks to the products API.
type ProductClient struct {
	client  *resty.Client
	baseURL string
}

// NewProductClient creates a client for the products API rooted at baseURL,
// for example http://localhost:8083/api/v1/products.
func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &ProductClient{
		client:  newRestyClient(baseURL, timeout),
		baseURL: baseURL,
	}
}

// Get issues GET {baseURL}/{id}. Any 4xx answer means the product doesn't exist.
func (c *ProductClient) Get(ctx context.Context, productID int64) (*sales.Product, error) {
	id := strconv.FormatInt(productID, 10)
	var p sales.Product
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&p).
		SetForceResponseContentType("application/json").
		Get("/{id}")
	if err != nil {
		if res != nil && res.RawResponse != nil {
			return nil, fmt.Errorf("decode product %d: %w", productID, err)
		}
		return nil, &sales.UnreachableError{URL: c.baseURL + "/" + id, Err: err}
	}

	switch {
	case res.IsSuccess():
		if p.ID == 0 {
			p.ID = productID
		}
		return &p, nil
	case res.StatusCode() >= 400 && res.StatusCode() < 500:
		return nil, fmt.Errorf("%w: products API returned %d", sales.ErrUnknownProduct, res.StatusCode())
	default:
		return nil, fmt.Errorf("products API returned unexpected status: %d", res.StatusCode())
	}
}

// DecrementStock issues PUT {baseURL}/{id}/stock?quantity={n}. The catalog
// answers 409 when it can't take quantity units out of the current stock.
func (c *ProductClient) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	id := strconv.FormatInt(productID, 10)
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParam("quantity", strconv.Itoa(quantity)).
		Put("/{id}/stock")
	if err != nil {
		return &sales.UnreachableError{URL: c.baseURL + "/" + id + "/stock", Err: err}
	}

	switch {
	case res.IsSuccess():
		return nil
	case res.StatusCode() == http.StatusConflict:
		return ErrStockConflict
	default:
		return fmt.Errorf("products API returned unexpected status %d on stock update", res.StatusCode())
	}
}

func (c *ProductClient) Close() error {
	return c.client.Close()
}
