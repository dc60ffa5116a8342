package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"sales_api/internal/sales"
)

// UserClient checks buyers against the users API.
type UserClient struct {
	client  *resty.Client
	baseURL string
}

// NewUserClient creates a client for the users API rooted at baseURL, for
// example http://localhost:8080/api/v1/users.
func NewUserClient(baseURL string, timeout time.Duration) *UserClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &UserClient{
		client:  newRestyClient(baseURL, timeout),
		baseURL: baseURL,
	}
}

// Exists issues GET {baseURL}/{id}. The body of a found user is not read.
func (c *UserClient) Exists(ctx context.Context, userID int64) error {
	id := strconv.FormatInt(userID, 10)
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/{id}")
	if err != nil {
		return &sales.UnreachableError{URL: c.baseURL + "/" + id, Err: err}
	}

	switch {
	case res.IsSuccess():
		return nil
	case res.StatusCode() == http.StatusNotFound:
		return sales.ErrUnknownUser
	default:
		return fmt.Errorf("users API returned unexpected status: %d", res.StatusCode())
	}
}

func (c *UserClient) Close() error {
	return c.client.Close()
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}
