package sales

import (
	"context"
	"errors"
	"fmt"
)

// Errors collaborators return so the service can classify their failures.
var (
	ErrUnknownUser    = errors.New("user does not exist")
	ErrUnknownProduct = errors.New("product does not exist")
)

// UnreachableError reports that a collaborator could not be contacted at all,
// as opposed to answering with an error.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("could not reach %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// UserDirectory checks that buyers exist.
type UserDirectory interface {
	// Exists returns nil if the user exists, ErrUnknownUser if it doesn't and
	// an *UnreachableError on transport failures.
	Exists(ctx context.Context, userID int64) error
}

// ProductCatalog looks up products and mutates their stock.
type ProductCatalog interface {
	// Get returns ErrUnknownProduct when the catalog has no such product.
	Get(ctx context.Context, productID int64) (*Product, error)
	// DecrementStock removes quantity units from the product's stock. The
	// catalog is expected to apply it as a conditional decrement.
	DecrementStock(ctx context.Context, productID int64, quantity int) error
}

// Publisher is notified about every persisted sale.
type Publisher interface {
	PublishSaleCompleted(ctx context.Context, sale *Sale) error
}

// Recorder collects workflow metrics.
type Recorder interface {
	SaleCreated(total float64, lines int)
	SaleFailed(kind string)
}

type nopRecorder struct{}

func (nopRecorder) SaleCreated(float64, int) {}
func (nopRecorder) SaleFailed(string)        {}
