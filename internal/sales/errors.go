package sales

import (
	"errors"
	"fmt"
)

// Kind tells failures of CreateSale apart.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindBuyerNotFound        Kind = "buyer_not_found"
	KindDirectoryUnavailable Kind = "directory_unavailable"
	KindUnexpectedValidation Kind = "unexpected_validation_error"
	KindProductNotFound      Kind = "product_not_found"
	KindInsufficientStock    Kind = "insufficient_stock"
	KindStockUpdateFailed    Kind = "stock_update_failed"
	KindCatalogFailure       Kind = "catalog_failure"
	KindStorageFailure       Kind = "storage_failure"
)

var (
	ErrInvalidRequest       = errors.New("invalid sale request")
	ErrBuyerNotFound        = errors.New("buyer not found")
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	ErrUnexpectedValidation = errors.New("unexpected error validating user")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrStockUpdateFailed    = errors.New("stock update failed")
	ErrCatalogFailure       = errors.New("product catalog failure")
	ErrStorageFailure       = errors.New("failed to save sale")
)

var kindSentinels = map[Kind]error{
	KindInvalidRequest:       ErrInvalidRequest,
	KindBuyerNotFound:        ErrBuyerNotFound,
	KindDirectoryUnavailable: ErrDirectoryUnavailable,
	KindUnexpectedValidation: ErrUnexpectedValidation,
	KindProductNotFound:      ErrProductNotFound,
	KindInsufficientStock:    ErrInsufficientStock,
	KindStockUpdateFailed:    ErrStockUpdateFailed,
	KindCatalogFailure:       ErrCatalogFailure,
	KindStorageFailure:       ErrStorageFailure,
}

// Error is a typed failure of the sale workflow. Message is safe to show to
// API clients.
type Error struct {
	Kind        Kind
	Message     string
	UserID      int64
	ProductID   int64
	ProductName string
	TargetURL   string
	Detail      string
	Err         error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the kind sentinel and the collaborator error, so
// errors.Is(err, ErrProductNotFound) and errors.Is(err, context.Canceled)
// both work.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the failure kind of err, or "" if err is not a workflow failure.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func invalidQuantity(productID int64, quantity int) *Error {
	return &Error{
		Kind:      KindInvalidRequest,
		Message:   fmt.Sprintf("quantity for product ID %d must be greater than zero, got %d", productID, quantity),
		ProductID: productID,
	}
}

func buyerNotFound(userID int64, err error) *Error {
	return &Error{
		Kind:    KindBuyerNotFound,
		Message: fmt.Sprintf("user with ID %d does not exist", userID),
		UserID:  userID,
		Err:     err,
	}
}

func directoryUnavailable(userID int64, target string, err error) *Error {
	return &Error{
		Kind:      KindDirectoryUnavailable,
		Message:   fmt.Sprintf("connection error: could not reach the users API at %s", target),
		UserID:    userID,
		TargetURL: target,
		Err:       err,
	}
}

func unexpectedValidation(userID int64, err error) *Error {
	return &Error{
		Kind:    KindUnexpectedValidation,
		Message: fmt.Sprintf("unexpected error validating user: %v", err),
		UserID:  userID,
		Detail:  err.Error(),
		Err:     err,
	}
}

func productNotFound(productID int64, err error) *Error {
	return &Error{
		Kind:      KindProductNotFound,
		Message:   fmt.Sprintf("product ID %d not found", productID),
		ProductID: productID,
		Err:       err,
	}
}

func insufficientStock(productID int64, name string) *Error {
	return &Error{
		Kind:        KindInsufficientStock,
		Message:     fmt.Sprintf("insufficient stock for: %s", name),
		ProductID:   productID,
		ProductName: name,
	}
}

func stockUpdateFailed(productID int64, name string, err error) *Error {
	return &Error{
		Kind:        KindStockUpdateFailed,
		Message:     fmt.Sprintf("could not update stock for: %s", name),
		ProductID:   productID,
		ProductName: name,
		Detail:      err.Error(),
		Err:         err,
	}
}

func catalogFailure(productID int64, err error) *Error {
	return &Error{
		Kind:      KindCatalogFailure,
		Message:   fmt.Sprintf("could not fetch product ID %d", productID),
		ProductID: productID,
		Detail:    err.Error(),
		Err:       err,
	}
}

func storageFailure(err error) *Error {
	return &Error{
		Kind:    KindStorageFailure,
		Message: "failed to save sale",
		Detail:  err.Error(),
		Err:     err,
	}
}
