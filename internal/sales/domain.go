package sales

import "time"

// TaxRate is the fixed VAT applied to every sale subtotal.
const TaxRate = 0.19

// StatusCompleted is the only state a persisted sale can be in.
const StatusCompleted = "COMPLETED"

// Sale represents a sales transaction in the system.
type Sale struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	Subtotal  float64    `json:"subtotal"`
	Tax       float64    `json:"tax"`
	Total     float64    `json:"total"`
	Status    string     `json:"status"`
	Items     []LineItem `json:"items"`
}

// LineItem is one product line of a sale. Name and price are copied from the
// catalog when the sale is made and never change afterwards.
type LineItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// SaleRequest is the input of CreateSale.
type SaleRequest struct {
	UserID int64         `json:"user_id" binding:"required"`
	Items  []LineRequest `json:"items" binding:"dive"`
}

// LineRequest asks for Quantity units of a product.
type LineRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// Product is the catalog's view of a product at lookup time.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// clone returns a deep copy so callers can't mutate stored line items.
func (s *Sale) clone() *Sale {
	c := *s
	c.Items = append([]LineItem(nil), s.Items...)
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return &c
}
