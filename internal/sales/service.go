package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "sales_api/internal/sales"

// Service provides high-level sales operations on top of a Storage backend
// and the external user and product services.
type Service struct {
	storage  Storage
	users    UserDirectory
	products ProductCatalog
	logger   *zap.Logger

	tracer      trace.Tracer
	recorder    Recorder
	publisher   Publisher
	strictStock bool
	now         func() time.Time
}

// SalesMetadata summarizes the results of a search.
type SalesMetadata struct {
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	TotalAmount float64 `json:"total_amount"`
}

// Option configures optional Service collaborators.
type Option func(*Service)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithPublisher sets where completed sales are announced. Publishing happens
// after the sale is stored and its failures don't fail the sale.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithStrictStockUpdates makes a failed stock decrement abort the sale with
// ErrStockUpdateFailed. By default the failure is logged and the sale goes on.
func WithStrictStockUpdates(strict bool) Option {
	return func(s *Service) { s.strictStock = strict }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(storage Storage, users UserDirectory, products ProductCatalog, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		storage:  storage,
		users:    users,
		products: products,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSale validates the buyer, takes every requested line out of the
// catalog's stock in order and stores the resulting sale.
//
// A failure on line k leaves the stock decrements of lines before k applied.
func (s *Service) CreateSale(ctx context.Context, req SaleRequest) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.CreateSale", trace.WithAttributes(
		attribute.Int64("sale.user_id", req.UserID),
		attribute.Int("sale.lines", len(req.Items)),
	))
	defer span.End()

	sale, err := s.createSale(ctx, req)
	if err != nil {
		kind := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		s.recorder.SaleFailed(string(kind))
		s.logger.Error("failed to create sale",
			zap.Int64("user_id", req.UserID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("sale.id", sale.ID),
		attribute.Float64("sale.total", sale.Total),
	)
	span.SetStatus(codes.Ok, "")
	s.recorder.SaleCreated(sale.Total, len(sale.Items))
	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.Int64("user_id", sale.UserID),
		zap.Int("lines", len(sale.Items)),
		zap.Float64("total", sale.Total),
	)

	s.publish(ctx, sale)
	return sale, nil
}

func (s *Service) createSale(ctx context.Context, req SaleRequest) (*Sale, error) {
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, invalidQuantity(line.ProductID, line.Quantity)
		}
	}

	if err := s.validateUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	sale := &Sale{
		UserID:    req.UserID,
		CreatedAt: s.now(),
		Status:    StatusCompleted,
		Items:     make([]LineItem, 0, len(req.Items)),
	}

	var subtotal float64
	for i, line := range req.Items {
		item, err := s.takeLine(ctx, i, line)
		if err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
		subtotal += lineAmount(item.UnitPrice, item.Quantity)
	}

	sale.Subtotal = subtotal
	sale.Tax, sale.Total = computeTotals(subtotal)

	stored, err := s.storage.Save(ctx, sale)
	if err != nil {
		return nil, storageFailure(err)
	}
	return stored, nil
}

func (s *Service) validateUser(ctx context.Context, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "sales.validateUser")
	defer span.End()

	err := s.users.Exists(ctx, userID)
	if err == nil {
		return nil
	}

	var unreachable *UnreachableError
	switch {
	case errors.Is(err, ErrUnknownUser):
		return buyerNotFound(userID, err)
	case errors.As(err, &unreachable):
		return directoryUnavailable(userID, unreachable.URL, err)
	default:
		return unexpectedValidation(userID, err)
	}
}

// takeLine checks and decrements the stock for one line and snapshots the
// product as it was returned by the catalog.
func (s *Service) takeLine(ctx context.Context, index int, line LineRequest) (LineItem, error) {
	ctx, span := s.tracer.Start(ctx, "sales.takeLine", trace.WithAttributes(
		attribute.Int("line.index", index),
		attribute.Int64("product.id", line.ProductID),
		attribute.Int("line.quantity", line.Quantity),
	))
	defer span.End()

	product, err := s.products.Get(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, ErrUnknownProduct) {
			return LineItem{}, productNotFound(line.ProductID, err)
		}
		return LineItem{}, catalogFailure(line.ProductID, err)
	}

	if product.Stock < line.Quantity {
		return LineItem{}, insufficientStock(line.ProductID, product.Name)
	}

	if err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
		if s.strictStock {
			return LineItem{}, stockUpdateFailed(line.ProductID, product.Name, err)
		}
		span.AddEvent("stock update failed")
		s.logger.Warn("stock update failed, continuing with sale",
			zap.Int64("product_id", line.ProductID),
			zap.Int("quantity", line.Quantity),
			zap.Error(err),
		)
	}

	return LineItem{
		ProductID:   line.ProductID,
		ProductName: product.Name,
		Quantity:    line.Quantity,
		UnitPrice:   product.Price,
	}, nil
}

func (s *Service) publish(ctx context.Context, sale *Sale) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSaleCompleted(ctx, sale); err != nil {
		s.logger.Warn("failed to publish sale completed event",
			zap.String("sale_id", sale.ID),
			zap.Error(err),
		)
	}
}

// GetSale returns a stored sale. Returns ErrNotFound if there is none.
func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	return s.storage.Read(ctx, id)
}

// SearchSales lists the sales of userID, or all sales when userID is 0,
// together with their aggregated amounts.
func (s *Service) SearchSales(ctx context.Context, userID int64) ([]*Sale, SalesMetadata, error) {
	if userID != 0 {
		if err := s.validateUser(ctx, userID); err != nil {
			s.logger.Warn("error validating user", zap.Int64("user_id", userID), zap.Error(err))
			return nil, SalesMetadata{}, err
		}
	}

	found, err := s.storage.List(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list sales from storage", zap.Error(err))
		return nil, SalesMetadata{}, fmt.Errorf("failed to retrieve sales: %w", err)
	}

	metadata := Summarize(found)
	s.logger.Info("sales search completed",
		zap.Int64("user_id_filter", userID),
		zap.Int("results_count", len(found)),
		zap.Any("metadata", metadata),
	)
	return found, metadata, nil
}
