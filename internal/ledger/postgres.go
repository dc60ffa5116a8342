package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sales_api/internal/sales"
)

// PostgresStorage is a sales.Storage backed by PostgreSQL.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// Open connects to connString and checks the connection.
func Open(ctx context.Context, connString string) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) Close() {
	s.pool.Close()
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the ledger tables if they don't exist.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sales (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			subtotal DOUBLE PRECISION NOT NULL,
			tax DOUBLE PRECISION NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			status VARCHAR(32) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_user_id ON sales(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at)`,

		`CREATE TABLE IF NOT EXISTS sale_items (
			sale_id UUID NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			product_id BIGINT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (sale_id, position)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Save writes the sale and all of its line items in one transaction.
func (s *PostgresStorage) Save(ctx context.Context, sale *sales.Sale) (*sales.Sale, error) {
	if sale.ID != "" {
		return nil, sales.ErrAlreadyStored
	}

	id := uuid.New()
	stored := *sale
	stored.ID = id.String()
	// timestamptz keeps microseconds; return what a later Read will see.
	stored.CreatedAt = sale.CreatedAt.Truncate(time.Microsecond)
	stored.Items = append([]sales.LineItem{}, sale.Items...)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO sales (id, user_id, created_at, subtotal, tax, total, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		stored.ID, stored.UserID, stored.CreatedAt, stored.Subtotal, stored.Tax, stored.Total, stored.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}

	if len(stored.Items) > 0 {
		rows := make([][]any, 0, len(stored.Items))
		for i, it := range stored.Items {
			rows = append(rows, []any{id, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"sale_items"},
			[]string{"sale_id", "position", "product_id", "product_name", "quantity", "unit_price"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return nil, fmt.Errorf("insert sale items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *PostgresStorage) Read(ctx context.Context, id string) (*sales.Sale, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sales.ErrNotFound
	}

	var sale sales.Sale
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, subtotal, tax, total, status FROM sales WHERE id = $1`, id,
	).Scan(&sale.ID, &sale.UserID, &sale.CreatedAt, &sale.Subtotal, &sale.Tax, &sale.Total, &sale.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sales.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.items(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = itemsOrEmpty(items[sale.ID])
	return &sale, nil
}

func (s *PostgresStorage) List(ctx context.Context, userID int64) ([]*sales.Sale, error) {
	query := `SELECT id, user_id, created_at, subtotal, tax, total, status FROM sales`
	args := []any{}
	if userID != 0 {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*sales.Sale
	var ids []string
	for rows.Next() {
		var sale sales.Sale
		if err := rows.Scan(&sale.ID, &sale.UserID, &sale.CreatedAt, &sale.Subtotal, &sale.Tax, &sale.Total, &sale.Status); err != nil {
			return nil, err
		}
		found = append(found, &sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []*sales.Sale{}, nil
	}

	items, err := s.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, sale := range found {
		sale.Items = itemsOrEmpty(items[sale.ID])
	}
	return found, nil
}

func (s *PostgresStorage) items(ctx context.Context, saleIDs []string) (map[string][]sales.LineItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sale_id, product_id, product_name, quantity, unit_price
		 FROM sale_items WHERE sale_id = ANY($1::uuid[]) ORDER BY sale_id, position`,
		saleIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]sales.LineItem, len(saleIDs))
	for rows.Next() {
		var saleID string
		var it sales.LineItem
		if err := rows.Scan(&saleID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out[saleID] = append(out[saleID], it)
	}
	return out, rows.Err()
}

func itemsOrEmpty(items []sales.LineItem) []sales.LineItem {
	if items == nil {
		return []sales.LineItem{}
	}
	return items
}
