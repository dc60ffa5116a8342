package sales

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a sale with the given ID is not found.
var ErrNotFound = errors.New("sale not found")

// ErrAlreadyStored is returned when trying to save a sale that already has an ID.
var ErrAlreadyStored = errors.New("sale already has an ID")

// Storage is the sales ledger.
type Storage interface {
	// Save persists a new sale with its line items and returns it with the
	// ID assigned by the store.
	Save(ctx context.Context, sale *Sale) (*Sale, error)
	Read(ctx context.Context, id string) (*Sale, error)
	// List returns the sales of userID ordered by creation time, or all
	// sales when userID is 0.
	List(ctx context.Context, userID int64) ([]*Sale, error)
}

// LocalStorage provides an in-memory implementation for storing sales.
type LocalStorage struct {
	mu sync.RWMutex
	m  map[string]*Sale
}

// NewLocalStorage instantiates a new LocalStorage for sales with an empty map.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m: map[string]*Sale{},
	}
}

// Save assigns a new UUID to the sale and stores a copy of it.
// Returns ErrAlreadyStored if the sale already has an ID.
func (l *LocalStorage) Save(_ context.Context, sale *Sale) (*Sale, error) {
	if sale.ID != "" {
		return nil, ErrAlreadyStored
	}
	stored := sale.clone()
	stored.ID = uuid.NewString()

	l.mu.Lock()
	l.m[stored.ID] = stored
	l.mu.Unlock()

	return stored.clone(), nil
}

// Read retrieves a sale from the local storage by ID.
// Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) Read(_ context.Context, id string) (*Sale, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (l *LocalStorage) List(_ context.Context, userID int64) ([]*Sale, error) {
	l.mu.RLock()
	sales := make([]*Sale, 0, len(l.m))
	for _, s := range l.m {
		if userID != 0 && s.UserID != userID {
			continue
		}
		sales = append(sales, s.clone())
	}
	l.mu.RUnlock()

	sort.Slice(sales, func(i, j int) bool {
		if sales[i].CreatedAt.Equal(sales[j].CreatedAt) {
			return sales[i].ID < sales[j].ID
		}
		return sales[i].CreatedAt.Before(sales[j].CreatedAt)
	})
	return sales, nil
}
