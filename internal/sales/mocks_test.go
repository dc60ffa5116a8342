package sales

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Exists(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockProducts struct {
	mock.Mock
}

func (m *mockProducts) Get(ctx context.Context, productID int64) (*Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(*Product)
	return p, args.Error(1)
}

func (m *mockProducts) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

type mockStorage struct {
	mock.Mock
}

// Save returns what the expectation says. A func(*Sale) *Sale return value is
// applied to the saved sale, which lets tests assign IDs.
func (m *mockStorage) Save(ctx context.Context, sale *Sale) (*Sale, error) {
	args := m.Called(ctx, sale)
	if fn, ok := args.Get(0).(func(*Sale) *Sale); ok {
		return fn(sale), args.Error(1)
	}
	s, _ := args.Get(0).(*Sale)
	return s, args.Error(1)
}

func (m *mockStorage) Read(ctx context.Context, id string) (*Sale, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*Sale)
	return s, args.Error(1)
}

func (m *mockStorage) List(ctx context.Context, userID int64) ([]*Sale, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).([]*Sale)
	return s, args.Error(1)
}

type fakeRecorder struct {
	mu       sync.Mutex
	created  int
	failures map[string]int
}

func (r *fakeRecorder) SaleCreated(float64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *fakeRecorder) SaleFailed(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[kind]++
}

type fakePublisher struct {
	published []*Sale
	err       error
}

func (p *fakePublisher) PublishSaleCompleted(_ context.Context, sale *Sale) error {
	p.published = append(p.published, sale)
	return p.err
}
