package domain

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockSubscriptionStore is an in-memory SubscriptionStore for testing.
type MockSubscriptionStore struct {
	UpsertFunc func(ctx context.Context, record SubscriptionRecord) (*SubscriptionRecord, error)
	GetFunc    func(ctx context.Context, id string) (*SubscriptionRecord, error)

	mu      sync.Mutex
	Records map[string]*SubscriptionRecord
	Upserts int
}

var _ SubscriptionStore = (*MockSubscriptionStore)(nil)

// NewMockSubscriptionStore creates an empty in-memory subscription store.
func NewMockSubscriptionStore() *MockSubscriptionStore {
	return &MockSubscriptionStore{Records: make(map[string]*SubscriptionRecord)}
}

func (m *MockSubscriptionStore) Upsert(ctx context.Context, record SubscriptionRecord) (*SubscriptionRecord, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts++
	stored := record
	m.Records[record.ID] = &stored
	out := stored
	return &out, nil
}

func (m *MockSubscriptionStore) Get(ctx context.Context, id string) (*SubscriptionRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.Records[id]
	if !ok {
		return nil, NotFound("subscription.get", "subscription", id)
	}
	out := *record
	return &out, nil
}

// MockCustomerStore is an in-memory CustomerStore for testing.
type MockCustomerStore struct {
	GetByCustomerIDFunc  func(ctx context.Context, customerID string) (*Customer, error)
	GetByUserIDFunc      func(ctx context.Context, userID uuid.UUID) (*Customer, error)
	LinkSubscriptionFunc func(ctx context.Context, userID uuid.UUID, subscriptionID string) error

	mu        sync.Mutex
	Customers map[string]*Customer // keyed by provider customer id
	Links     map[uuid.UUID]string
}

var _ CustomerStore = (*MockCustomerStore)(nil)

// NewMockCustomerStore creates an empty in-memory customer store.
func NewMockCustomerStore() *MockCustomerStore {
	return &MockCustomerStore{
		Customers: make(map[string]*Customer),
		Links:     make(map[uuid.UUID]string),
	}
}

func (m *MockCustomerStore) GetByCustomerID(ctx context.Context, customerID string) (*Customer, error) {
	if m.GetByCustomerIDFunc != nil {
		return m.GetByCustomerIDFunc(ctx, customerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.Customers[customerID]
	if !ok {
		return nil, NotFound("customer.get_by_customer_id", "customer", customerID)
	}
	out := *customer
	return &out, nil
}

func (m *MockCustomerStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*Customer, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, customer := range m.Customers {
		if customer.UserID == userID {
			out := *customer
			return &out, nil
		}
	}
	return nil, NotFound("customer.get_by_user_id", "customer", userID.String())
}

func (m *MockCustomerStore) LinkSubscription(ctx context.Context, userID uuid.UUID, subscriptionID string) error {
	if m.LinkSubscriptionFunc != nil {
		return m.LinkSubscriptionFunc(ctx, userID, subscriptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Links[userID] = subscriptionID
	for _, customer := range m.Customers {
		if customer.UserID == userID {
			customer.SubscriptionID = subscriptionID
			return nil
		}
	}
	return NotFound("customer.link_subscription", "customer", userID.String())
}

// MockUserStore is an in-memory UserStore for testing.
type MockUserStore struct {
	SetSubscriptionFunc func(ctx context.Context, params SetUserSubscriptionParams) error

	mu      sync.Mutex
	Updates []SetUserSubscriptionParams
	Known   map[uuid.UUID]bool // users that exist; empty map accepts everyone
}

var _ UserStore = (*MockUserStore)(nil)

// NewMockUserStore creates an in-memory user store that accepts any user id.
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{}
}

func (m *MockUserStore) SetSubscription(ctx context.Context, params SetUserSubscriptionParams) error {
	if m.SetSubscriptionFunc != nil {
		return m.SetSubscriptionFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Known != nil && !m.Known[params.UserID] {
		return NotFound("user.set_subscription", "user", params.UserID.String())
	}
	m.Updates = append(m.Updates, params)
	return nil
}
