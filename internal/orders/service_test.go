package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/notify"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) CreateWithReservation(ctx context.Context, o *Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockStore) Get(ctx context.Context, deliveryID string) (*Order, error) {
	args := m.Called(ctx, deliveryID)
	o, _ := args.Get(0).(*Order)
	return o, args.Error(1)
}

func (m *mockStore) List(ctx context.Context, status Status) ([]Order, error) {
	args := m.Called(ctx, status)
	out, _ := args.Get(0).([]Order)
	return out, args.Error(1)
}

func (m *mockStore) History(ctx context.Context, email string) ([]Order, error) {
	args := m.Called(ctx, email)
	out, _ := args.Get(0).([]Order)
	return out, args.Error(1)
}

func (m *mockStore) UpdateStatus(ctx context.Context, deliveryID string, fn func(o *Order) error) (*Order, error) {
	args := m.Called(ctx, deliveryID)
	o, _ := args.Get(0).(*Order)
	if o != nil {
		if err := fn(o); err != nil {
			return nil, err
		}
	}
	return o, args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context, today time.Time) (*Stats, error) {
	args := m.Called(ctx, today)
	s, _ := args.Get(0).(*Stats)
	return s, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) OrderPlaced(ctx context.Context, p notify.OrderPlacedPayload) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockNotifier) DiscountAvailable(ctx context.Context, p notify.DiscountPayload) error {
	return m.Called(ctx, p).Error(0)
}

func validCart() Cart {
	return Cart{
		CustomerName:    "Ada Lovelace",
		CustomerEmail:   "ada@example.com",
		DeliveryAddress: "12 Analytical St",
		Items:           []CartItem{{ProductID: 3, Quantity: 2}},
	}
}

// fillSnapshot mimics the repository pricing the items at checkout.
func fillSnapshot(args mock.Arguments) {
	o := args.Get(1).(*Order)
	for i := range o.Items {
		o.Items[i].ProductName = "Kibble"
		o.Items[i].Price = decimal.RequireFromString("12.50")
	}
	o.recomputeTotal()
	o.ID = 1
	o.OrderDate = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
}

func TestCreate_MissingFieldPersistsNothing(t *testing.T) {
	cases := map[string]func(c *Cart){
		"customer_name":    func(c *Cart) { c.CustomerName = " " },
		"customer_email":   func(c *Cart) { c.CustomerEmail = "" },
		"items":            func(c *Cart) { c.Items = nil },
		"delivery_address": func(c *Cart) { c.DeliveryAddress = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			store := &mockStore{}
			svc := &Service{Store: store}
			c := validCart()
			mutate(&c)

			_, _, err := svc.Create(context.Background(), c, "")
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, field, ve.Field)
			assert.Contains(t, ve.Message, "missing field")
			store.AssertNotCalled(t, "CreateWithReservation", mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_InvalidItem(t *testing.T) {
	svc := &Service{Store: &mockStore{}}
	c := validCart()
	c.Items = append(c.Items, CartItem{ProductID: 4, Quantity: 0})
	_, _, err := svc.Create(context.Background(), c, "")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[1].quantity", ve.Field)
}

func TestCreate_Success(t *testing.T) {
	store := &mockStore{}
	n := &mockNotifier{}
	svc := &Service{Store: store, Notifier: n}

	store.On("CreateWithReservation", mock.Anything, mock.AnythingOfType("*orders.Order")).
		Run(fillSnapshot).Return(nil).Once()
	n.On("OrderPlaced", mock.Anything, mock.MatchedBy(func(p notify.OrderPlacedPayload) bool {
		return p.CustomerEmail == "ada@example.com" && p.TotalPrice.Equal(decimal.RequireFromString("25")) &&
			p.OrderDate == "2026-05-10" && len(p.Items) == 1
	})).Return(nil).Once()

	o, replay, err := svc.Create(context.Background(), validCart(), "")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Regexp(t, `^DEL-[0-9A-F]{6}$`, o.DeliveryID)
	assert.Regexp(t, `^CUST-`, o.CustomerID)
	assert.Equal(t, "25.00", o.TotalPrice.StringFixed(2))
	store.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestCreate_NotificationFailureStillSucceeds(t *testing.T) {
	store := &mockStore{}
	n := &mockNotifier{}
	svc := &Service{Store: store, Notifier: n}

	store.On("CreateWithReservation", mock.Anything, mock.Anything).Run(fillSnapshot).Return(nil)
	n.On("OrderPlaced", mock.Anything, mock.Anything).Return(notify.ErrQueueFull)

	o, _, err := svc.Create(context.Background(), validCart(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, o.DeliveryID)
}

func TestCreate_InsufficientStockNotNotified(t *testing.T) {
	store := &mockStore{}
	n := &mockNotifier{}
	svc := &Service{Store: store, Notifier: n}

	stockErr := &apperr.InsufficientStockError{ProductID: 3, Requested: 6, Available: 5}
	store.On("CreateWithReservation", mock.Anything, mock.Anything).Return(stockErr)

	_, _, err := svc.Create(context.Background(), validCart(), "")
	var se *apperr.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Available)
	assert.Equal(t, 6, se.Requested)
	n.AssertNotCalled(t, "OrderPlaced", mock.Anything, mock.Anything)
}

func TestCreate_RetriesDeliveryIDCollision(t *testing.T) {
	store := &mockStore{}
	svc := &Service{Store: store}

	var seen []string
	store.On("CreateWithReservation", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = append(seen, args.Get(1).(*Order).DeliveryID) }).
		Return(ErrDuplicateDeliveryID).Twice()
	store.On("CreateWithReservation", mock.Anything, mock.Anything).Run(fillSnapshot).Return(nil).Once()

	o, _, err := svc.Create(context.Background(), validCart(), "")
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Len(t, o.Items, 1)
}

func TestCreate_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store := &mockStore{}
	svc := &Service{Store: store}
	store.On("CreateWithReservation", mock.Anything, mock.Anything).Return(ErrDuplicateDeliveryID)

	_, _, err := svc.Create(context.Background(), validCart(), "")
	assert.True(t, errors.Is(err, ErrDuplicateDeliveryID))
	store.AssertNumberOfCalls(t, "CreateWithReservation", deliveryIDAttempts)
}

func TestCreate_IdempotencyKeyReplays(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &mockStore{}
	svc := &Service{Store: store, Redis: rdb}

	var created *Order
	store.On("CreateWithReservation", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			fillSnapshot(args)
			created = args.Get(1).(*Order)
		}).Return(nil).Once()

	first, replay, err := svc.Create(context.Background(), validCart(), "key-1")
	require.NoError(t, err)
	require.False(t, replay)

	store.On("Get", mock.Anything, first.DeliveryID).Return(created, nil).Once()
	second, replay, err := svc.Create(context.Background(), validCart(), "key-1")
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, first.DeliveryID, second.DeliveryID)
	store.AssertNumberOfCalls(t, "CreateWithReservation", 1)
}

func TestCreate_ConcurrentSameIdempotencyKeyCreatesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &mockStore{}
	svc := &Service{Store: store, Redis: rdb}
	store.On("CreateWithReservation", mock.Anything, mock.Anything).
		After(50 * time.Millisecond).Run(fillSnapshot).Return(nil)
	store.On("Get", mock.Anything, mock.Anything).Return(&Order{DeliveryID: "DEL-REPLAY"}, nil).Maybe()

	type result struct {
		replay bool
		err    error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, replay, err := svc.Create(context.Background(), validCart(), "same-key")
			results <- result{replay, err}
		}()
	}

	created := 0
	for i := 0; i < 2; i++ {
		r := <-results
		switch {
		case r.err == nil && !r.replay:
			created++
		case r.err != nil:
			assert.ErrorIs(t, r.err, apperr.ErrConflict)
		}
	}
	assert.Equal(t, 1, created)
	store.AssertNumberOfCalls(t, "CreateWithReservation", 1)
}

func TestCreate_IdempotencyKeyInProgressIsConflict(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, mr.Set("idem:order:create:busy", "pending"))
	store := &mockStore{}
	svc := &Service{Store: store, Redis: rdb}

	_, _, err := svc.Create(context.Background(), validCart(), "busy")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	store.AssertNotCalled(t, "CreateWithReservation", mock.Anything, mock.Anything)
}

func TestCreate_FailedAttemptReleasesIdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &mockStore{}
	svc := &Service{Store: store, Redis: rdb}
	stockErr := &apperr.InsufficientStockError{ProductID: 3, Requested: 2, Available: 1}
	store.On("CreateWithReservation", mock.Anything, mock.Anything).Return(stockErr).Once()

	_, _, err := svc.Create(context.Background(), validCart(), "retry-me")
	require.Error(t, err)
	assert.False(t, mr.Exists("idem:order:create:retry-me"))

	store.On("CreateWithReservation", mock.Anything, mock.Anything).Run(fillSnapshot).Return(nil).Once()
	o, replay, err := svc.Create(context.Background(), validCart(), "retry-me")
	require.NoError(t, err)
	assert.False(t, replay)
	got, err := mr.Get("idem:order:create:retry-me")
	require.NoError(t, err)
	assert.Equal(t, o.DeliveryID, got)
}

func TestCreate_DropsDiscountedCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, mr.Set("catalog:discounted", "[]"))
	store := &mockStore{}
	svc := &Service{Store: store, Redis: rdb}
	store.On("CreateWithReservation", mock.Anything, mock.Anything).Run(fillSnapshot).Return(nil)

	_, _, err := svc.Create(context.Background(), validCart(), "")
	require.NoError(t, err)
	assert.False(t, mr.Exists("catalog:discounted"))
}

func TestSetStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	store := &mockStore{}
	svc := &Service{Store: store, Now: func() time.Time { return now }}

	store.On("UpdateStatus", mock.Anything, "DEL-ABCDEF").
		Return(&Order{DeliveryID: "DEL-ABCDEF", Status: StatusInTransit}, nil).Once()
	o, err := svc.SetStatus(context.Background(), "DEL-ABCDEF", "delivered")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveryDate)
	assert.Equal(t, "2026-06-01", o.DeliveryDate.Format(time.DateOnly))

	_, err = svc.SetStatus(context.Background(), "DEL-ABCDEF", "lost")
	assert.True(t, apperr.IsValidation(err))

	store.On("UpdateStatus", mock.Anything, "DEL-000000").
		Return(&Order{DeliveryID: "DEL-000000", Status: StatusDelivered}, nil).Once()
	_, err = svc.SetStatus(context.Background(), "DEL-000000", "processing")
	assert.True(t, apperr.IsValidation(err))
}

func TestListAndHistory(t *testing.T) {
	store := &mockStore{}
	svc := &Service{Store: store}

	store.On("List", mock.Anything, StatusDelivered).Return([]Order{{DeliveryID: "DEL-1"}}, nil)
	out, err := svc.List(context.Background(), "delivered")
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = svc.List(context.Background(), "bogus")
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.History(context.Background(), "  ")
	assert.True(t, apperr.IsValidation(err))

	store.On("History", mock.Anything, "Ada@Example.com").Return([]Order{}, nil)
	_, err = svc.History(context.Background(), " Ada@Example.com ")
	require.NoError(t, err)
}
