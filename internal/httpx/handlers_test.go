package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/auth"
	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/ariefcatur/go-petstore/internal/discounts"
	"github.com/ariefcatur/go-petstore/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrders struct{ mock.Mock }

func (m *mockOrders) Create(ctx context.Context, c orders.Cart, idemKey string) (*orders.Order, bool, error) {
	args := m.Called(ctx, c, idemKey)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *mockOrders) Get(ctx context.Context, id string) (*orders.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *mockOrders) List(ctx context.Context, status string) ([]orders.Order, error) {
	args := m.Called(ctx, status)
	out, _ := args.Get(0).([]orders.Order)
	return out, args.Error(1)
}

func (m *mockOrders) History(ctx context.Context, email string) ([]orders.Order, error) {
	args := m.Called(ctx, email)
	out, _ := args.Get(0).([]orders.Order)
	return out, args.Error(1)
}

func (m *mockOrders) SetStatus(ctx context.Context, id, status string) (*orders.Order, error) {
	args := m.Called(ctx, id, status)
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}

func (m *mockOrders) Stats(ctx context.Context) (*orders.Stats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*orders.Stats)
	return s, args.Error(1)
}

type mockDiscounts struct {
	mock.Mock
	discounts.Manager
}

func (m *mockDiscounts) Apply(ctx context.Context, ids []int64, rate decimal.Decimal, w discounts.Window) (*discounts.ApplyResult, error) {
	args := m.Called(ctx, ids, rate, w)
	r, _ := args.Get(0).(*discounts.ApplyResult)
	return r, args.Error(1)
}

func (m *mockDiscounts) Remove(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).([]catalog.Product)
	return out, args.Error(1)
}

func (m *mockDiscounts) Discounted(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]catalog.Product)
	return out, args.Error(1)
}

func newTestRouter(register ...func(chi.Router)) *chi.Mux {
	r := NewRouter(5 * time.Second)
	for _, reg := range register {
		reg(r)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(auth.HeaderRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestCreateOrder(t *testing.T) {
	svc := &mockOrders{}
	h := newTestRouter((&OrdersHandler{Service: svc}).Register)

	body := `{"customer_name":"Ada","customer_email":"ada@example.com","delivery_address":"1 Lane",
		"items":[{"product_id":3,"quantity":2,"unit_price":"9.99"}]}`
	svc.On("Create", mock.Anything, mock.MatchedBy(func(c orders.Cart) bool {
		return len(c.Items) == 1 && c.Items[0].ProductID == 3 && c.Items[0].Quantity == 2
	}), "idem-1").Return(&orders.Order{DeliveryID: "DEL-ABC123", Status: orders.StatusProcessing,
		TotalPrice: decimal.RequireFromString("19.98")}, false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set(auth.HeaderRole, "customer")
	req.Header.Set("Idempotency-Key", "idem-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody(t, rec)
	assert.Equal(t, "DEL-ABC123", got["delivery_id"])
	assert.Equal(t, "processing", got["status"])
	assert.Equal(t, "19.98", got["total_price"])
}

func TestCreateOrder_Errors(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		code  int
		check func(t *testing.T, body map[string]any)
	}{
		{
			name: "missing field",
			err:  apperr.Missing("customer_email"),
			code: http.StatusBadRequest,
			check: func(t *testing.T, b map[string]any) {
				assert.Equal(t, "customer_email", b["field"])
				assert.Contains(t, b["error"], "missing field")
			},
		},
		{
			name: "insufficient stock",
			err:  &apperr.InsufficientStockError{ProductID: 9, Requested: 6, Available: 5},
			code: http.StatusBadRequest,
			check: func(t *testing.T, b map[string]any) {
				assert.EqualValues(t, 5, b["available"])
				assert.EqualValues(t, 6, b["requested"])
				assert.Contains(t, b["error"], "available=5, requested=6")
			},
		},
		{
			name: "unknown product",
			err:  apperr.NotFound("product", 77),
			code: http.StatusNotFound,
		},
		{
			name: "database down",
			err:  errors.New("connection refused"),
			code: http.StatusInternalServerError,
			check: func(t *testing.T, b map[string]any) {
				assert.NotContains(t, b["error"], "connection refused")
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc := &mockOrders{}
			h := newTestRouter((&OrdersHandler{Service: svc}).Register)
			svc.On("Create", mock.Anything, mock.Anything, "").Return(nil, false, c.err)

			rec := do(t, h, http.MethodPost, "/orders", "customer", `{"items":[]}`)
			require.Equal(t, c.code, rec.Code)
			if c.check != nil {
				c.check(t, decodeBody(t, rec))
			}
		})
	}
}

func TestCreateOrder_BadJSONAndRole(t *testing.T) {
	svc := &mockOrders{}
	h := newTestRouter((&OrdersHandler{Service: svc}).Register)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/orders", "customer", `{`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/orders", "", `{}`).Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_IdempotentReplayIs200(t *testing.T) {
	svc := &mockOrders{}
	h := newTestRouter((&OrdersHandler{Service: svc}).Register)
	svc.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(&orders.Order{DeliveryID: "DEL-ABC123"}, true, nil)

	rec := do(t, h, http.MethodPost, "/orders", "customer", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrderReadsAndStatus(t *testing.T) {
	svc := &mockOrders{}
	h := newTestRouter((&OrdersHandler{Service: svc}).Register)

	svc.On("List", mock.Anything, "in-transit").Return([]orders.Order{{DeliveryID: "DEL-1"}}, nil)
	rec := do(t, h, http.MethodGet, "/orders?status=in-transit", "product_manager", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []orders.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/orders", "customer", "").Code)

	svc.On("History", mock.Anything, "ada@example.com").Return([]orders.Order{}, nil)
	rec = do(t, h, http.MethodGet, "/orders/history?email=ada@example.com", "customer", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	svc.On("Get", mock.Anything, "DEL-ZZZZZZ").Return(nil, apperr.NotFound("order", "DEL-ZZZZZZ"))
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/orders/DEL-ZZZZZZ", "customer", "").Code)

	svc.On("SetStatus", mock.Anything, "DEL-ABC123", "shipped").
		Return(nil, apperr.Validation("status", `invalid status "shipped"`))
	rec = do(t, h, http.MethodPut, "/orders/DEL-ABC123/status", "product_manager", `{"status":"shipped"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", decodeBody(t, rec)["field"])

	svc.On("SetStatus", mock.Anything, "DEL-ABC123", "delivered").
		Return(&orders.Order{DeliveryID: "DEL-ABC123", Status: orders.StatusDelivered}, nil)
	rec = do(t, h, http.MethodPut, "/orders/DEL-ABC123/status", "admin", `{"status":"delivered"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.On("Stats", mock.Anything).Return(&orders.Stats{TotalOrders: 3, Delivered: 1}, nil)
	rec = do(t, h, http.MethodGet, "/orders/stats", "sales_manager", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody(t, rec)["total_orders"])
}

func TestApplyDiscount(t *testing.T) {
	svc := &mockDiscounts{}
	h := newTestRouter((&DiscountsHandler{Service: svc}).Register)

	p := catalog.Product{ID: 7, Name: "Dog Bowl", Price: decimal.RequireFromString("10")}
	require.NoError(t, p.ApplyDiscount(decimal.NewFromInt(20)))
	svc.On("Apply", mock.Anything, []int64{7}, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(20))
	}), discounts.Window{}).Return(&discounts.ApplyResult{UpdatedProducts: []catalog.Product{p}, NotifiedUsersCount: 2}, nil)

	rec := do(t, h, http.MethodPost, "/discounts/apply", "sales_manager", `{"product_ids":[7],"discount_rate":20}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody(t, rec)
	assert.EqualValues(t, 2, got["notified_users_count"])
	assert.Len(t, got["updated_products"], 1)

	assert.Equal(t, http.StatusForbidden,
		do(t, h, http.MethodPost, "/discounts/apply", "product_manager", `{"product_ids":[7],"discount_rate":20}`).Code)
}

func TestApplyDiscount_InvalidRate(t *testing.T) {
	svc := &mockDiscounts{}
	h := newTestRouter((&DiscountsHandler{Service: svc}).Register)
	svc.On("Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperr.Validation("discount_rate", "must be greater than 0 and at most 100"))

	rec := do(t, h, http.MethodPost, "/discounts/apply", "admin", `{"product_ids":[7],"discount_rate":150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "discount_rate", decodeBody(t, rec)["field"])
}

func TestListDiscounted_ShowsEffectivePrice(t *testing.T) {
	svc := &mockDiscounts{}
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	h := newTestRouter((&DiscountsHandler{Service: svc, Now: func() time.Time { return now }}).Register)

	future := now.AddDate(0, 1, 0)
	p := catalog.Product{ID: 1, Name: "Fish Tank", Price: decimal.RequireFromString("200")}
	require.NoError(t, p.ApplyDiscount(decimal.NewFromInt(50)))
	require.NoError(t, p.SetDiscountWindow(&future, nil))
	svc.On("Discounted", mock.Anything).Return([]catalog.Product{p}, nil)

	rec := do(t, h, http.MethodGet, "/discounts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		DiscountedProducts []map[string]any `json:"discounted_products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	views := body.DiscountedProducts
	require.Len(t, views, 1)
	assert.Equal(t, "100", views[0]["price"])
	assert.Equal(t, "200", views[0]["effective_price"])
	assert.Equal(t, false, views[0]["on_discount"])
}

type memProducts struct{ byID map[int64]*catalog.Product }

func (m *memProducts) Create(_ context.Context, p *catalog.Product) error {
	p.ID = int64(len(m.byID) + 1)
	m.byID[p.ID] = p
	return nil
}

func (m *memProducts) Get(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	return p, nil
}

func (m *memProducts) List(context.Context, string) ([]catalog.Product, error) {
	out := []catalog.Product{}
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

type memStock map[int64]int

func (s memStock) Available(_ context.Context, id int64) (int, error) {
	n, ok := s[id]
	if !ok {
		return 0, apperr.NotFound("product", id)
	}
	return n, nil
}

func (s memStock) SetQuantity(_ context.Context, id int64, qty int) error {
	if qty < 0 {
		return apperr.Validation("quantity_in_stock", "must be >= 0")
	}
	if _, ok := s[id]; !ok {
		return apperr.NotFound("product", id)
	}
	s[id] = qty
	return nil
}

type countingCache struct{ drops int }

func (c *countingCache) Invalidate(context.Context) { c.drops++ }

func TestCatalogHandler(t *testing.T) {
	products := &memProducts{byID: map[int64]*catalog.Product{}}
	stock := memStock{}
	cache := &countingCache{}
	h := newTestRouter((&CatalogHandler{Products: products, Stock: stock, Cache: cache}).Register)

	body := `{"name":"Chew Toy","model":"CT-1","serial_number":"SN-CT-1","price":"45.99","quantity_in_stock":3,
		"discount_rate":"50","original_price":"99"}`
	rec := do(t, h, http.MethodPost, "/products", "product_manager", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	assert.Equal(t, "23", created["cost"])
	assert.Equal(t, "0", created["discount_rate"])
	assert.Nil(t, created["original_price"])

	rec = do(t, h, http.MethodPost, "/products", "product_manager", `{"name":"No Serial","model":"X","price":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stock[1] = 3
	rec = do(t, h, http.MethodPut, "/products/1/stock", "product_manager", `{"quantity_in_stock":12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, stock[1])
	assert.Equal(t, 1, cache.drops)

	rec = do(t, h, http.MethodPut, "/products/1/stock", "product_manager", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, cache.drops)

	rec = do(t, h, http.MethodGet, "/products/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/products/%d", 1), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "45.99", decodeBody(t, rec)["effective_price"])
}

func TestWriteError_Conflict(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/wishlist/add", nil)
	writeError(rec, req, fmt.Errorf("product 1 already in wishlist: %w", apperr.ErrConflict))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := do(t, NewRouter(time.Second), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
