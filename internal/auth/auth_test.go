package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	assert.True(t, Can(RoleCustomer, PlaceOrder))
	assert.False(t, Can(RoleCustomer, ManageDiscounts))
	assert.True(t, Can(RoleSalesManager, ManageDiscounts))
	assert.False(t, Can(RoleSalesManager, ManageStock))
	assert.True(t, Can(RoleProductManager, ModerateReviews))
	assert.False(t, Can(RoleProductManager, ManageCampaigns))
	assert.True(t, Can(RoleSupportAgent, HandleSupport))
	assert.False(t, Can(Role("guest"), PlaceOrder))

	for _, c := range []Capability{ManageDiscounts, ManageStock, HandleSupport, ViewReports} {
		assert.True(t, Can(RoleAdmin, c), c)
	}
}

func TestRequire(t *testing.T) {
	var seen Role
	h := Require(ManageDiscounts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RoleFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		role string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wizard", http.StatusUnauthorized},
		{"customer", http.StatusForbidden},
		{"Sales_Manager", http.StatusNoContent},
		{"admin", http.StatusNoContent},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/discounts/apply", nil)
		if c.role != "" {
			req.Header.Set(HeaderRole, c.role)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, c.want, rec.Code, "role %q", c.role)
	}
	assert.Equal(t, RoleAdmin, seen)
}
