// Package auth maps roles to capabilities. Authentication itself happens upstream;
// this package only answers whether a role may do something.
package auth

import "strings"

type Role string

const (
	RoleCustomer       Role = "customer"
	RoleProductManager Role = "product_manager"
	RoleSalesManager   Role = "sales_manager"
	RoleSupportAgent   Role = "support_agent"
	RoleAdmin          Role = "admin"
)

type Capability string

const (
	PlaceOrder      Capability = "order:place"
	ManageWishlist  Capability = "wishlist:manage"
	WriteReview     Capability = "review:write"
	OpenSupport     Capability = "support:open"
	ManageProducts  Capability = "product:manage"
	ManageStock     Capability = "stock:manage"
	ModerateReviews Capability = "review:moderate"
	UpdateDelivery  Capability = "order:update_status"
	ViewOrders      Capability = "order:view_all"
	ManageDiscounts Capability = "discount:manage"
	ManageCampaigns Capability = "campaign:manage"
	ViewReports     Capability = "report:view"
	HandleSupport   Capability = "support:handle"
)

var customerCaps = []Capability{PlaceOrder, ManageWishlist, WriteReview, OpenSupport}

var grants = map[Role]map[Capability]bool{
	RoleCustomer:       set(customerCaps...),
	RoleProductManager: set(append([]Capability{ManageProducts, ManageStock, ModerateReviews, UpdateDelivery, ViewOrders}, customerCaps...)...),
	RoleSalesManager:   set(append([]Capability{ManageDiscounts, ManageCampaigns, ViewReports, ViewOrders}, customerCaps...)...),
	RoleSupportAgent:   set(append([]Capability{HandleSupport}, customerCaps...)...),
}

func set(cs ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(cs))
	for _, c := range cs {
		m[c] = true
	}
	return m
}

// Can reports whether role holds capability c. Admin holds every capability.
func Can(role Role, c Capability) bool {
	if role == RoleAdmin {
		return true
	}
	return grants[role][c]
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == RoleAdmin {
		return r, true
	}
	_, ok := grants[r]
	return r, ok
}
