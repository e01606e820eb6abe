package orders

import (
	"strings"

	"github.com/google/uuid"
)

func shortHex() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func NewDeliveryID() string { return "DEL-" + shortHex() }

func NewCustomerID() string { return "CUST-" + shortHex() }
