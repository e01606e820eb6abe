package notify

import (
	"fmt"
	"strings"
)

// Message is a rendered notification ready for a Sink.
type Message struct {
	To      string
	Subject string
	Body    string
}

func RenderDiscount(p DiscountPayload) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Good news! %s from your wishlist is now on sale.\n\n", p.ProductName)
	fmt.Fprintf(&b, "Original Price: $%s\n", p.OriginalPrice.StringFixed(2))
	fmt.Fprintf(&b, "New Price: $%s\n", p.NewPrice.StringFixed(2))
	fmt.Fprintf(&b, "Discount: %s%%\n", p.DiscountRate.String())
	return Message{
		To:      p.UserEmail,
		Subject: fmt.Sprintf("Special Discount on %s!", p.ProductName),
		Body:    b.String(),
	}
}

func RenderInvoice(p OrderPlacedPayload) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThank you for your order %s placed on %s.\n\n", p.CustomerName, p.DeliveryID, p.OrderDate)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "%d x %s @ $%s\n", it.Quantity, it.ProductName, it.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: $%s\nDelivery address: %s\n", p.TotalPrice.StringFixed(2), p.DeliveryAddress)
	return Message{
		To:      p.CustomerEmail,
		Subject: fmt.Sprintf("Invoice for order %s", p.DeliveryID),
		Body:    b.String(),
	}
}
