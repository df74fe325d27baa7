package notify

import (
	"fmt"

	"github.com/glowmart/backend-glow/internal/common"
)

// EmailNotifier sends transactional emails for storefront events.
type EmailNotifier struct {
	Mail    common.EmailSender
	Enabled bool
	From    string
}

// OrderCreated emails the buyer an order confirmation.
func (n EmailNotifier) OrderCreated(to, orderID, total, currency string) error {
	if !n.Enabled || n.Mail == nil || to == "" {
		return nil
	}
	subject := "Your order is confirmed"
	body := fmt.Sprintf("Thanks for shopping with GlowMart!\nOrder ID: %s\nTotal: %s %s", orderID, total, currency)
	return n.Mail.Send(to, subject, body)
}

// LowStock alerts fulfilment staff that a product crossed its threshold.
func (n EmailNotifier) LowStock(to, title string, stock, threshold int) error {
	if !n.Enabled || n.Mail == nil || to == "" {
		return nil
	}
	subject := fmt.Sprintf("Low stock: %s", title)
	body := fmt.Sprintf("Product %q is down to %d units (threshold %d). Restock soon.", title, stock, threshold)
	return n.Mail.Send(to, subject, body)
}
