package metrics

import "time"

// Recorder receives counters and latencies from the cart, checkout and
// notification paths.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

const (
	CartMutation     = "cart_mutation"
	CheckoutResult   = "checkout_result"
	WebhookDelivery  = "webhook_delivery"
	PurchaseDuration = "purchase"
	WebhookDuration  = "webhook"
)
