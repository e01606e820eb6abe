package redisx

import "time"

const (
	// Idempotent checkout: idem:order:create:{idempotency_key} -> delivery_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cached GET /discounts body
	KeyDiscountedProducts = "catalog:discounted"

	// Dedup notification delivery: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDiscounted  = time.Minute
	TTLDedup       = 48 * time.Hour
)
