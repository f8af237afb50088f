package redisx

import "time"

const (
	// Idempotency for sale submission: idem:sale:create:{external_id} -> sale_id
	KeyIdemSaleCreate = "idem:sale:create:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Daily revenue rollup: hash report:daily:{yyyy-mm-dd}
	// fields: revenue_cents, tax_cents, sales
	KeyDailyReport = "report:daily:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
	TTLDailyReport = 90 * 24 * time.Hour
)
