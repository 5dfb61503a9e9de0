package redisx

import "time"

const (
	// Dokumen toko (products + orders + counters) sebagai satu JSON.
	KeyShopDocument = "shop:document"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
