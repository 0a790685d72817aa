package redisx

import "time"

const (
	// Public tracking view: order_tracking:{order_number} -> JSON orders.Tracking
	KeyOrderTracking = "order_tracking:%s"

	// Dedup of consumed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Analytics hashes, maintained by the analytics consumer.
	KeyStatusCounts   = "analytics:orders:status"       // status -> count
	KeyEventCounts    = "analytics:orders:events"       // event -> count
	KeyRevenue        = "analytics:revenue"             // currency -> minor units, counted on confirm
	KeyDailyCreated   = "analytics:orders:created:%s"   // yyyy-mm-dd -> count per order_type
	KeyDailyDelivered = "analytics:orders:delivered:%s" // yyyy-mm-dd -> count
)

var (
	TTLTrackingCache = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
	TTLDaily         = 400 * 24 * time.Hour
)
